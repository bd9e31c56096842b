package env

import (
	"path/filepath"
	"time"
)

// Config gathers every bridge setting read from the environment.
// Missing values fall back to defaults; nothing here is required.
type Config struct {
	ServerAddress string
	ServerPort    string

	GroupID        string
	GroupName      string
	CredentialsDir string

	DatastoreType string
	DatastoreURI  string
	ProxyURL      string
	DeviceName    string
	QRTerminal    bool

	MongoURI        string
	MongoDatabase   string
	MongoCollection string
	PersistDebounce time.Duration

	TelegramAppID      int
	TelegramAppHash    string
	TelegramBotToken   string
	TelegramSourceID   int64
	TelegramNotifyPeer string

	RadarEnabled       bool
	RadarOnText        string
	RadarOffText       string
	RelayRatePerMinute int

	HealthCheckCron        string
	MirrorCron             string
	VersionRefreshEnabled  bool
	VersionRefreshCron     string
	VersionRefreshForce    bool
	VersionRefreshInterval time.Duration
}

const (
	DefaultCredentialsDir     = "auth_info"
	DefaultPersistDebounce    = 2500 * time.Millisecond
	DefaultRelayRatePerMinute = 20
	DefaultRadarOnText        = "📡 Radar ON: relaying messages from Telegram"
	DefaultRadarOffText       = "📴 Radar OFF: relay paused"
	DefaultHealthCheckCron    = "*/30 * * * * *"
	DefaultMirrorCron         = "0 */10 * * * *"
	DefaultVersionRefreshCron = "0 0 3 * * *"
)

// LoadConfig reads the bridge configuration from the process environment.
func LoadConfig() Config {
	cfg := Config{
		ServerAddress: GetEnvStringOrDefault("SERVER_ADDRESS", "0.0.0.0"),
		ServerPort:    GetEnvStringOrDefault("SERVER_PORT", "7001"),

		GroupID:        GetEnvStringOrDefault("WHATSAPP_GROUP_ID", ""),
		GroupName:      GetEnvStringOrDefault("WHATSAPP_GROUP_NAME", ""),
		CredentialsDir: GetEnvStringOrDefault("WHATSAPP_CREDENTIALS_DIR", DefaultCredentialsDir),

		DatastoreType: GetEnvStringOrDefault("WHATSAPP_DATASTORE_TYPE", "sqlite"),
		DatastoreURI:  GetEnvStringOrDefault("WHATSAPP_DATASTORE_URI", ""),
		ProxyURL:      GetEnvStringOrDefault("WHATSAPP_CLIENT_PROXY_URL", ""),
		DeviceName:    GetEnvStringOrDefault("WHATSAPP_DEVICE_NAME", "Radar Relay"),
		QRTerminal:    GetEnvBoolOrDefault("WHATSAPP_QR_TERMINAL", true),

		MongoURI:        GetEnvStringOrDefault("MONGODB_URI", ""),
		MongoDatabase:   GetEnvStringOrDefault("MONGODB_DATABASE", "radar_relay"),
		MongoCollection: GetEnvStringOrDefault("MONGODB_COLLECTION", "auth_state"),
		PersistDebounce: GetEnvDurationOrDefault("CREDENTIALS_PERSIST_DEBOUNCE", DefaultPersistDebounce),

		TelegramAppID:      GetEnvIntOrDefault("TELEGRAM_API_ID", 0),
		TelegramAppHash:    GetEnvStringOrDefault("TELEGRAM_API_HASH", ""),
		TelegramBotToken:   GetEnvStringOrDefault("TELEGRAM_BOT_TOKEN", ""),
		TelegramSourceID:   GetEnvInt64OrDefault("TELEGRAM_SOURCE_ID", 0),
		TelegramNotifyPeer: GetEnvStringOrDefault("TELEGRAM_NOTIFY_PEER", ""),

		RadarEnabled:       GetEnvBoolOrDefault("RADAR_ENABLED", false),
		RadarOnText:        GetEnvStringOrDefault("RADAR_ON_TEXT", DefaultRadarOnText),
		RadarOffText:       GetEnvStringOrDefault("RADAR_OFF_TEXT", DefaultRadarOffText),
		RelayRatePerMinute: GetEnvIntOrDefault("RELAY_RATE_PER_MINUTE", DefaultRelayRatePerMinute),

		HealthCheckCron:        GetEnvStringOrDefault("WHATSAPP_HEALTH_CHECK_CRON_SPEC", DefaultHealthCheckCron),
		MirrorCron:             GetEnvStringOrDefault("CREDENTIALS_MIRROR_CRON_SPEC", DefaultMirrorCron),
		VersionRefreshEnabled:  GetEnvBoolOrDefault("WHATSAPP_ENABLE_WAVERSION_REFRESH_CRON", false),
		VersionRefreshCron:     GetEnvStringOrDefault("WHATSAPP_WAVERSION_REFRESH_CRON_SPEC", DefaultVersionRefreshCron),
		VersionRefreshForce:    GetEnvBoolOrDefault("WHATSAPP_WAVERSION_REFRESH_CRON_FORCE", false),
		VersionRefreshInterval: GetEnvDurationOrDefault("WHATSAPP_WAVERSION_REFRESH_MIN_INTERVAL", 6*time.Hour),
	}

	if cfg.PersistDebounce <= 0 {
		cfg.PersistDebounce = DefaultPersistDebounce
	}
	if cfg.RelayRatePerMinute < 0 {
		cfg.RelayRatePerMinute = DefaultRelayRatePerMinute
	}

	return cfg
}

// TelegramSessionPath is where the bot session file lives, next to the
// WhatsApp credentials so both travel with the credential mirror.
func (c Config) TelegramSessionPath() string {
	return filepath.Join(c.CredentialsDir, "telegram_session.json")
}
