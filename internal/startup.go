package internal

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/makc56com-code/tg-wa-bridge-sub000/pkg/bus"
	"github.com/makc56com-code/tg-wa-bridge-sub000/pkg/credstore"
	"github.com/makc56com-code/tg-wa-bridge-sub000/pkg/env"
	"github.com/makc56com-code/tg-wa-bridge-sub000/pkg/log"
	"github.com/makc56com-code/tg-wa-bridge-sub000/pkg/telegram"
	pkgWhatsApp "github.com/makc56com-code/tg-wa-bridge-sub000/pkg/whatsapp"
)

// App holds the long-lived components shared by routes and routines.
type App struct {
	Config   env.Config
	Bus      *bus.Bus
	Mirror   *credstore.Mirror
	Devices  *pkgWhatsApp.DeviceStore
	Bridge   *pkgWhatsApp.Bridge
	Telegram *telegram.Client

	cancel       context.CancelFunc
	telegramDone chan struct{}
}

func bridgeConfig(cfg env.Config) pkgWhatsApp.Config {
	return pkgWhatsApp.Config{
		Group:              pkgWhatsApp.GroupConfig{ID: cfg.GroupID, Name: cfg.GroupName},
		Texts:              pkgWhatsApp.ServiceTexts{On: cfg.RadarOnText, Off: cfg.RadarOffText},
		RadarEnabled:       cfg.RadarEnabled,
		RelayRatePerMinute: cfg.RelayRatePerMinute,
		QRTerminal:         cfg.QRTerminal,
	}
}

// Startup restores credentials, opens the device store and starts the
// WhatsApp session and the Telegram adapter.
func Startup(cfg env.Config) (*App, error) {
	log.Print(nil).Info("Running Startup Tasks")

	ctx, cancel := context.WithCancel(context.Background())
	a := &App{Config: cfg, Bus: bus.New(), cancel: cancel}

	if err := os.MkdirAll(cfg.CredentialsDir, 0o700); err != nil {
		cancel()
		return nil, err
	}

	store, err := credstore.NewMongoStore(ctx, credstore.MongoConfig{
		URI:        cfg.MongoURI,
		Database:   cfg.MongoDatabase,
		Collection: cfg.MongoCollection,
	})
	if err != nil {
		log.Print(nil).WithError(err).Warn("Credential mirror unavailable, continuing with local credentials only")
		store, _ = credstore.NewMongoStore(ctx, credstore.MongoConfig{})
	}
	a.Mirror = credstore.NewMirror(store, cfg.CredentialsDir, cfg.PersistDebounce)

	hydrateCtx, hydrateCancel := context.WithTimeout(ctx, time.Minute)
	a.Mirror.Hydrate(hydrateCtx)
	hydrateCancel()

	a.Devices, err = pkgWhatsApp.OpenDeviceStore(ctx, pkgWhatsApp.DatastoreConfig{
		Type:           cfg.DatastoreType,
		URI:            cfg.DatastoreURI,
		CredentialsDir: cfg.CredentialsDir,
		ProxyURL:       cfg.ProxyURL,
		DeviceName:     cfg.DeviceName,
	})
	if err != nil {
		cancel()
		return nil, err
	}

	versions := pkgWhatsApp.NewVersionRefresher(cfg.VersionRefreshInterval)
	a.Bridge = pkgWhatsApp.NewBridge(bridgeConfig(cfg), a.Devices, a.Bus, a.Mirror, versions)
	go a.Bridge.Start(false)

	a.Telegram, err = telegram.New(telegram.Config{
		AppID:       cfg.TelegramAppID,
		AppHash:     cfg.TelegramAppHash,
		BotToken:    cfg.TelegramBotToken,
		SessionPath: cfg.TelegramSessionPath(),
		SourceID:    cfg.TelegramSourceID,
		NotifyPeer:  cfg.TelegramNotifyPeer,
	}, a.Bus, a.Mirror.Request)
	switch {
	case errors.Is(err, telegram.ErrNotConfigured):
		log.Print(nil).Warn("Telegram is not configured (TELEGRAM_API_ID, TELEGRAM_API_HASH, TELEGRAM_BOT_TOKEN), source relay disabled")
	case err != nil:
		log.Print(nil).WithError(err).Error("Failed to initialize Telegram client")
	default:
		a.telegramDone = make(chan struct{})
		go func() {
			defer close(a.telegramDone)
			a.Telegram.Serve(ctx)
		}()
	}

	return a, nil
}

// Shutdown stops the session and the Telegram adapter, closes the device
// database and uploads the final credential files.
func (a *App) Shutdown(ctx context.Context) {
	a.Bridge.Stop()
	a.cancel()

	if a.telegramDone != nil {
		select {
		case <-a.telegramDone:
		case <-ctx.Done():
			log.Print(nil).Warn("Telegram client did not stop in time")
		}
	}

	if err := a.Devices.Close(); err != nil {
		log.Print(nil).WithError(err).Error("Failed to close WhatsApp datastore")
	}
	if err := a.Mirror.Close(ctx); err != nil {
		log.Print(nil).WithError(err).Error("Failed to close credential mirror")
	}
}
