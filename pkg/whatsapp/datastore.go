package whatsapp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waCompanionReg"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"google.golang.org/protobuf/proto"
	_ "modernc.org/sqlite"

	"github.com/makc56com-code/tg-wa-bridge-sub000/pkg/log"
)

const sqliteFileName = "whatsmeow.db"

type DatastoreConfig struct {
	// Type is sqlite (default) or postgres.
	Type string
	// URI overrides the derived sqlite file DSN.
	URI            string
	CredentialsDir string
	ProxyURL       string
	DeviceName     string
}

// DeviceStore owns the whatsmeow device container and dials sessions for
// its first device.
type DeviceStore struct {
	container *sqlstore.Container
	proxyURL  string
}

func OpenDeviceStore(ctx context.Context, cfg DatastoreConfig) (*DeviceStore, error) {
	driver := normalizeDatastoreDriver(cfg.Type)
	dsn := strings.TrimSpace(cfg.URI)

	if driver == "sqlite" && dsn == "" {
		if err := os.MkdirAll(cfg.CredentialsDir, 0o700); err != nil {
			return nil, fmt.Errorf("create credentials dir: %w", err)
		}
		dsn = "file:" + filepath.Join(cfg.CredentialsDir, sqliteFileName)
	}
	dsn = normalizeDatastoreDSN(driver, dsn)

	log.Component("whatsapp").Info("Initializing WhatsApp datastore with driver=" + driver)

	container, err := sqlstore.New(ctx, driver, dsn, log.WhatsMeow("Database"))
	if err != nil {
		return nil, fmt.Errorf("initialize whatsapp datastore: %w", err)
	}

	applyDeviceProps(cfg.DeviceName)

	return &DeviceStore{
		container: container,
		proxyURL:  strings.TrimSpace(cfg.ProxyURL),
	}, nil
}

func (s *DeviceStore) Dial(ctx context.Context, reset bool) (Session, error) {
	device, err := s.container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("load device: %w", err)
	}

	if reset {
		if device.ID != nil {
			if err := device.Delete(ctx); err != nil {
				return nil, fmt.Errorf("delete device: %w", err)
			}
		}
		device = s.container.NewDevice()
		log.Component("whatsapp").Warn("Credentials reset, a new pairing is required")
	}

	client := whatsmeow.NewClient(device, log.WhatsMeow("Client"))
	if s.proxyURL != "" {
		if err := client.SetProxyAddress(s.proxyURL); err != nil {
			log.Component("whatsapp").WithError(err).Warn("Ignoring invalid WHATSAPP_CLIENT_PROXY_URL")
		}
	}

	// Reconnection is driven by the lifecycle manager.
	client.EnableAutoReconnect = false
	client.AutoTrustIdentity = true

	return &clientSession{client: client}, nil
}

func (s *DeviceStore) Close() error {
	return s.container.Close()
}

func applyDeviceProps(name string) {
	if strings.TrimSpace(name) != "" {
		store.DeviceProps.Os = proto.String(name)
	}
	store.DeviceProps.PlatformType = waCompanionReg.DeviceProps_CHROME.Enum()
	store.DeviceProps.RequireFullSync = proto.Bool(false)
}

func normalizeDatastoreDriver(driver string) string {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "postgresql", "postgres", "pgx":
		return "pgx"
	default:
		return "sqlite"
	}
}

func normalizeDatastoreDSN(driver string, dsn string) string {
	appendParam := func(current string, key string, value string) string {
		separator := "?"
		if strings.Contains(current, "?") {
			if strings.HasSuffix(current, "?") || strings.HasSuffix(current, "&") {
				separator = ""
			} else {
				separator = "&"
			}
		}
		return current + separator + key + "=" + value
	}

	switch driver {
	case "pgx":
		if !strings.Contains(dsn, "default_query_exec_mode=") {
			dsn = appendParam(dsn, "default_query_exec_mode", "simple_protocol")
		}
	case "sqlite":
		for _, pragma := range []string{"foreign_keys(1)", "busy_timeout(5000)"} {
			name := pragma[:strings.IndexByte(pragma, '(')]
			if !strings.Contains(dsn, name) {
				dsn = appendParam(dsn, "_pragma", pragma)
			}
		}
	}
	return dsn
}
