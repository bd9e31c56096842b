package credstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/makc56com-code/tg-wa-bridge-sub000/pkg/log"
)

// Store mirrors the local credential directory to a remote location.
type Store interface {
	Load(ctx context.Context, dir string) bool
	Save(ctx context.Context, dir string)
	Close(ctx context.Context) error
}

type MongoConfig struct {
	URI        string
	Database   string
	Collection string
	Timeout    time.Duration
}

// fileDoc is one credential file. The document id is the file name
// relative to the credential directory; UpdatedAt is the file's mtime.
type fileDoc struct {
	Name      string    `bson:"_id"`
	Data      []byte    `bson:"data"`
	Size      int64     `bson:"size"`
	UpdatedAt time.Time `bson:"updated_at"`
}

var ErrUnsafePath = errors.New("credential file escapes the directory")

// skipFile reports files that are only meaningful while a database handle
// is open.
func skipFile(name string) bool {
	for _, suffix := range []string{"-journal", "-wal", "-shm", ".tmp"} {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

// collectFiles reads every regular file directly under dir.
func collectFiles(dir string) ([]fileDoc, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var docs []fileDoc
	for _, entry := range entries {
		if !entry.Type().IsRegular() || skipFile(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", entry.Name(), err)
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", entry.Name(), err)
		}
		docs = append(docs, fileDoc{
			Name:      entry.Name(),
			Data:      data,
			Size:      int64(len(data)),
			UpdatedAt: info.ModTime().UTC(),
		})
	}
	return docs, nil
}

// writeFiles materializes docs into dir, creating it when missing. A local
// file at least as recent as its mirrored copy is kept. Restored files take
// the mirrored mtime.
func writeFiles(dir string, docs []fileDoc) (written int, kept int, err error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return 0, 0, err
	}

	for _, doc := range docs {
		name := filepath.Base(doc.Name)
		if name != doc.Name || name == "." || name == ".." {
			return written, kept, fmt.Errorf("%w: %q", ErrUnsafePath, doc.Name)
		}

		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.ModTime().Before(doc.UpdatedAt) {
			kept++
			continue
		}

		tmp := path + ".tmp"
		if err := os.WriteFile(tmp, doc.Data, 0o600); err != nil {
			return written, kept, err
		}
		if err := os.Rename(tmp, path); err != nil {
			return written, kept, err
		}
		if !doc.UpdatedAt.IsZero() {
			_ = os.Chtimes(path, doc.UpdatedAt, doc.UpdatedAt)
		}
		written++
	}
	return written, kept, nil
}

type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
	timeout    time.Duration
}

// NewMongoStore connects to the remote mirror. An empty URI yields a
// disabled store that only logs.
func NewMongoStore(ctx context.Context, cfg MongoConfig) (*MongoStore, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.URI == "" {
		log.Component("credstore").Warn("MONGODB_URI is not set, credential mirroring is disabled")
		return &MongoStore{timeout: cfg.Timeout}, nil
	}

	clientOptions := options.Client().
		ApplyURI(cfg.URI).
		SetAppName("tg-wa-bridge").
		SetConnectTimeout(cfg.Timeout).
		SetMaxPoolSize(4)

	connectCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(connectCtx)
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	log.Component("credstore").
		WithField("database", cfg.Database).
		WithField("collection", cfg.Collection).
		Info("Connected to credential mirror")

	return &MongoStore{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
		timeout:    cfg.Timeout,
	}, nil
}

func (s *MongoStore) Enabled() bool {
	return s != nil && s.collection != nil
}

// Load downloads mirrored files into dir, keeping local files that are
// newer. It reports whether dir holds mirrored credentials afterwards.
func (s *MongoStore) Load(ctx context.Context, dir string) bool {
	entry := log.Component("credstore").WithField("dir", dir)
	if !s.Enabled() {
		entry.Warn("Credential mirror disabled, nothing to load")
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cursor, err := s.collection.Find(ctx, bson.D{})
	if err != nil {
		entry.WithError(err).Error("Failed to query credential mirror")
		return false
	}
	var docs []fileDoc
	if err := cursor.All(ctx, &docs); err != nil {
		entry.WithError(err).Error("Failed to decode credential mirror")
		return false
	}

	written, kept, err := writeFiles(dir, docs)
	if err != nil {
		entry.WithError(err).Error("Failed to restore credential files")
		return written+kept > 0
	}
	entry.WithField("files", written).WithField("kept_local", kept).Info("Credential files restored")
	return written+kept > 0
}

// Save uploads every regular file of dir. Errors are logged, never returned.
func (s *MongoStore) Save(ctx context.Context, dir string) {
	entry := log.Component("credstore").WithField("dir", dir)
	if !s.Enabled() {
		entry.Debug("Credential mirror disabled, skipping save")
		return
	}

	docs, err := collectFiles(dir)
	if err != nil {
		entry.WithError(err).Error("Failed to read credential files")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	saved := 0
	for _, doc := range docs {
		_, err := s.collection.ReplaceOne(ctx, bson.D{{Key: "_id", Value: doc.Name}}, doc, options.Replace().SetUpsert(true))
		if err != nil {
			entry.WithError(err).WithField("file", doc.Name).Error("Failed to mirror credential file")
			continue
		}
		saved++
	}
	entry.WithField("files", saved).Debug("Credential files mirrored")
}

func (s *MongoStore) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}
