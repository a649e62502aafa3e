package storage

import (
	"context"
	"fmt"

	"github.com/dgellow/cpa-front/internal/crypto"
	"github.com/dgellow/cpa-front/internal/log"
)

// Kind names a storage backend
type Kind string

const (
	KindMemory    Kind = "memory"
	KindFile      Kind = "file"
	KindSQLite    Kind = "sqlite"
	KindRedis     Kind = "redis"
	KindFirestore Kind = "firestore"
)

// Options selects and configures a backend for Open
type Options struct {
	Kind          Kind
	Path          string // file and sqlite
	Namespace     string
	EncryptionKey string
	Redis         RedisOptions
	Firestore     FirestoreOptions
}

// Open builds the configured store. Remote backends must be given an encryption key;
// local ones are encrypted only when a key is set.
func Open(ctx context.Context, opts Options) (Store, error) {
	var (
		store  Store
		err    error
		remote bool
	)

	switch opts.Kind {
	case KindMemory, "":
		store = NewMemoryStore()
	case KindFile:
		store, err = NewFileStore(opts.Path)
	case KindSQLite:
		store, err = NewSQLiteStore(ctx, opts.Path, opts.Namespace)
	case KindRedis:
		remote = true
		if opts.EncryptionKey == "" {
			return nil, fmt.Errorf("encryption key is required for %s storage", opts.Kind)
		}
		ro := opts.Redis
		if ro.Namespace == "" {
			ro.Namespace = opts.Namespace
		}
		store, err = NewRedisStore(ctx, ro)
	case KindFirestore:
		remote = true
		if opts.EncryptionKey == "" {
			return nil, fmt.Errorf("encryption key is required for %s storage", opts.Kind)
		}
		fo := opts.Firestore
		if fo.Namespace == "" {
			fo.Namespace = opts.Namespace
		}
		store, err = NewFirestoreStore(ctx, fo)
	default:
		return nil, fmt.Errorf("unknown storage kind %q", opts.Kind)
	}
	if err != nil {
		return nil, err
	}

	if opts.EncryptionKey != "" {
		enc, err := crypto.NewEncryptor([]byte(opts.EncryptionKey))
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("creating encryptor: %w", err)
		}
		store, err = NewEncryptedStore(store, enc)
		if err != nil {
			return nil, err
		}
	}

	log.LogDebugWithFields("storage", "Session store opened", map[string]any{
		"kind":      string(opts.Kind),
		"remote":    remote,
		"encrypted": opts.EncryptionKey != "",
	})
	return store, nil
}
