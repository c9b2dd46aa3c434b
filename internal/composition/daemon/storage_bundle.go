package daemon

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"lightning-worker/go-backend/internal/settings"
	"lightning-worker/go-backend/internal/storage"
)

// Backend selects where setting overrides are persisted.
type Backend string

const (
	BackendSQLite Backend = "sqlite"
	BackendFile   Backend = "file"
	BackendMemory Backend = "memory"
)

func ParseBackend(raw string) (Backend, error) {
	switch b := Backend(strings.ToLower(strings.TrimSpace(raw))); b {
	case "":
		return BackendSQLite, nil
	case BackendSQLite, BackendFile, BackendMemory:
		return b, nil
	default:
		return "", fmt.Errorf("unknown overrides backend %q (want sqlite, file or memory)", raw)
	}
}

// StorageBundle is the opened override store plus whatever must be released
// on shutdown.
type StorageBundle struct {
	Overrides settings.OverrideStore
	Backend   Backend
	Path      string
	close     func() error
}

func (b StorageBundle) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

func BuildStorageBundle(ctx context.Context, dataDir string, backend Backend) (StorageBundle, error) {
	switch backend {
	case BackendMemory:
		return StorageBundle{Overrides: storage.NewMemoryOverrides(), Backend: backend}, nil
	case BackendFile:
		secret, err := StoragePassphrase(dataDir)
		if err != nil {
			return StorageBundle{}, err
		}
		path := filepath.Join(dataDir, "settings.enc")
		store, err := storage.OpenFileOverrides(path, secret)
		if err != nil {
			return StorageBundle{}, fmt.Errorf("open file overrides: %w", err)
		}
		return StorageBundle{Overrides: store, Backend: backend, Path: path}, nil
	case BackendSQLite, "":
		path := filepath.Join(dataDir, "settings.db")
		store, err := storage.OpenSQLiteOverrides(ctx, path)
		if err != nil {
			return StorageBundle{}, err
		}
		return StorageBundle{Overrides: store, Backend: BackendSQLite, Path: path, close: store.Close}, nil
	default:
		return StorageBundle{}, fmt.Errorf("unknown overrides backend %q", backend)
	}
}
