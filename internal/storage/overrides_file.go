package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"sync"

	"lightning-worker/go-backend/internal/securestore"
)

const overridesFileVersion = 1

// FileOverrides keeps all overrides in one encrypted JSON snapshot. Every
// write replaces the whole file.
type FileOverrides struct {
	mu     sync.Mutex
	path   string
	secret string
	values map[string]string
}

type persistedOverrides struct {
	Version int               `json:"version"`
	Values  map[string]string `json:"values"`
}

func OpenFileOverrides(path, secret string) (*FileOverrides, error) {
	if !securestore.IsConfigured(path, secret) {
		return nil, errors.New("storage: file overrides need a path and a secret")
	}
	f := &FileOverrides{path: path, secret: secret, values: map[string]string{}}
	plain, err := securestore.ReadDecryptedFile(path, secret)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return f, nil
		}
		return nil, err
	}
	var state persistedOverrides
	if err := json.Unmarshal(plain, &state); err != nil {
		return nil, err
	}
	if state.Version != overridesFileVersion {
		return nil, errors.New("storage: overrides file payload is invalid")
	}
	if state.Values != nil {
		f.values = state.Values
	}
	return f, nil
}

func (f *FileOverrides) Get(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	return v, ok, nil
}

func (f *FileOverrides) Set(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	prev, had := f.values[key]
	f.values[key] = value
	if err := f.persistLocked(); err != nil {
		if had {
			f.values[key] = prev
		} else {
			delete(f.values, key)
		}
		return err
	}
	return nil
}

func (f *FileOverrides) Remove(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	prev, had := f.values[key]
	if !had {
		return nil
	}
	delete(f.values, key)
	if err := f.persistLocked(); err != nil {
		f.values[key] = prev
		return err
	}
	return nil
}

func (f *FileOverrides) persistLocked() error {
	if err := securestore.WriteEncryptedJSON(f.path, f.secret, persistedOverrides{
		Version: overridesFileVersion,
		Values:  f.values,
	}); err != nil {
		return err
	}
	return os.Chmod(f.path, 0o600)
}
