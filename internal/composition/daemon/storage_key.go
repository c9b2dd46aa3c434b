package daemon

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	storagePassphraseEnv = "LNW_STORAGE_PASSPHRASE"
	storageKeyWrappedEnv = "LNW_STORAGE_KEY_WRAPPED"
	storageKeyFile       = "storage.key"
	storageKeyBytes      = 32
)

var ErrInsecureStorageKeyMode = errors.New("insecure storage key mode is forbidden in production")

// StoragePassphrase returns the secret that seals the file override store.
// Lookup order: LNW_STORAGE_PASSPHRASE, then dataDir/storage.key, then a new
// random key persisted to dataDir/storage.key. Production deployments accept
// the key file only when LNW_STORAGE_KEY_WRAPPED=true and never generate one.
func StoragePassphrase(dataDir string) (string, error) {
	if secret := strings.TrimSpace(os.Getenv(storagePassphraseEnv)); secret != "" {
		return secret, nil
	}
	path := filepath.Join(dataDir, storageKeyFile)
	secret, err := readKeyFile(path)
	if err != nil {
		return "", err
	}
	prod := isProductionEnv()
	if secret != "" {
		if prod && !envTrue(storageKeyWrappedEnv) {
			return "", fmt.Errorf("%w: set %s or mark %s as wrapped with %s=true",
				ErrInsecureStorageKeyMode, storagePassphraseEnv, storageKeyFile, storageKeyWrappedEnv)
		}
		return secret, nil
	}
	if prod {
		return "", fmt.Errorf("%w: %s is required; generating %s is disabled",
			ErrInsecureStorageKeyMode, storagePassphraseEnv, storageKeyFile)
	}

	raw := make([]byte, storageKeyBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate storage key: %w", err)
	}
	secret = base64.RawStdEncoding.EncodeToString(raw)
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(secret), 0o600); err != nil {
		return "", fmt.Errorf("write storage key: %w", err)
	}
	return secret, nil
}

// readKeyFile returns "" for a missing or blank key file.
func readKeyFile(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read storage key: %w", err)
	}
	return strings.TrimSpace(string(raw)), nil
}

func isProductionEnv() bool {
	env := strings.ToLower(strings.TrimSpace(os.Getenv("LNW_ENV")))
	return env == "prod" || env == "production"
}

func envTrue(name string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
