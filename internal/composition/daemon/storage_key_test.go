package daemon

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"lightning-worker/go-backend/internal/testutil/fsperm"
)

func TestStoragePassphrasePrefersEnv(t *testing.T) {
	t.Setenv(storagePassphraseEnv, "from-env")
	dataDir := t.TempDir()

	secret, err := StoragePassphrase(dataDir)
	if err != nil {
		t.Fatalf("passphrase: %v", err)
	}
	if secret != "from-env" {
		t.Fatalf("unexpected secret %q", secret)
	}
	if _, err := os.Stat(filepath.Join(dataDir, storageKeyFile)); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("env secret must not be written to disk, stat err=%v", err)
	}
}

func TestStoragePassphraseGeneratesAndReusesKeyFile(t *testing.T) {
	t.Setenv(storagePassphraseEnv, "")
	t.Setenv("LNW_ENV", "development")
	dataDir := t.TempDir()

	first, err := StoragePassphrase(dataDir)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	fsperm.AssertPrivateFilePerm(t, filepath.Join(dataDir, storageKeyFile))
	second, err := StoragePassphrase(dataDir)
	if err != nil {
		t.Fatalf("reuse: %v", err)
	}
	if first == "" || first != second {
		t.Fatalf("expected stable generated key, got %q then %q", first, second)
	}
}

func TestStoragePassphraseProductionPolicy(t *testing.T) {
	t.Setenv(storagePassphraseEnv, "")
	t.Setenv("LNW_ENV", "production")
	t.Setenv(storageKeyWrappedEnv, "")

	if _, err := StoragePassphrase(t.TempDir()); !errors.Is(err, ErrInsecureStorageKeyMode) {
		t.Fatalf("expected generation to be refused in production, got %v", err)
	}

	dataDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dataDir, storageKeyFile), []byte("raw"), 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}
	if _, err := StoragePassphrase(dataDir); !errors.Is(err, ErrInsecureStorageKeyMode) {
		t.Fatalf("expected raw key file to be refused in production, got %v", err)
	}

	t.Setenv(storageKeyWrappedEnv, "true")
	secret, err := StoragePassphrase(dataDir)
	if err != nil || secret != "raw" {
		t.Fatalf("wrapped key flow should accept the key file, got %q err=%v", secret, err)
	}
}
