package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"lightning-worker/go-backend/internal/securestore"
	"lightning-worker/go-backend/internal/settings"
	"lightning-worker/go-backend/internal/testutil/fsperm"
)

var (
	_ settings.OverrideStore = (*MemoryOverrides)(nil)
	_ settings.OverrideStore = (*SQLiteOverrides)(nil)
	_ settings.OverrideStore = (*FileOverrides)(nil)
)

func exerciseOverrideStore(t *testing.T, store settings.OverrideStore) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := store.Get(ctx, "USER_SETTINGS_network"); err != nil || ok {
		t.Fatalf("expected missing key, ok=%v err=%v", ok, err)
	}
	if err := store.Set(ctx, "USER_SETTINGS_network", "signet"); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := store.Set(ctx, "USER_SETTINGS_lsp", ""); err != nil {
		t.Fatalf("set empty failed: %v", err)
	}
	got, ok, err := store.Get(ctx, "USER_SETTINGS_network")
	if err != nil || !ok || got != "signet" {
		t.Fatalf("unexpected network override: %q ok=%v err=%v", got, ok, err)
	}
	got, ok, err = store.Get(ctx, "USER_SETTINGS_lsp")
	if err != nil || !ok || got != "" {
		t.Fatalf("empty value must be stored distinctly from absent: %q ok=%v err=%v", got, ok, err)
	}
	if err := store.Set(ctx, "USER_SETTINGS_network", "bitcoin"); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	if got, _, _ := store.Get(ctx, "USER_SETTINGS_network"); got != "bitcoin" {
		t.Fatalf("expected overwritten value, got %q", got)
	}
	if err := store.Remove(ctx, "USER_SETTINGS_network"); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if err := store.Remove(ctx, "USER_SETTINGS_missing"); err != nil {
		t.Fatalf("remove of missing key must be a no-op: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "USER_SETTINGS_network"); ok {
		t.Fatal("expected removed key to be absent")
	}
}

func TestMemoryOverrides(t *testing.T) {
	exerciseOverrideStore(t, NewMemoryOverrides())
}

func TestSQLiteOverrides(t *testing.T) {
	store, err := OpenSQLiteOverrides(context.Background(), filepath.Join(t.TempDir(), "settings.db"))
	if err != nil {
		t.Fatalf("open sqlite overrides: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	exerciseOverrideStore(t, store)

	all, err := store.All(context.Background())
	if err != nil {
		t.Fatalf("list overrides: %v", err)
	}
	if len(all) != 1 || all["USER_SETTINGS_lsp"] != "" {
		t.Fatalf("unexpected remaining overrides: %#v", all)
	}
}

func TestSQLiteOverridesPersistAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "settings.db")
	store, err := OpenSQLiteOverrides(ctx, path)
	if err != nil {
		t.Fatalf("open sqlite overrides: %v", err)
	}
	if err := store.Set(ctx, "USER_SETTINGS_proxy", "/ws"); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	fsperm.AssertPrivateDirPerm(t, filepath.Dir(path))

	reopened, err := OpenSQLiteOverrides(ctx, path)
	if err != nil {
		t.Fatalf("reopen sqlite overrides: %v", err)
	}
	defer reopened.Close()
	if got, ok, err := reopened.Get(ctx, "USER_SETTINGS_proxy"); err != nil || !ok || got != "/ws" {
		t.Fatalf("override lost across reopen: %q ok=%v err=%v", got, ok, err)
	}
}

func TestOpenSQLiteOverridesRequiresPath(t *testing.T) {
	if _, err := OpenSQLiteOverrides(context.Background(), "  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestFileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overrides.enc")
	store, err := OpenFileOverrides(path, "pass")
	if err != nil {
		t.Fatalf("open file overrides: %v", err)
	}
	exerciseOverrideStore(t, store)
	fsperm.AssertPrivateFilePerm(t, path)

	reopened, err := OpenFileOverrides(path, "pass")
	if err != nil {
		t.Fatalf("reopen file overrides: %v", err)
	}
	if got, ok, _ := reopened.Get(context.Background(), "USER_SETTINGS_lsp"); !ok || got != "" {
		t.Fatalf("expected persisted empty override, got %q ok=%v", got, ok)
	}
}

func TestFileOverridesWrongSecretFailsAuth(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overrides.enc")
	store, err := OpenFileOverrides(path, "pass")
	if err != nil {
		t.Fatalf("open file overrides: %v", err)
	}
	if err := store.Set(context.Background(), "USER_SETTINGS_network", "signet"); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if _, err := OpenFileOverrides(path, "other"); !errors.Is(err, securestore.ErrAuthFailed) {
		t.Fatalf("expected auth failure, got %v", err)
	}
}

func TestFileOverridesFileIsNotPlaintext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overrides.enc")
	store, err := OpenFileOverrides(path, "pass")
	if err != nil {
		t.Fatalf("open file overrides: %v", err)
	}
	if err := store.Set(context.Background(), "USER_SETTINGS_auth", "https://auth.example"); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if string(raw) == "" || strings.Contains(string(raw), "auth.example") {
		t.Fatal("override file leaks plaintext values")
	}
}
