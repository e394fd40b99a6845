package auth

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sidetrack-cli/sidetrack/pkg/spotify"
)

func TestStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	store := NewStore(path)

	token := &spotify.Token{
		AccessToken:  "access",
		RefreshToken: "refresh",
		Expiry:       time.Now().Add(1 * time.Hour).Truncate(time.Second),
	}
	if err := store.Persist(token); err != nil {
		t.Fatalf("Persist: %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected a token")
	}
	if loaded.AccessToken != token.AccessToken || loaded.RefreshToken != token.RefreshToken {
		t.Errorf("loaded = %+v, want %+v", loaded, token)
	}
	if !loaded.Expiry.Equal(token.Expiry) {
		t.Errorf("expiry = %v, want %v", loaded.Expiry, token.Expiry)
	}
}

func TestLoad_MissingFileIsNil(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "missing.json"))

	token, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if token != nil {
		t.Errorf("token = %+v, want nil", token)
	}
}

func TestPersist_OwnerOnlyPermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	store := NewStore(path)

	if err := store.Persist(&spotify.Token{AccessToken: "a"}); err != nil {
		t.Fatalf("Persist: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("perm = %o, want 0600", perm)
	}
}

func TestClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	store := NewStore(path)

	if err := store.Persist(&spotify.Token{AccessToken: "a"}); err != nil {
		t.Fatalf("Persist: %v", err)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("token file still exists")
	}

	// Clearing again is a no-op.
	if err := store.Clear(); err != nil {
		t.Errorf("Clear (again): %v", err)
	}
}
