package session

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMemoryStore_SaveLoadClear(t *testing.T) {
	store := NewMemoryStore(Credentials{Access: "a1", Refresh: "r1", Username: "knight"})

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Expected no error loading credentials, got %v", err)
	}
	if got.Access != "a1" {
		t.Errorf("Expected access token 'a1', got '%s'", got.Access)
	}

	if err := store.Save(Credentials{Access: "a2", Refresh: "r1"}); err != nil {
		t.Fatalf("Expected no error saving credentials, got %v", err)
	}
	got, _ = store.Load()
	if got.Access != "a2" {
		t.Errorf("Expected access token 'a2', got '%s'", got.Access)
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("Expected no error clearing credentials, got %v", err)
	}
	if _, err := store.Load(); !errors.Is(err, ErrNoCredentials) {
		t.Errorf("Expected ErrNoCredentials after clear, got %v", err)
	}
}

func TestFileStore_RoundTripAndPermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "credentials.yaml")
	store := NewFileStore(path)

	if _, err := store.Load(); !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("Expected ErrNoCredentials for missing file, got %v", err)
	}

	want := Credentials{Access: "access-token", Refresh: "refresh-token", Username: "knight"}
	if err := store.Save(want); err != nil {
		t.Fatalf("Expected no error saving credentials, got %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Expected credentials file to exist, got %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("Expected file mode 0600, got %o", perm)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Expected no error loading credentials, got %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("credentials mismatch (-want +got):\n%s", diff)
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("Expected no error clearing credentials, got %v", err)
	}
	if err := store.Clear(); err != nil {
		t.Errorf("Expected clearing twice to succeed, got %v", err)
	}
	if _, err := store.Load(); !errors.Is(err, ErrNoCredentials) {
		t.Errorf("Expected ErrNoCredentials after clear, got %v", err)
	}
}

func TestFileStore_EmptyFileHasNoCredentials(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.yaml")
	if err := os.WriteFile(path, []byte("username: knight\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := NewFileStore(path).Load(); !errors.Is(err, ErrNoCredentials) {
		t.Errorf("Expected ErrNoCredentials for file without tokens, got %v", err)
	}
}
