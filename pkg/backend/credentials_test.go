package backend

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestStaticCredential(t *testing.T) {
	c := StaticCredential("sk-static")
	if c.Get() != "sk-static" {
		t.Errorf("Get() = %q", c.Get())
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
}

func TestFileCredentialInitialRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key")
	if err := os.WriteFile(path, []byte("sk-initial\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	c, err := NewFileCredential(path)
	if err != nil {
		t.Fatalf("NewFileCredential failed: %v", err)
	}
	defer c.Close()

	if c.Get() != "sk-initial" {
		t.Errorf("Get() = %q, want trimmed file contents", c.Get())
	}
}

func TestFileCredentialReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key")
	if err := os.WriteFile(path, []byte("sk-old"), 0o600); err != nil {
		t.Fatal(err)
	}

	c, err := NewFileCredential(path)
	if err != nil {
		t.Fatalf("NewFileCredential failed: %v", err)
	}
	defer c.Close()

	if err := os.WriteFile(path, []byte("sk-new"), 0o600); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(2 * time.Second)
	for c.Get() != "sk-new" {
		select {
		case <-deadline:
			t.Fatalf("credential not reloaded, Get() = %q", c.Get())
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestFileCredentialKeepsValueOnBadReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key")
	if err := os.WriteFile(path, []byte("sk-good"), 0o600); err != nil {
		t.Fatal(err)
	}

	c, err := NewFileCredential(path)
	if err != nil {
		t.Fatalf("NewFileCredential failed: %v", err)
	}
	defer c.Close()

	// An empty file is rejected; the previous value stays in effect.
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatal(err)
	}

	time.Sleep(100 * time.Millisecond)
	if c.Get() != "sk-good" {
		t.Errorf("Get() = %q, want previous value retained", c.Get())
	}
}

func TestFileCredentialEmptyFileRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key")
	if err := os.WriteFile(path, []byte("  \n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := NewFileCredential(path); err == nil {
		t.Error("empty credential file accepted")
	}
}

func TestNewCredentialSourceSelection(t *testing.T) {
	src, err := NewCredentialSource(Config{APIKey: "sk-inline"})
	if err != nil {
		t.Fatalf("inline source failed: %v", err)
	}
	if _, ok := src.(StaticCredential); !ok {
		t.Errorf("source = %T, want StaticCredential", src)
	}

	path := filepath.Join(t.TempDir(), "key")
	if err := os.WriteFile(path, []byte("sk-file"), 0o600); err != nil {
		t.Fatal(err)
	}
	src, err = NewCredentialSource(Config{APIKey: "ignored", APIKeyFile: path})
	if err != nil {
		t.Fatalf("file source failed: %v", err)
	}
	defer src.Close()
	if _, ok := src.(*FileCredential); !ok {
		t.Errorf("source = %T, want *FileCredential", src)
	}
	if src.Get() != "sk-file" {
		t.Errorf("file beats inline: Get() = %q", src.Get())
	}
}
