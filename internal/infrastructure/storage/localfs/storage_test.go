package localfs

import (
	"context"
	"io"
	"strings"
	"testing"
)

func TestSaveAndOpenRoundTrip(t *testing.T) {
	storage, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := storage.Save(context.Background(), "doc-1_spec.md", strings.NewReader("signup flow")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	rc, err := storage.Open(context.Background(), "doc-1_spec.md")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer rc.Close()

	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != "signup flow" {
		t.Fatalf("content mismatch: %q", got)
	}
}

func TestOpenMissingKeyFails(t *testing.T) {
	storage, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := storage.Open(context.Background(), "nope.txt"); err == nil {
		t.Fatalf("expected error for missing key")
	}
}

func TestTraversalKeysRejected(t *testing.T) {
	storage, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	for _, key := range []string{"", "../escape.txt", "a/b.txt", `a\b.txt`} {
		if err := storage.Save(context.Background(), key, strings.NewReader("x")); err == nil {
			t.Errorf("Save(%q) must reject the key", key)
		}
		if _, err := storage.Open(context.Background(), key); err == nil {
			t.Errorf("Open(%q) must reject the key", key)
		}
	}
}
