package local

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"kamiscan-backend/internal/shared/storage/object"
)

func TestSaveAndOpenRoundTrip(t *testing.T) {
	store := New(t.TempDir())
	ctx := context.Background()

	key, size, mime, err := store.Save(ctx, "acct-1", "notes.md", strings.NewReader("# Summary\n\nhello"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !object.OwnedBy(key, "acct-1") {
		t.Fatalf("expected key %q in owner namespace", key)
	}
	if size != int64(len("# Summary\n\nhello")) {
		t.Fatalf("unexpected size %d", size)
	}
	if !strings.HasPrefix(mime, "text/plain") {
		t.Fatalf("unexpected mime %q", mime)
	}

	rc, err := store.Open(ctx, key)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	if string(body) != "# Summary\n\nhello" {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestSaveWithKeyRejectsTraversal(t *testing.T) {
	store := New(t.TempDir())
	_, err := store.SaveWithKey(context.Background(), "../escape.txt", "text/plain", strings.NewReader("x"))
	if !errors.Is(err, object.ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
	if _, err := store.Open(context.Background(), "/etc/passwd"); !errors.Is(err, object.ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey for absolute key, got %v", err)
	}
}

func TestSaveRejectsTraversalFileName(t *testing.T) {
	store := New(t.TempDir())
	if _, _, _, err := store.Save(context.Background(), "acct-1", "../x.pdf", strings.NewReader("x")); err == nil {
		t.Fatalf("expected sanitize error")
	}
}
