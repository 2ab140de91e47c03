package storage

import (
	"bytes"
	"context"
	"testing"
)

func TestPutAndGetRoundtrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "https://cdn.example.com/assets")
	if err != nil {
		t.Fatalf("NewFileStore error: %v", err)
	}
	data := []byte{0x89, 0x50, 0x4e, 0x47}
	url, err := store.Put(context.Background(), "sessions/abc/scene-1/image.png", data, "image/png")
	if err != nil {
		t.Fatalf("Put error: %v", err)
	}
	if url != "https://cdn.example.com/assets/sessions/abc/scene-1/image.png" {
		t.Fatalf("url = %q", url)
	}
	got, contentType, err := store.Get(context.Background(), "sessions/abc/scene-1/image.png")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("Get data mismatch")
	}
	if contentType != "image/png" {
		t.Fatalf("contentType = %q", contentType)
	}
}

func TestPutRejectsTraversal(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "")
	if err != nil {
		t.Fatalf("NewFileStore error: %v", err)
	}
	if _, err := store.Put(context.Background(), "../escape.bin", []byte{1}, ""); err == nil {
		t.Fatal("expected error for traversal key")
	}
	if _, err := store.Put(context.Background(), "   ", []byte{1}, ""); err == nil {
		t.Fatal("expected error for empty key")
	}
}

func TestURLForWithoutBaseURL(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "")
	if err != nil {
		t.Fatalf("NewFileStore error: %v", err)
	}
	if got := store.URLFor("a/b.png"); got != "a/b.png" {
		t.Fatalf("URLFor = %q", got)
	}
}
