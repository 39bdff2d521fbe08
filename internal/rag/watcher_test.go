package rag

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestWatcher(t *testing.T) (*Watcher, *Service, string) {
	t.Helper()
	svc, _ := newTestService(t, Config{})
	dir := t.TempDir()
	w, err := NewWatcher(WatcherConfig{Service: svc, Dir: dir, Debounce: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	return w, svc, dir
}

func TestWatcherRoute(t *testing.T) {
	w, _, dir := newTestWatcher(t)

	dataset, filename := w.route(filepath.Join(dir, "notes.txt"))
	if dataset != "scratchpad" || filename != "notes.txt" {
		t.Errorf("root file: (%q, %q)", dataset, filename)
	}

	dataset, filename = w.route(filepath.Join(dir, "projects", "plan.md"))
	if dataset != "projects" || filename != "plan.md" {
		t.Errorf("subdir file: (%q, %q)", dataset, filename)
	}

	dataset, filename = w.route(filepath.Join(dir, "core", "a", "b.md"))
	if dataset != "core" || filename != "a/b.md" {
		t.Errorf("nested file: (%q, %q)", dataset, filename)
	}
}

func TestWatcherIngest(t *testing.T) {
	w, svc, dir := newTestWatcher(t)
	ctx := context.Background()

	path := filepath.Join(dir, "note.txt")
	if err := os.WriteFile(path, []byte("première note"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	w.ingest(ctx, path)

	docs, err := svc.ListDocuments(ctx, "scratchpad")
	if err != nil {
		t.Fatalf("ListDocuments() error = %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 document, got %d", len(docs))
	}
	doc := docs[0]
	if doc.Filename != "note.txt" || doc.Content != "première note" {
		t.Errorf("unexpected document: %+v", doc)
	}
	if doc.Metadata.Source != "watcher" {
		t.Errorf("source = %q, want watcher", doc.Metadata.Source)
	}

	// Re-ingesting unchanged content must not bump the version.
	w.ingest(ctx, path)
	got, err := svc.GetDocument(ctx, doc.ID)
	if err != nil {
		t.Fatalf("GetDocument() error = %v", err)
	}
	if got.Version != 1 {
		t.Errorf("unchanged re-ingest bumped version to %d", got.Version)
	}

	// Changed content is a new ingest.
	if err := os.WriteFile(path, []byte("note corrigée"), 0o644); err != nil {
		t.Fatalf("rewrite file: %v", err)
	}
	w.ingest(ctx, path)
	docs, err = svc.ListDocuments(ctx, "scratchpad")
	if err != nil {
		t.Fatalf("ListDocuments() error = %v", err)
	}
	// The leading content participates in the id, so the rewrite is a new
	// document id alongside the first.
	if len(docs) != 2 {
		t.Errorf("expected 2 documents after rewrite, got %d", len(docs))
	}
}

func TestWatcherIngestSubdirectoryDataset(t *testing.T) {
	w, svc, dir := newTestWatcher(t)
	ctx := context.Background()

	sub := filepath.Join(dir, "project")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	path := filepath.Join(sub, "spec.md")
	if err := os.WriteFile(path, []byte("# Plan\ncontenu"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	w.ingest(ctx, path)

	docs, err := svc.ListDocuments(ctx, "projects")
	if err != nil {
		t.Fatalf("ListDocuments() error = %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("alias subdirectory should land in projects, got %d documents", len(docs))
	}
	if docs[0].Filename != "spec.md" {
		t.Errorf("filename = %q", docs[0].Filename)
	}
}

func TestWatcherIngestSkipsBinary(t *testing.T) {
	w, svc, dir := newTestWatcher(t)
	ctx := context.Background()

	path := filepath.Join(dir, "blob.bin")
	if err := os.WriteFile(path, []byte{0xff, 0xfe, 0x00, 0x41}, 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	w.ingest(ctx, path)

	docs, err := svc.ListDocuments(ctx, "")
	if err != nil {
		t.Fatalf("ListDocuments() error = %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("binary file should be skipped, got %d documents", len(docs))
	}
}

func TestWatcherPicksUpDroppedFile(t *testing.T) {
	w, svc, dir := newTestWatcher(t)
	ctx := context.Background()

	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { _ = w.Close() })

	path := filepath.Join(dir, "dropped.txt")
	if err := os.WriteFile(path, []byte("fichier déposé"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		docs, err := svc.ListDocuments(ctx, "scratchpad")
		if err != nil {
			t.Fatalf("ListDocuments() error = %v", err)
		}
		if len(docs) == 1 {
			if docs[0].Content != "fichier déposé" {
				t.Errorf("content = %q", docs[0].Content)
			}
			return
		}
		time.Sleep(25 * time.Millisecond)
	}
	t.Fatal("dropped file was never ingested")
}
