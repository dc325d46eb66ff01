package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/JaymarM28/kari-transcriptor/domain"
)

func newTestStorage(t *testing.T) *LocalStorage {
	t.Helper()
	s, err := NewLocalStorage(filepath.Join(t.TempDir(), "uploads"), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewLocalStorage() error = %v", err)
	}
	s.newID = func() string { return "0b6f8c1e" }
	return s
}

func TestSaveAndResolve(t *testing.T) {
	s := newTestStorage(t)

	job, err := s.Save(context.Background(), "My Interview.MP3", strings.NewReader("ID3 audio"))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if job.ID != "0b6f8c1e_My_Interview.MP3" {
		t.Errorf("Expected ID 0b6f8c1e_My_Interview.MP3, got %s", job.ID)
	}
	if job.Extension != "mp3" {
		t.Errorf("Expected extension mp3, got %s", job.Extension)
	}

	data, err := os.ReadFile(job.SourcePath)
	if err != nil || string(data) != "ID3 audio" {
		t.Errorf("Expected stored content, got %q (%v)", data, err)
	}

	resolved, err := s.Resolve(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if resolved.SourcePath != job.SourcePath {
		t.Errorf("Expected path %s, got %s", job.SourcePath, resolved.SourcePath)
	}
}

func TestSaveKeepsExtensionOfUnicodeName(t *testing.T) {
	s := newTestStorage(t)

	job, err := s.Save(context.Background(), "日本語.wav", strings.NewReader("RIFF"))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if job.ID != "0b6f8c1e_upload.wav" {
		t.Errorf("Expected fallback name, got %s", job.ID)
	}
}

func TestSaveCancelled(t *testing.T) {
	s := newTestStorage(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Save(ctx, "a.wav", strings.NewReader("RIFF")); !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}

	entries, _ := os.ReadDir(s.Dir())
	if len(entries) != 0 {
		t.Errorf("Expected partial upload to be removed, found %d files", len(entries))
	}
}

func TestResolveRejects(t *testing.T) {
	s := newTestStorage(t)
	if err := os.Mkdir(filepath.Join(s.Dir(), "nested"), 0o755); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"", "missing.wav", "../etc/passwd", "..", "nested"} {
		t.Run(name, func(t *testing.T) {
			if _, err := s.Resolve(context.Background(), name); !errors.Is(err, domain.ErrUploadNotFound) {
				t.Errorf("Resolve(%q) error = %v, want ErrUploadNotFound", name, err)
			}
		})
	}
}

func TestExpireUploads(t *testing.T) {
	s := newTestStorage(t)
	now := time.Now()
	s.now = func() time.Time { return now }

	write := func(name string, age time.Duration) {
		path := filepath.Join(s.Dir(), name)
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		mod := now.Add(-age)
		if err := os.Chtimes(path, mod, mod); err != nil {
			t.Fatal(err)
		}
	}
	write("old.wav", 48*time.Hour)
	write("old-active.wav", 48*time.Hour)
	write("fresh.wav", time.Minute)

	removed, err := s.ExpireUploads(context.Background(), 24*time.Hour, func(name string) bool {
		return name == "old-active.wav"
	})
	if err != nil {
		t.Fatalf("ExpireUploads() error = %v", err)
	}
	if removed != 1 {
		t.Errorf("Expected 1 removal, got %d", removed)
	}

	for name, want := range map[string]bool{"old.wav": false, "old-active.wav": true, "fresh.wav": true} {
		_, err := os.Stat(filepath.Join(s.Dir(), name))
		if exists := err == nil; exists != want {
			t.Errorf("%s exists = %v, want %v", name, exists, want)
		}
	}
}

func TestSecureFilename(t *testing.T) {
	tests := map[string]string{
		"My cool movie.mov":    "My_cool_movie.mov",
		"../../../etc/passwd":  "etc_passwd",
		"canción número 1.mp3": "cancion_numero_1.mp3",
		"  .hidden.wav ":       "hidden.wav",
		"日本語.wav":              "wav",
	}

	for in, want := range tests {
		if got := SecureFilename(in); got != want {
			t.Errorf("SecureFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
