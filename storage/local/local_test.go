package local

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kbukum/hvacform/storage"
)

func TestStorage_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewStorage() failed: %v", err)
	}

	if err := s.Upload(ctx, "voice-notes/2026/03/a.webm", strings.NewReader("opus")); err != nil {
		t.Fatalf("Upload() failed: %v", err)
	}
	if ok, err := s.Exists(ctx, "voice-notes/2026/03/a.webm"); err != nil || !ok {
		t.Fatalf("Exists() = %v, %v", ok, err)
	}

	rc, err := s.Download(ctx, "voice-notes/2026/03/a.webm")
	if err != nil {
		t.Fatalf("Download() failed: %v", err)
	}
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(data) != "opus" {
		t.Errorf("Download() = %q", data)
	}

	if err := s.Upload(ctx, "other/b.webm", strings.NewReader("x")); err != nil {
		t.Fatal(err)
	}
	files, err := s.List(ctx, "voice-notes/")
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(files) != 1 || files[0].Path != "voice-notes/2026/03/a.webm" || files[0].Size != 4 {
		t.Errorf("List() = %+v", files)
	}

	if err := s.Delete(ctx, "voice-notes/2026/03/a.webm"); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if err := s.Delete(ctx, "voice-notes/2026/03/a.webm"); err != nil {
		t.Errorf("second Delete() = %v, want nil", err)
	}
	if _, err := s.Download(ctx, "voice-notes/2026/03/a.webm"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Download() after delete = %v, want ErrNotFound", err)
	}
}

func TestStorage_StaysInsideBase(t *testing.T) {
	base := t.TempDir()
	s, err := NewStorage(filepath.Join(base, "archive"))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Upload(context.Background(), "../../escape.webm", strings.NewReader("x")); err != nil {
		t.Fatalf("Upload() failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(base, "archive", "escape.webm")); err != nil {
		t.Errorf("file not kept under base: %v", err)
	}
	if _, err := os.Stat(filepath.Join(base, "escape.webm")); err == nil {
		t.Error("file escaped the base directory")
	}
}
