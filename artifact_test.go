package vault

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestCSVArtifactWriter_Write(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	w := NewCSVArtifactWriter(dir)
	w.now = fixedClock(time.Date(2024, 3, 9, 14, 5, 7, 123456789, time.UTC))

	path, err := w.Write(context.Background(), RemoteRecord{
		ID:          "a1",
		SourceLabel: "whatsapp",
		Header:      `Mom "home"`,
		Payload:     "call me, now",
		CreatedAt:   "2024-01-01T00:00:00Z",
	})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	if got, want := filepath.Base(path), "whatsapp_a1_140507123456.csv"; got != want {
		t.Errorf("name = %q, want %q", got, want)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	want := "Header,Message,Time\n\"Mom \"\"home\"\"\",\"call me, now\",\"2024-01-01T00:00:00Z\""
	if string(data) != want {
		t.Errorf("content = %q, want %q", data, want)
	}
}

func TestCSVArtifactWriter_DefaultsAndSanitizes(t *testing.T) {
	dir := t.TempDir()
	w := NewCSVArtifactWriter(dir)
	w.now = fixedClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	path, err := w.Write(context.Background(), RemoteRecord{ID: "../../etc/x", CreatedAt: "t"})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Errorf("artifact escaped its directory: %s", path)
	}
	if !strings.HasPrefix(filepath.Base(path), "Unknown_") {
		t.Errorf("name = %q, want Unknown_ prefix", filepath.Base(path))
	}

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), `"No Header","","t"`) {
		t.Errorf("content = %q", data)
	}
}

func TestCSVArtifactWriter_LongMultibyteLabel(t *testing.T) {
	dir := t.TempDir()
	w := NewCSVArtifactWriter(dir)
	w.now = fixedClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	label := strings.Repeat("a", 95) + "é"
	path, err := w.Write(context.Background(), RemoteRecord{ID: "x1", SourceLabel: label, CreatedAt: "t"})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	name := filepath.Base(path)
	if !utf8.ValidString(name) {
		t.Fatalf("artifact name is not valid UTF-8: %q", name)
	}
	if !strings.HasPrefix(name, strings.Repeat("a", 95)+"_x1_") {
		t.Errorf("name = %q", name)
	}
}

func TestCSVArtifactWriter_NeverOverwrites(t *testing.T) {
	dir := t.TempDir()
	w := NewCSVArtifactWriter(dir)
	w.now = fixedClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))

	rec := RemoteRecord{ID: "same", SourceLabel: "sms", CreatedAt: "t"}
	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		rec.Payload = strings.Repeat("x", i+1)
		path, err := w.Write(context.Background(), rec)
		if err != nil {
			t.Fatalf("Write %d: %v", i, err)
		}
		if seen[path] {
			t.Fatalf("path %s reused", path)
		}
		seen[path] = true
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 3 {
		t.Errorf("files = %d, want 3", len(entries))
	}
}

func TestCSVArtifactWriter_DirectoryFailure(t *testing.T) {
	base := t.TempDir()
	blocker := filepath.Join(base, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	w := NewCSVArtifactWriter(filepath.Join(blocker, "sub"))
	_, err := w.Write(context.Background(), RemoteRecord{ID: "a1", CreatedAt: "t"})
	if err == nil {
		t.Fatal("expected error when directory cannot be created")
	}
	if KindOf(err) != KindArtifactWrite {
		t.Errorf("KindOf(err) = %v, want artifact_write", KindOf(err))
	}
}

func TestCSVArtifactWriter_CancelledContext(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewCSVArtifactWriter(dir).Write(ctx, RemoteRecord{ID: "a1", CreatedAt: "t"})
	if KindOf(err) != KindArtifactWrite {
		t.Errorf("KindOf(err) = %v, want artifact_write", KindOf(err))
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("files = %d, want 0", len(entries))
	}
}
