package vault

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/suinrdeveloper-dev/vault/internal/store"
)

// ArtifactWriter materializes a record as a standalone file and returns its path.
type ArtifactWriter interface {
	Write(ctx context.Context, r RemoteRecord) (string, error)
}

// artifactHeader is the first line of every CSV artifact.
const artifactHeader = "Header,Message,Time"

// maxNameCollisions bounds the numeric suffixes tried for a taken file name.
const maxNameCollisions = 1000

// CSVArtifactWriter writes one two-line CSV file per record into Dir.
type CSVArtifactWriter struct {
	Dir string

	now func() time.Time
}

// NewCSVArtifactWriter returns a writer targeting dir.
func NewCSVArtifactWriter(dir string) *CSVArtifactWriter {
	return &CSVArtifactWriter{Dir: dir, now: time.Now}
}

// Write creates a new file named {label}_{id}_{HHMMSS}{micros}.csv. An existing
// file is never overwritten: a numeric suffix is appended instead. A partially
// written file is removed before the error is returned. Every failure is a
// KindArtifactWrite *SyncError.
func (w *CSVArtifactWriter) Write(ctx context.Context, r RemoteRecord) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", recordError(KindArtifactWrite, "write artifact", r.ID, err)
	}
	if err := os.MkdirAll(w.Dir, 0755); err != nil {
		return "", recordError(KindArtifactWrite, "write artifact", r.ID,
			fmt.Errorf("create artifact directory: %w", err))
	}

	f, path, err := w.create(r)
	if err != nil {
		return "", recordError(KindArtifactWrite, "write artifact", r.ID, err)
	}

	if err := writeArtifact(f, r); err != nil {
		f.Close()
		_ = os.Remove(path)
		return "", recordError(KindArtifactWrite, "write artifact", r.ID, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", recordError(KindArtifactWrite, "write artifact", r.ID, fmt.Errorf("close artifact: %w", err))
	}

	return path, nil
}

func (w *CSVArtifactWriter) create(r RemoteRecord) (*os.File, string, error) {
	now := time.Now
	if w.now != nil {
		now = w.now
	}
	t := now()
	base := fmt.Sprintf("%s_%s_%s%06d",
		store.EncodeFileComponent(r.Label()),
		store.EncodeFileComponent(r.ID),
		t.Format("150405"),
		t.Nanosecond()/int(time.Microsecond),
	)

	for i := 0; i < maxNameCollisions; i++ {
		name := base + ".csv"
		if i > 0 {
			name = fmt.Sprintf("%s-%d.csv", base, i)
		}
		path := filepath.Join(w.Dir, name)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			return f, path, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", fmt.Errorf("create artifact: %w", err)
		}
	}
	return nil, "", fmt.Errorf("create artifact: no free name for %s", base)
}

func writeArtifact(f *os.File, r RemoteRecord) error {
	content := artifactHeader + "\n" +
		quoteField(r.HeaderText()) + "," +
		quoteField(r.Payload) + "," +
		quoteField(r.CreatedAt)

	if _, err := f.WriteString(content); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync artifact: %w", err)
	}
	return nil
}

// quoteField always quotes, doubling embedded quotes.
func quoteField(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
