// Package sink persists raw timeline pages as they are fetched.
package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// File writes each page as indented JSON to <dir>/raw/<query>/<unix-nanos>.json.
type File struct {
	dir    string
	logger *slog.Logger
	now    func() time.Time
}

// NewFile returns a sink rooted at dir. The directory is created on demand.
func NewFile(dir string, logger *slog.Logger) *File {
	if logger == nil {
		logger = slog.Default()
	}
	return &File{dir: dir, logger: logger, now: time.Now}
}

// SavePage implements twitter.PageSink.
func (f *File) SavePage(_ context.Context, query string, page []byte) error {
	dir := filepath.Join(f.dir, "raw", safeName(query))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create page directory: %w", err)
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, page, "", "  "); err != nil {
		return fmt.Errorf("indent page: %w", err)
	}

	ts := f.now().UnixNano()
	for {
		path := filepath.Join(dir, strconv.FormatInt(ts, 10)+".json")
		file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			ts++
			continue
		}
		if err != nil {
			return fmt.Errorf("create page file: %w", err)
		}
		if _, err := file.Write(buf.Bytes()); err != nil {
			file.Close()
			return fmt.Errorf("write page file: %w", err)
		}
		if err := file.Close(); err != nil {
			return fmt.Errorf("close page file: %w", err)
		}
		f.logger.Debug("page saved", slog.String("path", path), slog.Int("bytes", buf.Len()))
		return nil
	}
}

// Pages returns the saved pages of query, oldest first.
func (f *File) Pages(query string) ([][]byte, error) {
	dir := filepath.Join(f.dir, "raw", safeName(query))
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read page directory: %w", err)
	}

	var pages [][]byte
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read page file: %w", err)
		}
		pages = append(pages, data)
	}
	return pages, nil
}

// safeName makes a query name usable as a single path element or key segment.
func safeName(query string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", "..", "_", ":", "_", " ", "_")
	s := r.Replace(strings.TrimSpace(query))
	if s == "" {
		return "_"
	}
	return s
}
