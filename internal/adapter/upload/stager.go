// Package upload stages uploaded audio on disk for the lifetime of a single
// transcription call.
package upload

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/rl1809/autoparts-inventory/internal/core/domain"
)

var ErrTooLarge = errors.New("upload exceeds size limit")

const defaultFilename = "audio"

// Stager writes uploads into dir under unique names.
type Stager struct {
	dir      string
	maxBytes int64
}

// NewStager creates dir if needed. maxBytes <= 0 disables the size limit.
func NewStager(dir string, maxBytes int64) (*Stager, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("upload: dir is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("upload: create dir: %w", err)
	}
	return &Stager{dir: dir, maxBytes: maxBytes}, nil
}

func (s *Stager) Dir() string {
	return s.dir
}

// WithAudio stages r, hands the staged file to fn as domain.Audio and removes
// the file once fn returns, whatever the outcome.
func (s *Stager) WithAudio(r io.Reader, filename, contentType string, fn func(domain.Audio) error) error {
	path, err := s.stage(r, filename)
	if err != nil {
		return err
	}
	defer os.Remove(path)

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("upload: open staged file: %w", err)
	}
	defer f.Close()

	return fn(domain.Audio{
		Filename:    cleanName(filename),
		ContentType: contentType,
		Content:     f,
	})
}

func (s *Stager) stage(r io.Reader, filename string) (string, error) {
	path := filepath.Join(s.dir, uuid.NewString()+"_"+cleanName(filename))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("upload: create staged file: %w", err)
	}

	src := r
	if s.maxBytes > 0 {
		src = io.LimitReader(r, s.maxBytes+1)
	}
	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return "", fmt.Errorf("upload: write staged file: %w", err)
	}
	if s.maxBytes > 0 && n > s.maxBytes {
		os.Remove(path)
		return "", fmt.Errorf("%w: more than %d bytes", ErrTooLarge, s.maxBytes)
	}
	return path, nil
}

// cleanName keeps only the base name of a client supplied filename.
func cleanName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	if name == "." || name == "/" || name == ".." || strings.TrimSpace(name) == "" {
		return defaultFilename
	}
	return name
}
