// Package voicemail persists recorded voicemail audio and runs the
// download-then-notify pipeline for recording-ready callbacks.
package voicemail

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Store persists voicemail audio files on disk and derives the public URLs
// they are served back under. Files persist indefinitely; there is no expiry.
type Store struct {
	dir     string
	baseURL string
}

// NewStore creates the recording directory under dataDir if needed.
// publicBaseURL is the externally reachable base for shareable links,
// without a trailing slash.
func NewStore(dataDir, publicBaseURL string) (*Store, error) {
	dir := filepath.Join(dataDir, "recordings")
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("creating recording directory: %w", err)
	}
	return &Store{
		dir:     dir,
		baseURL: strings.TrimRight(publicBaseURL, "/"),
	}, nil
}

// Filename derives a storage filename from the provider recording SID.
// SIDs are unique per recording, so concurrent callbacks never collide.
// A missing SID falls back to a random name.
func Filename(recordingSID string) string {
	if recordingSID != "" && safeName(recordingSID) {
		return recordingSID + ".mp3"
	}
	return uuid.NewString() + ".mp3"
}

// Save writes audio bytes under name and returns the full file path.
func (s *Store) Save(name string, r io.Reader) (string, error) {
	if !safeName(name) {
		return "", fmt.Errorf("unsafe recording filename %q", name)
	}

	path := filepath.Join(s.dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating recording file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("writing recording file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing recording file: %w", err)
	}
	return path, nil
}

// Open returns a reader for a stored recording.
func (s *Store) Open(name string) (*os.File, error) {
	if !safeName(name) {
		return nil, fmt.Errorf("unsafe recording filename %q", name)
	}
	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		return nil, fmt.Errorf("opening recording file: %w", err)
	}
	return f, nil
}

// PublicURL returns the shareable link a stored file is served under.
func (s *Store) PublicURL(name string) string {
	return s.baseURL + "/recordings/" + name
}

// Dir returns the directory recordings are stored in.
func (s *Store) Dir() string {
	return s.dir
}

// Count returns the number of stored recordings.
func (s *Store) Count() (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("reading recording directory: %w", err)
	}
	n := 0
	for _, e := range entries {
		if !e.IsDir() {
			n++
		}
	}
	return n, nil
}

// safeName rejects names that could escape the recording directory or
// confuse the static file handler.
func safeName(name string) bool {
	if name == "" || len(name) > 128 {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.':
		default:
			return false
		}
	}
	return !strings.Contains(name, "..")
}
