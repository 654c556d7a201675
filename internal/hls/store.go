package hls

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrNotFound indicates that the requested artifact does not exist on disk.
	ErrNotFound = errors.New("hls: artifact not found")
	// ErrInvalidName indicates a segment or rendition name that is rejected
	// before any path construction takes place.
	ErrInvalidName = errors.New("hls: invalid artifact name")
)

// ManifestFileName is the playlist file written into every rendition
// directory.
const ManifestFileName = "index.m3u8"

// SegmentFilePattern is the ffmpeg segment filename template used inside a
// rendition directory.
const SegmentFilePattern = "segment_%03d.ts"

// Store manages the on-disk HLS artifact tree rooted at
// {root}/hls/{videoID}/{resolution}/.
type Store struct {
	root string
}

// NewStore returns a store rooted at the provided media directory. The
// directory itself is created lazily by EnsureRenditionDir.
func NewStore(root string) *Store {
	return &Store{root: root}
}

// Root returns the media root the store was configured with.
func (s *Store) Root() string {
	return s.root
}

// VideoDir returns the directory holding every rendition of one video.
func (s *Store) VideoDir(videoID string) (string, error) {
	if err := validateName(videoID); err != nil {
		return "", err
	}
	return filepath.Join(s.root, "hls", videoID), nil
}

// RenditionDir returns the directory for one (video, resolution) pair.
func (s *Store) RenditionDir(videoID, resolution string) (string, error) {
	if err := validateName(videoID); err != nil {
		return "", err
	}
	if err := validateName(resolution); err != nil {
		return "", err
	}
	return filepath.Join(s.root, "hls", videoID, resolution), nil
}

// EnsureRenditionDir creates the rendition directory, including parents, and
// returns its path. Creating an existing directory is not an error.
func (s *Store) EnsureRenditionDir(videoID, resolution string) (string, error) {
	dir, err := s.RenditionDir(videoID, resolution)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create rendition directory: %w", err)
	}
	return dir, nil
}

// ManifestPath returns the playlist path for one rendition without touching
// the filesystem.
func (s *Store) ManifestPath(videoID, resolution string) (string, error) {
	dir, err := s.RenditionDir(videoID, resolution)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ManifestFileName), nil
}

// HasManifest reports whether the rendition playlist exists on disk. This is
// the availability signal for the serving boundary: presence of index.m3u8
// marks the rendition ready.
func (s *Store) HasManifest(videoID, resolution string) bool {
	path, err := s.ManifestPath(videoID, resolution)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// ReadManifest returns the raw playlist bytes for one rendition.
func (s *Store) ReadManifest(videoID, resolution string) ([]byte, error) {
	path, err := s.ManifestPath(videoID, resolution)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return data, nil
}

// WriteManifest stores playlist bytes for one rendition, creating the
// rendition directory if necessary.
func (s *Store) WriteManifest(videoID, resolution string, data []byte) error {
	dir, err := s.EnsureRenditionDir(videoID, resolution)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestFileName), data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// SegmentPath validates the segment name and returns its path inside the
// rendition directory. Names carrying path separators or parent references
// never reach path construction.
func (s *Store) SegmentPath(videoID, resolution, segment string) (string, error) {
	dir, err := s.RenditionDir(videoID, resolution)
	if err != nil {
		return "", err
	}
	if err := validateName(segment); err != nil {
		return "", err
	}
	return filepath.Join(dir, segment), nil
}

// OpenSegment opens one segment file for streaming and returns the open
// handle together with its file info. The caller owns the handle.
func (s *Store) OpenSegment(videoID, resolution, segment string) (*os.File, fs.FileInfo, error) {
	path, err := s.SegmentPath(videoID, resolution, segment)
	if err != nil {
		return nil, nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("open segment: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, nil, fmt.Errorf("stat segment: %w", err)
	}
	if !info.Mode().IsRegular() {
		file.Close()
		return nil, nil, ErrNotFound
	}
	return file, info, nil
}

// Purge removes every artifact of one video. Purging a video with no
// artifacts succeeds.
func (s *Store) Purge(videoID string) error {
	dir, err := s.VideoDir(videoID)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("purge artifacts: %w", err)
	}
	return nil
}

func validateName(name string) error {
	if name == "" {
		return ErrInvalidName
	}
	if strings.ContainsAny(name, "/\\") {
		return ErrInvalidName
	}
	if name == "." || name == ".." || strings.Contains(name, "..") {
		return ErrInvalidName
	}
	return nil
}
