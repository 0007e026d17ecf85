package myaudio

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tphakala/screamguard/internal/errors"
	"github.com/tphakala/screamguard/internal/logger"
)

// ClipStore saves uploaded clips as files in a private upload directory.
type ClipStore struct {
	dir string
	log logger.Logger
}

// StoredClip is an uploaded clip on disk. Release removes the file and is safe
// to call more than once.
type StoredClip struct {
	ID   string
	Path string
	Name string // sanitised original name
	Size int64

	store       *ClipStore
	releaseOnce sync.Once
	releaseErr  error
}

// NewClipStore creates the upload directory if needed.
func NewClipStore(dir string, log logger.Logger) (*ClipStore, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, errors.New(err).
			Component("myaudio").
			Category(errors.CategoryFileIO).
			Context("operation", "create_upload_dir").
			Context("dir", dir).
			Build()
	}
	return &ClipStore{dir: dir, log: log.Module("clipstore")}, nil
}

// Dir returns the upload directory.
func (s *ClipStore) Dir() string {
	return s.dir
}

// Save writes r to a new file named after prefix and the original file name.
func (s *ClipStore) Save(r io.Reader, prefix, originalName string) (*StoredClip, error) {
	id := uuid.NewString()
	name := SanitizeFilename(originalName)
	if name == "" {
		name = "clip.wav"
	}
	fileName := fmt.Sprintf("%s_%s_%s_%s", prefix, time.Now().Format("20060102_150405"), id[:8], name)
	path := filepath.Join(s.dir, fileName)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, s.fileError(err, "create_clip", path)
	}

	size, copyErr := io.Copy(f, r)
	closeErr := f.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(path)
		return nil, s.fileError(errors.Join(copyErr, closeErr), "write_clip", path)
	}

	s.log.Debug("clip saved",
		logger.String("clip_id", id),
		logger.String("path", path),
		logger.Int64("size", size))

	return &StoredClip{ID: id, Path: path, Name: name, Size: size, store: s}, nil
}

// Purge removes every file in the upload directory. It runs at startup to
// clear clips left behind by a crash.
func (s *ClipStore) Purge() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return s.fileError(err, "purge_uploads", s.dir)
	}

	var errs []error
	removed := 0
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(s.dir, entry.Name())); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}

	if removed > 0 {
		s.log.Info("purged leftover uploads", logger.Int("count", removed))
	}
	if len(errs) > 0 {
		return s.fileError(errors.Join(errs...), "purge_uploads", s.dir)
	}
	return nil
}

func (s *ClipStore) fileError(err error, operation, path string) error {
	return errors.New(err).
		Component("myaudio").
		Category(errors.CategoryFileIO).
		Context("operation", operation).
		Context("path", path).
		Build()
}

// Decode decodes the stored file.
func (c *StoredClip) Decode(maxDuration time.Duration) (*Clip, error) {
	return DecodeFile(c.Path, maxDuration)
}

// Release removes the backing file. Only the first call does any work; later
// calls return the first result.
func (c *StoredClip) Release() error {
	if c == nil {
		return nil
	}
	c.releaseOnce.Do(func() {
		err := os.Remove(c.Path)
		if err != nil && !os.IsNotExist(err) {
			c.releaseErr = err
			if c.store != nil {
				c.store.log.Warn("failed to remove clip",
					logger.String("clip_id", c.ID),
					logger.String("path", c.Path),
					logger.Error(err))
			}
		}
	})
	return c.releaseErr
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SanitizeFilename reduces name to a safe base name without path components.
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	name = strings.ReplaceAll(strings.TrimSpace(name), " ", "_")
	name = unsafeFilenameChars.ReplaceAllString(name, "")
	name = strings.TrimLeft(name, ".")
	if len(name) > 100 {
		name = name[len(name)-100:]
	}
	return name
}
