// Package uploads validates uploaded images and stores them on local disk
// under fixed subdirectories that are served back as static files.
package uploads

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"

	"github.com/Addy-9595/northeasternconnect-backend/internal/crypto"
	"github.com/Addy-9595/northeasternconnect-backend/internal/metrics"
)

// Kind selects the destination directory and limits of an upload.
type Kind string

const (
	KindProfile Kind = "profile"
	KindContent Kind = "content"
)

const (
	// ProfileMaxBytes caps a profile picture.
	ProfileMaxBytes = 5 << 20
	// ContentMaxBytes caps each post or event image.
	ContentMaxBytes = 10 << 20
	// MaxContentFiles is the most images accepted in one bulk upload.
	MaxContentFiles = 10

	// URLPrefix is the path stored files are served under.
	URLPrefix = "/uploads"
)

var (
	ErrNoFile          = errors.New("no file uploaded")
	ErrTooManyFiles    = fmt.Errorf("at most %d files per upload", MaxContentFiles)
	ErrTooLarge        = errors.New("file too large")
	ErrUnsupportedType = errors.New("only image files are allowed (jpeg, jpg, png, gif, webp)")
)

var allowedExtensions = map[string]bool{
	".jpeg": true,
	".jpg":  true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

var allowedTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

// Storage writes uploads beneath a root directory.
type Storage struct {
	root   string
	logger zerolog.Logger
	now    func() time.Time
}

// NewStorage creates the upload directories beneath root.
func NewStorage(root string, logger zerolog.Logger) (*Storage, error) {
	for _, kind := range []Kind{KindProfile, KindContent} {
		if err := os.MkdirAll(filepath.Join(root, kind.dir()), 0o755); err != nil {
			return nil, fmt.Errorf("create upload dir: %w", err)
		}
	}
	return &Storage{root: root, logger: logger, now: time.Now}, nil
}

// Root returns the directory served under URLPrefix.
func (s *Storage) Root() string {
	return s.root
}

// MaxBytes returns the per-file size limit for kind.
func (k Kind) MaxBytes() int64 {
	if k == KindProfile {
		return ProfileMaxBytes
	}
	return ContentMaxBytes
}

func (k Kind) dir() string {
	if k == KindProfile {
		return "profiles"
	}
	return "content"
}

// Save validates and stores one file, returning the URL path it is served at.
func (s *Storage) Save(kind Kind, fh *multipart.FileHeader) (string, error) {
	if fh == nil {
		return "", ErrNoFile
	}
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if !allowedExtensions[ext] {
		return "", ErrUnsupportedType
	}
	if fh.Size > kind.MaxBytes() {
		return "", ErrTooLarge
	}

	src, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	mtype, err := mimetype.DetectReader(src)
	if err != nil {
		return "", fmt.Errorf("detect content type: %w", err)
	}
	if !mimetype.EqualsAny(mtype.String(), allowedTypes...) {
		s.logger.Warn().
			Str("type", "security").
			Str("filename", fh.Filename).
			Str("detected", mtype.String()).
			Msg("upload content does not match an image type")
		return "", ErrUnsupportedType
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return "", err
	}

	name := crypto.NewULID(s.now()) + ext
	finalPath := filepath.Join(s.root, kind.dir(), name)
	tempPath := finalPath + ".part"

	dst, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return "", err
	}
	n, err := io.Copy(dst, io.LimitReader(src, kind.MaxBytes()+1))
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err == nil && n > kind.MaxBytes() {
		err = ErrTooLarge
	}
	if err != nil {
		os.Remove(tempPath)
		return "", err
	}
	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return "", err
	}

	metrics.UploadsStored.WithLabelValues(string(kind)).Inc()
	return path.Join(URLPrefix, kind.dir(), name), nil
}

// SaveAll stores up to MaxContentFiles files. Nothing is kept when any file
// is rejected.
func (s *Storage) SaveAll(kind Kind, files []*multipart.FileHeader) ([]string, error) {
	if len(files) == 0 {
		return nil, ErrNoFile
	}
	if len(files) > MaxContentFiles {
		return nil, ErrTooManyFiles
	}

	urls := make([]string, 0, len(files))
	for _, fh := range files {
		u, err := s.Save(kind, fh)
		if err != nil {
			for _, saved := range urls {
				s.Remove(saved)
			}
			return nil, err
		}
		urls = append(urls, u)
	}
	return urls, nil
}

// Remove deletes a stored file by the URL path Save returned. Paths outside
// the upload directories are ignored.
func (s *Storage) Remove(urlPath string) {
	cleaned := path.Clean(urlPath)
	if !strings.HasPrefix(cleaned, URLPrefix+"/") {
		return
	}
	rel := strings.TrimPrefix(cleaned, URLPrefix+"/")
	if err := os.Remove(filepath.Join(s.root, filepath.FromSlash(rel))); err != nil && !os.IsNotExist(err) {
		s.logger.Warn().Err(err).Str("path", urlPath).Msg("failed to remove upload")
	}
}
