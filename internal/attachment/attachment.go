// Package attachment stores the images attached to items.
package attachment

import (
	"io"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

const (
	// Directory is the storage directory of item attachments.
	Directory = "item-attachments"
	// MaxSize is the maximum size of an uploaded image.
	MaxSize = 10 << 20
)

var (
	// ErrTooLarge is returned when an upload exceeds MaxSize.
	ErrTooLarge = errors.New("The image may not be greater than 10240 kilobytes.")
	// ErrUnsupported is returned when an upload is not an accepted image.
	ErrUnsupported = errors.New("The image must be a file of type: jpeg, png, gif, webp.")

	extensions = map[string]string{
		"image/jpeg": "jpg",
		"image/png":  "png",
		"image/gif":  "gif",
		"image/webp": "webp",
	}
)

// A Store reads and writes attachments on a filesystem.
type Store struct {
	fs afero.Fs
}

// New returns a Store writing on fs.
func New(fs afero.Fs) *Store {
	return &Store{fs: fs}
}

// NewOnDisk returns a Store rooted at the given directory.
func NewOnDisk(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrap(err, "could not create storage directory")
	}
	return New(afero.NewBasePathFs(afero.NewOsFs(), root)), nil
}

// Put validates, optimizes and stores the uploaded image of the given item.
// It returns the storage path of the attachment.
func (s *Store) Put(itemID string, r io.Reader) (string, error) {
	content, err := io.ReadAll(io.LimitReader(r, MaxSize+1))
	if err != nil {
		return "", errors.Wrap(err, "could not read upload")
	}
	if len(content) > MaxSize {
		return "", ErrTooLarge
	}

	ext, ok := extensions[http.DetectContentType(content)]
	if !ok {
		return "", ErrUnsupported
	}

	if optimized, format, err := Optimize(content, ext); err == nil {
		content = optimized
		ext = format
	}

	name := strings.ReplaceAll(uuid.Must(uuid.NewV4()).String(), "-", "")[:16] + "." + ext
	p := path.Join(Directory, itemID, name)

	if err = s.fs.MkdirAll(path.Dir(p), 0o755); err != nil {
		return "", errors.Wrap(err, "could not create attachment directory")
	}
	if err = afero.WriteFile(s.fs, p, content, 0o644); err != nil {
		return "", errors.Wrap(err, "could not write attachment")
	}
	return p, nil
}

// Open returns the content of the attachment stored at p.
func (s *Store) Open(p string) ([]byte, error) {
	if !valid(p) {
		return nil, os.ErrNotExist
	}
	return afero.ReadFile(s.fs, p)
}

// Remove deletes the attachment stored at p.
func (s *Store) Remove(p string) error {
	if !valid(p) {
		return os.ErrNotExist
	}
	return errors.Wrap(s.fs.Remove(p), "could not remove attachment")
}

// RemoveAll deletes all the attachments of the given item.
func (s *Store) RemoveAll(itemID string) error {
	if itemID == "" || strings.ContainsAny(itemID, "/\\") || itemID == ".." {
		return os.ErrNotExist
	}
	return errors.Wrap(s.fs.RemoveAll(path.Join(Directory, itemID)), "could not remove attachments")
}

// ContentType returns the MIME type of the attachment stored at p.
func ContentType(p string) string {
	switch strings.ToLower(path.Ext(p)) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

func valid(p string) bool {
	clean := path.Clean(p)
	return clean == p && strings.HasPrefix(clean, Directory+"/") && !strings.Contains(clean, "..")
}

// IsNotFound returns true if err reports a missing attachment.
func IsNotFound(err error) bool {
	return os.IsNotExist(errors.Cause(err))
}
