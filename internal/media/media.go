// Package media stores reference images and documents attached to booking
// requests.
package media

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/diagnosis/inkstudio-bookings/internal/domain"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// AllowedTypes is the MIME allow-list for uploaded files.
var AllowedTypes = []string{
	"image/jpeg",
	"image/png",
	"image/webp",
	"image/heic",
	"application/pdf",
}

// File is one uploaded file held in memory.
type File struct {
	Name string
	Data []byte
}

type Object struct {
	PublicID string
	URL      string
}

type Store interface {
	Put(ctx context.Context, data []byte, folder, filename string) (*Object, error)
	Delete(ctx context.Context, publicID string) error
}

// Detected is the sniffed type of an allowed file.
type Detected struct {
	MIME      string
	Extension string
}

// DetectAllowed sniffs the content type of data. The declared type and file
// name are ignored. Anything outside AllowedTypes fails with
// domain.ErrUnsupportedMedia.
func DetectAllowed(data []byte) (*Detected, error) {
	if len(data) == 0 {
		return nil, domain.Validationf("empty file")
	}
	m := mimetype.Detect(data)
	for _, allowed := range AllowedTypes {
		if m.Is(allowed) {
			return &Detected{MIME: allowed, Extension: m.Extension()}, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedMedia, m.String())
}

// LocalStore writes objects below Root and serves them from PublicURL.
type LocalStore struct {
	root      string
	publicURL string
}

func NewLocalStore(root, publicURL string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create media root: %w", err)
	}
	return &LocalStore{root: root, publicURL: strings.TrimRight(publicURL, "/")}, nil
}

// Put stores data under folder with a generated name. Only the extension of
// filename is kept.
func (s *LocalStore) Put(ctx context.Context, data []byte, folder, filename string) (*Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, domain.Validationf("empty file")
	}

	folder = cleanFolder(folder)
	ext := strings.ToLower(path.Ext(filename))
	if d, err := DetectAllowed(data); err == nil && d.Extension != "" {
		ext = d.Extension
	}
	publicID := path.Join(folder, uuid.NewString()+ext)

	full := filepath.Join(s.root, filepath.FromSlash(publicID))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, fmt.Errorf("create media folder: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return nil, fmt.Errorf("write media object: %w", err)
	}

	return &Object{PublicID: publicID, URL: s.publicURL + "/" + publicID}, nil
}

func (s *LocalStore) Delete(ctx context.Context, publicID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	clean := path.Clean("/" + publicID)
	err := os.Remove(filepath.Join(s.root, filepath.FromSlash(clean)))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// cleanFolder keeps folder inside the store root.
func cleanFolder(folder string) string {
	f := path.Clean("/" + strings.TrimSpace(folder))
	return strings.TrimPrefix(f, "/")
}

var _ Store = (*LocalStore)(nil)
