package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// AttachmentDir is the vault folder holding uploaded infobox images.
const AttachmentDir = "attachments"

var (
	// ErrInvalidName is returned for attachment names that are empty, hidden,
	// or contain a path component.
	ErrInvalidName = errors.New("storage: invalid attachment name")
	// ErrNotImage is returned when the name has no image extension.
	ErrNotImage = errors.New("storage: attachment is not an image")
)

var imageExts = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".gif":  {},
	".webp": {},
	".svg":  {},
	".avif": {},
}

// IsImage reports whether name carries an image extension an infobox image
// key may reference.
func IsImage(name string) bool {
	_, ok := imageExts[strings.ToLower(filepath.Ext(name))]
	return ok
}

// Attachment describes a stored attachment.
type Attachment struct {
	Name string
	// URL is the public path the server serves the file under, which is
	// also what an infobox image key should hold.
	URL  string
	Size int64
}

// AttachmentPath returns the absolute path of the attachment called name.
// The file may not exist.
func (f *FS) AttachmentPath(name string) (string, error) {
	if name == "" || strings.HasPrefix(name, ".") || name != filepath.Base(name) || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return f.safePath(filepath.Join(AttachmentDir, name))
}

// SaveAttachment stores r as the image attachment name. An existing
// attachment is never replaced; that case returns an error wrapping
// os.ErrExist.
func (f *FS) SaveAttachment(name string, r io.Reader) (Attachment, error) {
	abs, err := f.AttachmentPath(name)
	if err != nil {
		return Attachment{}, err
	}
	if !IsImage(name) {
		return Attachment{}, fmt.Errorf("%w: %q", ErrNotImage, name)
	}
	n, err := writeAtomic(abs, r, true)
	if err != nil {
		return Attachment{}, err
	}
	return Attachment{Name: name, URL: "/" + AttachmentDir + "/" + name, Size: n}, nil
}

// OpenAttachment opens the attachment called name for reading.
func (f *FS) OpenAttachment(name string) (*os.File, error) {
	abs, err := f.AttachmentPath(name)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: open attachment: %w", err)
	}
	return file, nil
}
