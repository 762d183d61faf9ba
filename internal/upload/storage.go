package upload

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/zjoart/varlixo/pkg/apperr"
)

type Area string

const (
	AreaDeposits    Area = "deposits"
	AreaSupportChat Area = "support-chat"
	AreaKYC         Area = "kyc"
)

const MaxImageSize int64 = 5 << 20

var ImageTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

var (
	ErrFileNotFound = apperr.NotFound("file not found")
	ErrFileTooLarge = apperr.Validation("file must not exceed 5MB")
	ErrNotAnImage   = apperr.Validation("only jpeg, png, gif and webp images are allowed")
	ErrBadFilename  = apperr.Validation("invalid filename")
)

// Stored describes a file written to disk.
type Stored struct {
	Filename string `json:"filename"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
	URL      string `json:"url"`
}

// Storage writes uploads below root/<area>/ with uuid filenames.
type Storage struct {
	root    string
	baseURL string
}

func NewStorage(root, baseURL string) *Storage {
	return &Storage{root: root, baseURL: strings.TrimRight(baseURL, "/")}
}

// SaveImage reads at most MaxImageSize bytes, sniffs the content and stores it.
// The client supplied name and content type are ignored.
func (s *Storage) SaveImage(area Area, src io.Reader) (*Stored, error) {
	data, err := io.ReadAll(io.LimitReader(src, MaxImageSize+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > MaxImageSize {
		return nil, ErrFileTooLarge
	}

	mtype := mimetype.Detect(data)
	if !mimetype.EqualsAny(mtype.String(), ImageTypes...) {
		return nil, ErrNotAnImage
	}

	dir := filepath.Join(s.root, string(area))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	name := uuid.NewString() + mtype.Extension()
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return nil, fmt.Errorf("write upload: %w", err)
	}

	return &Stored{
		Filename: name,
		MimeType: mtype.String(),
		Size:     int64(len(data)),
		URL:      fmt.Sprintf("%s/uploads/%s/%s", s.baseURL, area, name),
	}, nil
}

// Path resolves a stored file, refusing anything that is not a plain name.
func (s *Storage) Path(area Area, filename string) (string, error) {
	if filename == "" || filename != filepath.Base(filename) || strings.HasPrefix(filename, ".") || strings.ContainsAny(filename, `/\`) {
		return "", ErrBadFilename
	}

	path := filepath.Join(s.root, string(area), filename)
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) || (err == nil && info.IsDir()) {
		return "", ErrFileNotFound
	}
	if err != nil {
		return "", err
	}
	return path, nil
}

// Remove deletes a stored file; a missing file is not an error.
func (s *Storage) Remove(area Area, filename string) error {
	path, err := s.Path(area, filename)
	if errors.Is(err, ErrFileNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return os.Remove(path)
}

// FormImage saves the multipart field as an image. It returns nil when the
// field is absent and optional is true.
func (s *Storage) FormImage(r *http.Request, field string, area Area, optional bool) (*Stored, error) {
	file, _, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		if optional {
			return nil, nil
		}
		return nil, apperr.Validation(fmt.Sprintf("%s is required", field))
	}
	if err != nil {
		return nil, apperr.Validation(fmt.Sprintf("invalid %s upload", field))
	}
	defer file.Close()

	return s.SaveImage(area, file)
}
