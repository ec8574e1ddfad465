package services

import (
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/arnold/gatherings-api/internal/apperr"
	"github.com/google/uuid"
)

const MaxImageSize = 5 * 1024 * 1024

var allowedImageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true}

// ImageStore keeps uploaded gathering and profile images on local disk and
// serves them under URLPrefix.
type ImageStore struct {
	Dir       string
	URLPrefix string
}

func NewImageStore(dir string) *ImageStore {
	return &ImageStore{Dir: dir, URLPrefix: "/uploads"}
}

// Save validates and stores the upload, returning its public URL.
func (s *ImageStore) Save(file *multipart.FileHeader) (string, error) {
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedImageExts[ext] {
		return "", apperr.ErrInvalidImageType
	}
	if file.Size > MaxImageSize {
		return "", apperr.ErrImageTooLarge
	}

	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	src, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	filename := uuid.New().String() + ext
	dst, err := os.Create(filepath.Join(s.Dir, filename))
	if err != nil {
		return "", fmt.Errorf("create image file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}

	slog.Debug("Image stored", "file", filename, "size", file.Size)
	return s.URLPrefix + "/" + filename, nil
}
