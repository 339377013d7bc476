package services

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"net/http"
	"path/filepath"
	"strings"
)

var ErrInvalidUpload = errors.New("invalid upload")

// FileValidator checks uploaded images before they are decoded in full.
type FileValidator struct {
	AllowedExtensions []string
	AllowedMIMETypes  []string
	MaxFileSize       int64
	MaxWidth          int
	MaxHeight         int
}

func NewFileValidator(maxFileSize int64) *FileValidator {
	if maxFileSize <= 0 {
		maxFileSize = 10 * 1024 * 1024
	}
	return &FileValidator{
		AllowedExtensions: []string{".jpg", ".jpeg", ".png", ".gif"},
		AllowedMIMETypes:  []string{"image/jpeg", "image/png", "image/gif"},
		MaxFileSize:       maxFileSize,
		MaxWidth:          8192,
		MaxHeight:         8192,
	}
}

// Validate checks the filename extension, the sniffed content type and the declared
// image dimensions of data. It returns the sniffed MIME type.
func (fv *FileValidator) Validate(filename string, data []byte) (string, error) {
	if int64(len(data)) > fv.MaxFileSize {
		return "", fmt.Errorf("%w: file too large (max %d bytes)", ErrInvalidUpload, fv.MaxFileSize)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty file", ErrInvalidUpload)
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if !contains(fv.AllowedExtensions, ext) {
		return "", fmt.Errorf("%w: extension %q not allowed", ErrInvalidUpload, ext)
	}
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	mimeType := http.DetectContentType(head)
	if !contains(fv.AllowedMIMETypes, mimeType) {
		return "", fmt.Errorf("%w: content type %q not allowed", ErrInvalidUpload, mimeType)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidUpload, err)
	}
	if cfg.Width > fv.MaxWidth || cfg.Height > fv.MaxHeight {
		return "", fmt.Errorf("%w: image dimensions %dx%d too large", ErrInvalidUpload, cfg.Width, cfg.Height)
	}
	return mimeType, nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}
