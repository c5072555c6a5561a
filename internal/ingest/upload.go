package ingest

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/google/uuid"
)

// AllowedUploadTypes are the content types accepted by SaveUpload.
var AllowedUploadTypes = []string{
	"image/jpeg", "image/png", "image/gif",
	"application/pdf", "text/plain", "application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// SaveUpload validates and writes an uploaded file under dir with a uuid name
// that keeps the original extension.
func SaveUpload(r io.Reader, filename, contentType, dir string, maxSize int64) (*FileInfo, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if !slices.Contains(AllowedUploadTypes, contentType) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}

	savedName := uuid.NewString() + filepath.Ext(filename)
	path := filepath.Join(dir, savedName)
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}

	n, err := io.Copy(f, io.LimitReader(r, maxSize+1))
	closeErr := f.Close()
	if err == nil && n > maxSize {
		err = ErrFileTooLarge
	}
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		if err == ErrFileTooLarge {
			return nil, err
		}
		return nil, fmt.Errorf("failed to save upload %s: %w", filename, err)
	}

	return &FileInfo{
		Filename:  filename,
		SavedName: savedName,
		Path:      path,
		Type:      contentType,
		Size:      n,
	}, nil
}
