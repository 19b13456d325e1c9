package predict

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
)

// ImageFile is an image selected for analysis, held in memory until it is sent.
type ImageFile struct {
	Name        string
	ContentType string
	Content     []byte
}

// NewImageFile wraps already loaded bytes and detects their MIME type.
func NewImageFile(name string, content []byte) *ImageFile {
	return &ImageFile{
		Name:        name,
		ContentType: mimetype.Detect(content).String(),
		Content:     content,
	}
}

// LoadImageFile reads the file at path.
func LoadImageFile(path string) (*ImageFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	return NewImageFile(filepath.Base(path), content), nil
}

// Size returns the payload size in bytes.
func (f *ImageFile) Size() int {
	if f == nil {
		return 0
	}
	return len(f.Content)
}
