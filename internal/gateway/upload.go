package gateway

import (
	"fmt"
	"os"
	"path/filepath"

	"smartstudy/internal/extract"
)

// DocumentTypes are accepted for text extraction uploads; FlashcardTypes
// additionally accept plain text.
var (
	DocumentTypes  = []string{extract.MIMEPDF, extract.MIMEDOCX}
	FlashcardTypes = []string{extract.MIMEPDF, extract.MIMEDOCX, extract.MIMEText}
)

// NewUpload wraps data, sniffing its MIME type from the content.
func NewUpload(name string, data []byte) Upload {
	return Upload{Name: filepath.Base(name), MIME: extract.Detect(data), Data: data}
}

func OpenUpload(path string) (Upload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Upload{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return NewUpload(path, data), nil
}

// ValidateUpload rejects files whose type is not in allowed.
func ValidateUpload(u Upload, allowed []string) error {
	mt := extract.BaseType(u.MIME)
	for _, a := range allowed {
		if mt == a {
			return nil
		}
	}
	return fmt.Errorf("%w: %s (%s)", ErrUnsupportedFile, u.Name, mt)
}
