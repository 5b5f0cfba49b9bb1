package catalog

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"webar/internal/services"
)

// glbMagic opens every binary glTF container.
var glbMagic = []byte("glTF")

// UploadLimits bounds what callers may submit to Create.
type UploadLimits struct {
	MaxBytes          int64
	AllowedExtensions []string
}

// ValidateUpload rejects uploads with a disallowed extension, an oversized
// payload, or a missing glTF header. Callers run it before Create.
func ValidateUpload(filename string, data []byte, limits UploadLimits) error {
	if len(data) == 0 {
		return services.Wrap(services.ErrValidation, "catalog", "validate upload", "no file uploaded", nil)
	}
	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(filename)))
	if len(limits.AllowedExtensions) > 0 && !allowed(ext, limits.AllowedExtensions) {
		return services.Wrap(services.ErrValidation, "catalog", "validate upload",
			fmt.Sprintf("file type %q not allowed (accepted: %s)", ext, strings.Join(limits.AllowedExtensions, ", ")), nil)
	}
	if limits.MaxBytes > 0 && int64(len(data)) > limits.MaxBytes {
		return services.Wrap(services.ErrValidation, "catalog", "validate upload",
			fmt.Sprintf("file is %s; the limit is %s", humanize.IBytes(uint64(len(data))), humanize.IBytes(uint64(limits.MaxBytes))), nil)
	}
	if !bytes.HasPrefix(data, glbMagic) {
		return services.Wrap(services.ErrValidation, "catalog", "validate upload", "file is not a binary glTF (missing glTF header)", nil)
	}
	return nil
}

func allowed(ext string, list []string) bool {
	for _, candidate := range list {
		if strings.EqualFold(strings.TrimSpace(candidate), ext) {
			return true
		}
	}
	return false
}
