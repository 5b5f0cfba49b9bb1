package converter

import (
	"bytes"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/klauspost/compress/zip"
)

var usdLayerExtensions = map[string]struct{}{
	".usd":  {},
	".usda": {},
	".usdc": {},
}

// ErrInvalidArtifact is returned when converter output is not a usable USDZ.
var ErrInvalidArtifact = errors.New("invalid usdz artifact")

// ValidateUSDZ checks that output is a zip archive whose first entry is a USD
// layer and that it is not simply a copy of primary.
func ValidateUSDZ(output, primary []byte) error {
	if len(output) == 0 {
		return fmt.Errorf("%w: empty output", ErrInvalidArtifact)
	}
	if bytes.Equal(output, primary) {
		return fmt.Errorf("%w: output is identical to input", ErrInvalidArtifact)
	}
	reader, err := zip.NewReader(bytes.NewReader(output), int64(len(output)))
	if err != nil {
		return fmt.Errorf("%w: not a zip archive: %v", ErrInvalidArtifact, err)
	}
	if len(reader.File) == 0 {
		return fmt.Errorf("%w: archive has no entries", ErrInvalidArtifact)
	}
	first := reader.File[0].Name
	if _, ok := usdLayerExtensions[strings.ToLower(path.Ext(first))]; !ok {
		return fmt.Errorf("%w: first entry %q is not a USD layer", ErrInvalidArtifact, first)
	}
	return nil
}
