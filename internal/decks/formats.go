package decks

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
)

// DefaultMaxDeckBytes caps deck uploads when no limit is configured.
const DefaultMaxDeckBytes int64 = 50 << 20

var (
	deckExtensions     = []string{".ppt", ".pptx"}
	materialExtensions = []string{".doc", ".docx", ".pdf", ".txt", ".md", ".rtf"}
)

// DeckExtensions returns the accepted deck extensions.
func DeckExtensions() []string { return slices.Clone(deckExtensions) }

// MaterialExtensions returns the accepted supporting-material extensions.
func MaterialExtensions() []string { return slices.Clone(materialExtensions) }

// ValidateDeck rejects files that are not .ppt/.pptx or exceed maxBytes.
// A non-positive maxBytes or size disables the size check.
func ValidateDeck(name string, size, maxBytes int64) error {
	if !hasExtension(name, deckExtensions) {
		return fmt.Errorf("%w: please select a valid .ppt or .pptx file", ErrInvalidFile)
	}
	if maxBytes > 0 && size > maxBytes {
		return fmt.Errorf("%w: file is larger than %d MB", ErrInvalidFile, maxBytes>>20)
	}
	return nil
}

// ValidateMaterial rejects supporting documents of an unsupported type.
func ValidateMaterial(name string) error {
	if !hasExtension(name, materialExtensions) {
		return fmt.Errorf("%w: accepted formats are %s", ErrInvalidFile, strings.Join(materialExtensions, ", "))
	}
	return nil
}

func hasExtension(name string, allowed []string) bool {
	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(name)))
	return ext != "" && slices.Contains(allowed, ext)
}
