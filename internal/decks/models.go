package decks

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrNotFound signals a missing presentation or view.
	ErrNotFound = errors.New("presentation not found")

	// ErrMissingID signals a call made without a required identifier.
	ErrMissingID = errors.New("missing identifier")

	// ErrInvalidSlide signals a slide number outside the known range.
	ErrInvalidSlide = errors.New("invalid slide number")

	// ErrInvalidFile signals a rejected upload (type or size).
	ErrInvalidFile = errors.New("invalid file")
)

// BlockedScriptMarker is embedded by the backend in script text that a
// safety filter refused to produce.
const BlockedScriptMarker = "[Script content blocked"

// SourceUnknown is the provenance used when the backend omits one.
const SourceUnknown = "unknown"

// Presentation is the backend's view of an uploaded deck.
type Presentation struct {
	ID            string
	SlideCount    int
	ViewURL       string
	ViewURLExpiry time.Time
}

// SlideRef identifies one slide within one presentation. Number is 1-based.
type SlideRef struct {
	PresentationID string
	Number         int
}

// Valid reports whether the slide exists in a deck with total slides.
func (r SlideRef) Valid(total int) bool {
	return r.PresentationID != "" && Valid(r.Number, total)
}

// Valid reports whether n may be shown for a deck with total slides.
// A total of zero means the count is unknown and only the lower bound holds.
func Valid(n, total int) bool {
	if n < 1 {
		return false
	}
	return total <= 0 || n <= total
}

// AudioKind selects which narration is synthesized for a slide.
type AudioKind string

const (
	AudioOriginal  AudioKind = "original"
	AudioGenerated AudioKind = "generated"
)

// ParseAudioKind maps a route value onto an AudioKind.
func ParseAudioKind(v string) (AudioKind, bool) {
	switch AudioKind(strings.ToLower(strings.TrimSpace(v))) {
	case AudioOriginal:
		return AudioOriginal, true
	case AudioGenerated:
		return AudioGenerated, true
	}
	return "", false
}

// ScriptRecord is the narration text generated for a slide.
type ScriptRecord struct {
	SlideNumber int
	Text        string
	Source      string
}

// Blocked reports whether the text was replaced by a safety filter notice.
func (r ScriptRecord) Blocked() bool {
	return strings.Contains(r.Text, BlockedScriptMarker)
}

// Upload is a row of the local upload history.
type Upload struct {
	PresentationID  string
	FileName        string
	Fingerprint     string
	SizeBytes       int64
	Materials       string
	ScriptRequested bool
	SlideCount      int
	CreatedAt       time.Time
}

// UploadRepository persists the upload history.
type UploadRepository interface {
	Save(ctx context.Context, upload Upload) error
	UpdateSlideCount(ctx context.Context, presentationID string, slideCount int) error
	Get(ctx context.Context, presentationID string) (Upload, error)
	ListRecent(ctx context.Context, limit int) ([]Upload, error)
}
