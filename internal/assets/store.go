package assets

import (
	"bytes"
	"errors"
	"log/slog"
	"mime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hajimehoshi/go-mp3"

	"slidevoice/internal/decks"
)

// ErrEmptyAudio is returned when a fetched payload carries no audio.
var ErrEmptyAudio = errors.New("received empty or invalid audio data")

const defaultContentType = "audio/mpeg"

// Asset describes a live audio payload. It is only valid until revoked.
type Asset struct {
	ID          uuid.UUID
	Kind        decks.AudioKind
	Slide       int
	ContentType string
	Size        int
	Duration    time.Duration
	CreatedAt   time.Time
}

// URL is the local, revocable address the page plays the asset from.
func (a Asset) URL() string {
	return "/audio/" + a.ID.String()
}

type entry struct {
	asset Asset
	data  []byte
}

// Store holds audio payloads behind revocable local URLs. Safe for
// concurrent use.
type Store struct {
	logger *slog.Logger
	now    func() time.Time

	mu    sync.RWMutex
	items map[uuid.UUID]entry
}

// NewStore constructs an empty Store.
func NewStore(logger *slog.Logger) *Store {
	return &Store{
		logger: logger,
		now:    time.Now,
		items:  make(map[uuid.UUID]entry),
	}
}

// Create registers data and returns its handle.
func (s *Store) Create(data []byte, contentType string, kind decks.AudioKind, slide int) (Asset, error) {
	if len(data) == 0 {
		return Asset{}, ErrEmptyAudio
	}
	if contentType == "" {
		contentType = defaultContentType
	}

	asset := Asset{
		ID:          uuid.New(),
		Kind:        kind,
		Slide:       slide,
		ContentType: contentType,
		Size:        len(data),
		Duration:    mp3Duration(data, contentType),
		CreatedAt:   s.now().UTC(),
	}

	s.mu.Lock()
	s.items[asset.ID] = entry{asset: asset, data: data}
	live := len(s.items)
	s.mu.Unlock()

	s.logger.Debug("audio asset created",
		slog.String("asset_id", asset.ID.String()),
		slog.String("kind", string(kind)),
		slog.Int("slide", slide),
		slog.Int("bytes", asset.Size),
		slog.Duration("duration", asset.Duration),
		slog.Int("live", live),
	)
	return asset, nil
}

// Open returns the asset and its payload while it is live.
func (s *Store) Open(id uuid.UUID) (Asset, []byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.items[id]
	return e.asset, e.data, ok
}

// Revoke releases the asset; its URL stops resolving. Revoking twice is a no-op.
func (s *Store) Revoke(id uuid.UUID) bool {
	s.mu.Lock()
	_, ok := s.items[id]
	delete(s.items, id)
	s.mu.Unlock()

	if ok {
		s.logger.Debug("audio asset revoked", slog.String("asset_id", id.String()))
	}
	return ok
}

// Live reports the number of assets not yet revoked.
func (s *Store) Live() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// mp3Duration decodes MP3 headers to estimate playback length. Other
// formats and undecodable payloads report zero.
func mp3Duration(data []byte, contentType string) time.Duration {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || (mediaType != "audio/mpeg" && mediaType != "audio/mp3") {
		return 0
	}

	if !id3Fits(data) {
		return 0
	}

	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return 0
	}
	length := dec.Length()
	if length <= 0 || dec.SampleRate() <= 0 {
		return 0
	}
	// decoded stream is 16-bit stereo: 4 bytes per sample frame
	samples := length / 4
	return time.Duration(samples) * time.Second / time.Duration(dec.SampleRate())
}

// id3Fits reports whether a leading ID3v2 tag, if any, declares a size
// within the payload. The decoder allocates the declared size up front.
func id3Fits(data []byte) bool {
	if !bytes.HasPrefix(data, []byte("ID3")) {
		return true
	}
	if len(data) < 10 {
		return false
	}
	size := int(data[6])<<21 | int(data[7])<<14 | int(data[8])<<7 | int(data[9])
	return size <= len(data)-10
}
