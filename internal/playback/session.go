package playback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"slidevoice/internal/assets"
	"slidevoice/internal/decks"
	"slidevoice/internal/gateway"
	"slidevoice/internal/notify"
)

var (
	// ErrStale is returned when the slide changed (or the session closed)
	// while a fetch was in flight. The response was discarded.
	ErrStale = errors.New("slide changed before the response arrived")

	// ErrClosed is returned by actions on a torn-down session.
	ErrClosed = errors.New("playback session closed")
)

// BlockedScriptWarning annotates script text replaced by a safety filter.
const BlockedScriptWarning = "Script content was blocked by safety filters."

// Gateway is the subset of the backend client the session needs.
type Gateway interface {
	GetOriginalSpeech(ctx context.Context, presentationID string, slideNumber int, voice string) (gateway.Audio, error)
	GetGeneratedSpeech(ctx context.Context, presentationID string, slideNumber int, voice string) (gateway.Audio, error)
	GetGeneratedScript(ctx context.Context, presentationID string, slideNumber int) (decks.ScriptRecord, error)
	UploadMaterials(ctx context.Context, presentationID string, file gateway.File) (json.RawMessage, error)
}

// AssetStore hands out revocable audio handles.
type AssetStore interface {
	Create(data []byte, contentType string, kind decks.AudioKind, slide int) (assets.Asset, error)
	Revoke(id uuid.UUID) bool
}

// Options configures optional session behavior.
type Options struct {
	Voice    string
	Notifier notify.Notifier
}

// Session tracks the active slide of one open presentation and everything
// fetched for it. State never outlives the slide it was fetched for:
// changing slides releases audio, drops the script and cancels in-flight
// fetches.
type Session struct {
	logger         *slog.Logger
	gw             Gateway
	store          AssetStore
	notifier       notify.Notifier
	voice          string
	presentationID string

	mu            sync.Mutex
	current       int
	total         int
	epoch         uint64
	slideCtx      context.Context
	cancelSlide   context.CancelFunc
	asset         *assets.Asset
	playing       bool
	script        *decks.ScriptRecord
	scriptVisible bool
	scriptWarning string
	ops           map[decks.Action]decks.OpState
	closed        bool
}

// NewSession starts a session on slide 1. totalSlides of zero means the
// slide count is not known yet.
func NewSession(logger *slog.Logger, gw Gateway, store AssetStore, presentationID string, totalSlides int, opts *Options) *Session {
	if opts == nil {
		opts = &Options{}
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.Discard{}
	}
	if totalSlides < 0 {
		totalSlides = 0
	}

	s := &Session{
		logger:         logger.With(slog.String("presentation_id", presentationID)),
		gw:             gw,
		store:          store,
		notifier:       notifier,
		voice:          opts.Voice,
		presentationID: presentationID,
		current:        1,
		total:          totalSlides,
		ops:            make(map[decks.Action]decks.OpState, len(decks.Actions)),
	}
	s.slideCtx, s.cancelSlide = context.WithCancel(context.Background())
	for _, a := range decks.Actions {
		s.ops[a] = decks.Idle()
	}
	return s
}

// GoToSlide moves to slide n. Out-of-range moves are rejected and leave
// the session untouched.
func (s *Session) GoToSlide(n int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.goToLocked(n)
}

// Previous moves one slide back.
func (s *Session) Previous() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.goToLocked(s.current - 1)
}

// Next moves one slide forward.
func (s *Session) Next() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.goToLocked(s.current + 1)
}

func (s *Session) goToLocked(n int) bool {
	ref := decks.SlideRef{PresentationID: s.presentationID, Number: n}
	if s.closed || !ref.Valid(s.total) {
		s.logger.Debug("slide change rejected", slog.Int("requested", n), slog.Int("total", s.total))
		return false
	}
	s.resetLocked()
	s.current = n
	return true
}

// Current returns the active slide number.
func (s *Session) Current() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Reset releases audio, drops the script and clears every operation state.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.resetLocked()
}

// PlayAudio fetches narration of kind for the active slide and makes it the
// session's single live asset. Concurrent calls are not de-duplicated: the
// last response to arrive wins and earlier assets are released.
func (s *Session) PlayAudio(ctx context.Context, kind decks.AudioKind) error {
	action := decks.AudioAction(kind)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.releaseAudioLocked()
	s.ops[action] = decks.Loading()
	epoch, slide := s.epoch, s.current
	reqCtx, cancel := scoped(ctx, s.slideCtx)
	s.mu.Unlock()
	defer cancel()

	audio, err := s.fetchAudio(reqCtx, kind, slide)
	var asset assets.Asset
	if err == nil {
		asset, err = s.store.Create(audio.Data, audio.ContentType, kind, slide)
	}

	var note notice
	defer s.send(&note)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.epoch != epoch {
		if err == nil {
			s.store.Revoke(asset.ID)
		}
		return ErrStale
	}

	if err != nil {
		if errors.Is(err, context.Canceled) {
			s.ops[action] = decks.Idle()
			return err
		}
		msg := gateway.Message(err)
		s.ops[action] = decks.Failed(msg)
		s.logger.Warn("audio fetch failed",
			slog.String("kind", string(kind)),
			slog.Int("slide", slide),
			slog.String("error", msg),
		)
		note = notice{"Audio Error", msg, notify.LevelError}
		return fmt.Errorf("play %s audio for slide %d: %w", kind, slide, err)
	}

	s.releaseAudioLocked()
	s.asset = &asset
	s.playing = true
	s.ops[action] = decks.Idle()
	return nil
}

// StopAudio stops playback and releases the live asset.
func (s *Session) StopAudio() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseAudioLocked()
}

// AudioEnded records that the player reached the end; the asset stays
// available for replay.
func (s *Session) AudioEnded() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playing = false
}

// ToggleScript hides a visible script without I/O, or fetches and shows
// the script of the active slide.
func (s *Session) ToggleScript(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.scriptVisible {
		s.scriptVisible = false
		s.mu.Unlock()
		return nil
	}

	s.ops[decks.ActionFetchScript] = decks.Loading()
	s.script = nil
	s.scriptWarning = ""
	epoch, slide := s.epoch, s.current
	reqCtx, cancel := scoped(ctx, s.slideCtx)
	s.mu.Unlock()
	defer cancel()

	record, err := s.gw.GetGeneratedScript(reqCtx, s.presentationID, slide)

	var note notice
	defer s.send(&note)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.epoch != epoch {
		return ErrStale
	}

	if err != nil {
		s.scriptVisible = false
		if errors.Is(err, context.Canceled) {
			s.ops[decks.ActionFetchScript] = decks.Idle()
			return err
		}
		msg := gateway.Message(err)
		s.ops[decks.ActionFetchScript] = decks.Failed(msg)
		note = notice{"Script Error", msg, notify.LevelWarning}
		return fmt.Errorf("load script for slide %d: %w", slide, err)
	}

	s.script = &record
	s.scriptVisible = true
	s.ops[decks.ActionFetchScript] = decks.Idle()
	if record.Blocked() {
		s.scriptWarning = BlockedScriptWarning
		note = notice{"Script Warning", BlockedScriptWarning, notify.LevelWarning}
	}
	return nil
}

// HideScript hides the script. Repeated calls are no-ops.
func (s *Session) HideScript() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scriptVisible = false
}

// UploadMaterials attaches a supporting document to the presentation.
// Unsupported file types are rejected before any network call.
func (s *Session) UploadMaterials(ctx context.Context, file gateway.File) error {
	const action = decks.ActionUploadMaterials

	if err := decks.ValidateMaterial(file.Name); err != nil {
		s.mu.Lock()
		s.ops[action] = decks.Failed(err.Error())
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.ops[action] = decks.Loading()
	s.mu.Unlock()

	_, err := s.gw.UploadMaterials(ctx, s.presentationID, file)

	s.mu.Lock()
	if err != nil {
		msg := gateway.Message(err)
		s.ops[action] = decks.Failed(msg)
		s.mu.Unlock()
		s.notifier.Notify("Materials Upload Failed", msg, notify.LevelError)
		return fmt.Errorf("upload materials: %w", err)
	}
	s.ops[action] = decks.Idle()
	s.mu.Unlock()
	s.notifier.Notify("Materials Uploaded", file.Name, notify.LevelSuccess)
	return nil
}

// Close tears the session down: in-flight fetches are cancelled and the
// live asset is released. Close is idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.resetLocked()
	s.cancelSlide()
	s.closed = true
}

func (s *Session) fetchAudio(ctx context.Context, kind decks.AudioKind, slide int) (gateway.Audio, error) {
	if kind == decks.AudioGenerated {
		return s.gw.GetGeneratedSpeech(ctx, s.presentationID, slide, s.voice)
	}
	return s.gw.GetOriginalSpeech(ctx, s.presentationID, slide, s.voice)
}

// resetLocked starts a new slide epoch. Responses of the previous epoch
// are discarded when they arrive.
func (s *Session) resetLocked() {
	s.cancelSlide()
	s.epoch++
	s.slideCtx, s.cancelSlide = context.WithCancel(context.Background())

	s.releaseAudioLocked()
	s.script = nil
	s.scriptVisible = false
	s.scriptWarning = ""
	for _, a := range decks.Actions {
		s.ops[a] = decks.Idle()
	}
}

func (s *Session) releaseAudioLocked() {
	if s.asset != nil {
		s.store.Revoke(s.asset.ID)
		s.asset = nil
	}
	s.playing = false
}

// notice is a notification captured under the lock. It is sent only after
// the lock is released.
type notice struct {
	title   string
	message string
	level   notify.Level
}

// send is deferred ahead of the unlock and so runs after it.
func (s *Session) send(n *notice) {
	if n.title != "" {
		s.notifier.Notify(n.title, n.message, n.level)
	}
}

// scoped derives a request context cancelled by either parent or slide.
func scoped(parent, slide context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(slide, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
