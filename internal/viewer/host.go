package viewer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"slidevoice/internal/decks"
	"slidevoice/internal/gateway"
	"slidevoice/internal/notify"
	"slidevoice/internal/playback"
)

const defaultIdleTimeout = 30 * time.Minute

// ErrNoViewURL is returned when the backend answers without a usable
// viewer URL.
var ErrNoViewURL = errors.New("presentation has no view url")

// Backend is the subset of the gateway client a host needs: metadata
// lookups plus everything a playback session calls.
type Backend interface {
	playback.Gateway
	GetStatus(ctx context.Context, presentationID string) (gateway.Status, error)
	GetViewURL(ctx context.Context, presentationID string) (gateway.ViewURL, error)
}

// Channels hands out notifiers scoped to one subscriber channel.
type Channels interface {
	Channel(channel string) notify.Notifier
}

// View is one open presentation: the document viewer URL and the playback
// session driving its controls.
type View struct {
	ID           uuid.UUID
	Presentation decks.Presentation
	FileName     string
	Session      *playback.Session
	OpenedAt     time.Time

	lastSeen time.Time // guarded by Host.mu
}

// Title names the view after the uploaded file when the history knows it.
func (v *View) Title() string {
	if v.FileName != "" {
		return v.FileName
	}
	return v.Presentation.ID
}

// Options configures optional host behavior. Views not looked up for
// IdleTimeout are closed by Run.
type Options struct {
	History     decks.UploadRepository
	Session     *playback.Options
	Channels    Channels
	IdleTimeout time.Duration
	NowFunc     func() time.Time
}

// Host opens presentations and keeps track of the live views.
type Host struct {
	logger      *slog.Logger
	backend     Backend
	store       playback.AssetStore
	history     decks.UploadRepository
	sessionOpts playback.Options
	channels    Channels
	idle        time.Duration
	now         func() time.Time

	mu    sync.Mutex
	views map[uuid.UUID]*View
}

// NewHost constructs a Host.
func NewHost(logger *slog.Logger, backend Backend, store playback.AssetStore, opts *Options) *Host {
	if opts == nil {
		opts = &Options{}
	}
	now := opts.NowFunc
	if now == nil {
		now = time.Now
	}
	idle := opts.IdleTimeout
	if idle <= 0 {
		idle = defaultIdleTimeout
	}
	var sessionOpts playback.Options
	if opts.Session != nil {
		sessionOpts = *opts.Session
	}
	return &Host{
		logger:      logger,
		backend:     backend,
		store:       store,
		history:     opts.History,
		sessionOpts: sessionOpts,
		channels:    opts.Channels,
		idle:        idle,
		now:         now,
		views:       make(map[uuid.UUID]*View),
	}
}

// Open resolves the viewer URL and slide count of a presentation and
// registers a new view for it. A missing view URL is fatal; a failed
// status lookup only leaves the slide count unknown.
func (h *Host) Open(ctx context.Context, presentationID string) (*View, error) {
	if presentationID == "" {
		return nil, fmt.Errorf("open view: %w", decks.ErrMissingID)
	}

	viewURL, err := h.backend.GetViewURL(ctx, presentationID)
	if err != nil {
		return nil, fmt.Errorf("open view: %w", err)
	}
	if viewURL.URL == "" {
		return nil, fmt.Errorf("open view %s: %w", presentationID, ErrNoViewURL)
	}

	pres := decks.Presentation{
		ID:            presentationID,
		ViewURL:       viewURL.URL,
		ViewURLExpiry: viewURL.Expiry,
	}

	status, err := h.backend.GetStatus(ctx, presentationID)
	if err != nil {
		h.logger.Warn("presentation status unavailable",
			slog.String("presentation_id", presentationID),
			slog.String("error", gateway.Message(err)),
		)
	} else {
		pres.SlideCount = status.SlideCount
	}

	view := &View{
		ID:           uuid.New(),
		Presentation: pres,
		FileName:     h.recordOpen(ctx, pres),
		OpenedAt:     h.now(),
	}

	sessionOpts := h.sessionOpts
	if h.channels != nil {
		sessionOpts.Notifier = notify.Multi{sessionOpts.Notifier, h.channels.Channel(view.ID.String())}
	}
	view.Session = playback.NewSession(h.logger, h.backend, h.store, presentationID, pres.SlideCount, &sessionOpts)

	h.mu.Lock()
	view.lastSeen = view.OpenedAt
	h.views[view.ID] = view
	h.mu.Unlock()

	h.logger.Info("view opened",
		slog.String("view_id", view.ID.String()),
		slog.String("presentation_id", presentationID),
		slog.Int("slides", pres.SlideCount),
	)
	return view, nil
}

// recordOpen stores the slide count in the upload history and returns the
// deck's file name from it. History failures never block opening a view.
func (h *Host) recordOpen(ctx context.Context, pres decks.Presentation) string {
	if h.history == nil {
		return ""
	}
	if pres.SlideCount > 0 {
		if err := h.history.UpdateSlideCount(ctx, pres.ID, pres.SlideCount); err != nil && !errors.Is(err, decks.ErrNotFound) {
			h.logger.Warn("record slide count",
				slog.String("presentation_id", pres.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	upload, err := h.history.Get(ctx, pres.ID)
	if err != nil {
		if !errors.Is(err, decks.ErrNotFound) {
			h.logger.Warn("load upload record",
				slog.String("presentation_id", pres.ID),
				slog.String("error", err.Error()),
			)
		}
		return ""
	}
	return upload.FileName
}

// Get returns an open view and marks it as in use.
func (h *Host) Get(id uuid.UUID) (*View, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	view, ok := h.views[id]
	if !ok {
		return nil, decks.ErrNotFound
	}
	view.lastSeen = h.now()
	return view, nil
}

// Close tears a view down and releases its audio.
func (h *Host) Close(id uuid.UUID) error {
	h.mu.Lock()
	view, ok := h.views[id]
	delete(h.views, id)
	h.mu.Unlock()

	if !ok {
		return decks.ErrNotFound
	}
	view.Session.Close()
	return nil
}

// CloseAll tears down every open view.
func (h *Host) CloseAll() {
	h.mu.Lock()
	views := h.views
	h.views = make(map[uuid.UUID]*View)
	h.mu.Unlock()

	for _, view := range views {
		view.Session.Close()
	}
}

// Expire closes every view idle for longer than the idle timeout and
// returns how many were closed.
func (h *Host) Expire() int {
	cutoff := h.now().Add(-h.idle)

	h.mu.Lock()
	var stale []*View
	for id, view := range h.views {
		if view.lastSeen.Before(cutoff) {
			stale = append(stale, view)
			delete(h.views, id)
		}
	}
	h.mu.Unlock()

	for _, view := range stale {
		view.Session.Close()
		h.logger.Info("view expired",
			slog.String("view_id", view.ID.String()),
			slog.String("presentation_id", view.Presentation.ID),
		)
	}
	return len(stale)
}

// Run expires idle views periodically until ctx is done.
func (h *Host) Run(ctx context.Context) {
	ticker := time.NewTicker(max(h.idle/4, time.Second))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.Expire()
		}
	}
}

// Len reports the number of open views.
func (h *Host) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.views)
}
