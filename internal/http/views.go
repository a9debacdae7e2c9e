package http

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"slidevoice/internal/decks"
	"slidevoice/internal/gateway"
	"slidevoice/internal/playback"
	"slidevoice/internal/viewer"
)

type viewPage struct {
	View      *viewer.View
	Snap      playback.Snapshot
	Original  decks.OpState
	Generated decks.OpState
	Script    decks.OpState
	Materials decks.OpState
	Lang      string
}

func viewPath(id uuid.UUID) string {
	return "/views/" + id.String()
}

func (s *Server) lookupView(w http.ResponseWriter, r *http.Request) (*viewer.View, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "viewID"))
	if err != nil {
		s.clientError(w, http.StatusBadRequest, "invalid view id")
		return nil, false
	}
	view, err := s.deps.Host.Get(id)
	if err != nil {
		s.clientError(w, http.StatusNotFound, "view not found")
		return nil, false
	}
	return view, true
}

func (s *Server) newViewPage(r *http.Request, view *viewer.View) viewPage {
	snap := view.Session.Snapshot()
	return viewPage{
		View:      view,
		Snap:      snap,
		Original:  snap.Op(decks.ActionFetchOriginal),
		Generated: snap.Op(decks.ActionFetchGenerated),
		Script:    snap.Op(decks.ActionFetchScript),
		Materials: snap.Op(decks.ActionUploadMaterials),
		Lang:      s.getLanguage(r),
	}
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	view, ok := s.lookupView(w, r)
	if !ok {
		return
	}
	page := s.newViewPage(r, view)
	s.renderPage(w, page.Lang, "SlideVoice: "+view.Title(), "viewer.html", page)
}

// respond renders the controls for htmx requests and redirects back to the
// viewer otherwise.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, view *viewer.View) {
	if isHTMX(r) {
		s.renderPartial(w, "controls.html", s.newViewPage(r, view))
		return
	}
	http.Redirect(w, r, viewPath(view.ID), http.StatusSeeOther)
}

// actionDone logs the outcome of a session action. Failures are already
// recorded in the session's operation state, so the page is rendered
// either way.
func (s *Server) actionDone(w http.ResponseWriter, r *http.Request, view *viewer.View, action string, err error) {
	switch {
	case err == nil:
	case errors.Is(err, playback.ErrClosed):
		s.clientError(w, http.StatusGone, "view closed")
		return
	case errors.Is(err, playback.ErrStale):
		s.logger.Debug("discarded stale response", slog.String("action", action))
	default:
		s.logger.Debug("session action failed",
			slog.String("action", action),
			slog.String("view_id", view.ID.String()),
			slog.String("error", gateway.Message(err)),
		)
	}
	s.respond(w, r, view)
}

func (s *Server) handleGoToSlide(w http.ResponseWriter, r *http.Request) {
	view, ok := s.lookupView(w, r)
	if !ok {
		return
	}
	n, err := strconv.Atoi(chi.URLParam(r, "n"))
	if err != nil {
		s.clientError(w, http.StatusBadRequest, "invalid slide number")
		return
	}
	view.Session.GoToSlide(n)
	s.respond(w, r, view)
}

func (s *Server) handlePrevious(w http.ResponseWriter, r *http.Request) {
	view, ok := s.lookupView(w, r)
	if !ok {
		return
	}
	view.Session.Previous()
	s.respond(w, r, view)
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	view, ok := s.lookupView(w, r)
	if !ok {
		return
	}
	view.Session.Next()
	s.respond(w, r, view)
}

func (s *Server) handlePlayAudio(w http.ResponseWriter, r *http.Request) {
	view, ok := s.lookupView(w, r)
	if !ok {
		return
	}
	kind, ok := decks.ParseAudioKind(chi.URLParam(r, "kind"))
	if !ok {
		s.clientError(w, http.StatusBadRequest, "unknown audio kind")
		return
	}
	err := view.Session.PlayAudio(r.Context(), kind)
	s.actionDone(w, r, view, string(decks.AudioAction(kind)), err)
}

func (s *Server) handleStopAudio(w http.ResponseWriter, r *http.Request) {
	view, ok := s.lookupView(w, r)
	if !ok {
		return
	}
	view.Session.StopAudio()
	s.respond(w, r, view)
}

func (s *Server) handleAudioEnded(w http.ResponseWriter, r *http.Request) {
	view, ok := s.lookupView(w, r)
	if !ok {
		return
	}
	view.Session.AudioEnded()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleToggleScript(w http.ResponseWriter, r *http.Request) {
	view, ok := s.lookupView(w, r)
	if !ok {
		return
	}
	err := view.Session.ToggleScript(r.Context())
	s.actionDone(w, r, view, string(decks.ActionFetchScript), err)
}

func (s *Server) handleUploadMaterials(w http.ResponseWriter, r *http.Request) {
	view, ok := s.lookupView(w, r)
	if !ok {
		return
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		s.clientError(w, http.StatusBadRequest, "invalid form data")
		return
	}
	defer r.MultipartForm.RemoveAll()

	f, header, err := r.FormFile("materials")
	if err != nil {
		s.clientError(w, http.StatusBadRequest, "please select a file")
		return
	}
	defer f.Close()

	err = view.Session.UploadMaterials(r.Context(), gateway.File{Name: header.Filename, Body: f})
	s.actionDone(w, r, view, string(decks.ActionUploadMaterials), err)
}

func (s *Server) handleCloseView(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "viewID"))
	if err != nil {
		s.clientError(w, http.StatusBadRequest, "invalid view id")
		return
	}
	if err := s.deps.Host.Close(id); err != nil {
		s.clientError(w, http.StatusNotFound, "view not found")
		return
	}
	if r.Method == http.MethodDelete {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleAudio serves a live playback asset. Revoked assets are gone.
func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "assetID"))
	if err != nil {
		s.clientError(w, http.StatusNotFound, "audio not found")
		return
	}
	asset, data, ok := s.deps.Assets.Open(id)
	if !ok {
		s.clientError(w, http.StatusNotFound, "audio not found")
		return
	}
	w.Header().Set("Content-Type", asset.ContentType)
	w.Header().Set("Cache-Control", "no-store")
	http.ServeContent(w, r, "", asset.CreatedAt, bytes.NewReader(data))
}
