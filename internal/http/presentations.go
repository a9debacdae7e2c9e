package http

import (
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"slidevoice/internal/decks"
	"slidevoice/internal/gateway"
	"slidevoice/internal/notify"
	"slidevoice/internal/pipeline"
)

const (
	recentLimit     = 10
	multipartMemory = 32 << 20
	// room for the optional materials file and form fields on top of the deck
	uploadOverhead = 32 << 20
)

// progressEvent is published on the upload token's hub channel while a
// pipeline runs.
type progressEvent struct {
	Token   string         `json:"token"`
	Phase   pipeline.Phase `json:"phase"`
	Percent int            `json:"percent"`
}

// uploadFailure is the page shown when a pipeline step fails. When the deck
// itself was accepted, PresentationID links to it.
type uploadFailure struct {
	Phase          string
	Message        string
	PresentationID string
	Lang           string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	lang := s.getLanguage(r)

	var uploads []decks.Upload
	if s.deps.History != nil {
		var err error
		uploads, err = s.deps.History.ListRecent(ctx, recentLimit)
		if err != nil {
			s.serverError(w, err)
			return
		}
	}

	payload := map[string]any{
		"Uploads":          uploads,
		"Token":            uuid.NewString(),
		"MaxDeckMB":        s.deps.MaxDeckBytes >> 20,
		"DocumentUploaded": r.URL.Query().Get("document") == "ok",
		"Lang":             lang,
	}
	s.renderPage(w, lang, "SlideVoice", "index.html", payload)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.deps.MaxDeckBytes+uploadOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.clientError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("file is larger than %d MB", s.deps.MaxDeckBytes>>20))
			return
		}
		s.clientError(w, http.StatusBadRequest, "invalid form data")
		return
	}
	defer r.MultipartForm.RemoveAll()

	deck, deckHeader, err := r.FormFile("deck")
	if err != nil {
		s.clientError(w, http.StatusBadRequest, "please select a .ppt or .pptx file")
		return
	}
	defer deck.Close()

	req := pipeline.Request{
		Deck:           gateway.File{Name: deckHeader.Filename, Body: deck},
		DeckSize:       deckHeader.Size,
		GenerateScript: r.FormValue("generate_script") != "",
	}

	materials, materialsHeader, err := optionalFile(r, "materials")
	if err != nil {
		s.clientError(w, http.StatusBadRequest, "invalid materials file")
		return
	}
	if materials != nil {
		defer materials.Close()
		req.Materials = &gateway.File{Name: materialsHeader.Filename, Body: materials}
	}

	if err := s.deps.Pipeline.Validate(req); err != nil {
		s.clientError(w, http.StatusBadRequest, err.Error())
		return
	}

	token := strings.TrimSpace(r.FormValue("token"))
	req.Notifier = s.channel(token)
	run := s.deps.Pipeline.Start(r.Context(), req)
	for p := range run.Progress() {
		s.publish(token, progressEvent{Token: token, Phase: p.Phase, Percent: p.Percent})
	}

	result, err := run.Result()
	if result.Presentation.ID != "" {
		s.recordUpload(r, req, result)
	}
	if err != nil {
		s.uploadFailed(w, r, result, err)
		return
	}

	http.Redirect(w, r, "/presentations/"+result.Presentation.ID, http.StatusSeeOther)
}

func (s *Server) uploadFailed(w http.ResponseWriter, r *http.Request, result pipeline.Result, err error) {
	var stepErr *pipeline.StepError
	status, msg := s.backendStatus(err)
	if !errors.As(err, &stepErr) || status == http.StatusInternalServerError {
		s.backendError(w, err)
		return
	}
	s.logger.Warn("upload pipeline halted",
		slog.String("phase", string(stepErr.Phase)),
		slog.String("presentation_id", result.Presentation.ID),
	)

	lang := s.getLanguage(r)
	s.renderPageStatus(w, status, lang, "SlideVoice", "upload_failed.html", uploadFailure{
		Phase:          string(stepErr.Phase),
		Message:        msg,
		PresentationID: result.Presentation.ID,
		Lang:           lang,
	})
}

func (s *Server) recordUpload(r *http.Request, req pipeline.Request, result pipeline.Result) {
	if s.deps.History == nil {
		return
	}
	upload := decks.Upload{
		PresentationID:  result.Presentation.ID,
		FileName:        req.Deck.Name,
		Fingerprint:     result.Fingerprint,
		SizeBytes:       result.DeckBytes,
		Materials:       result.Materials,
		ScriptRequested: result.ScriptRequested,
		SlideCount:      result.Presentation.SlideCount,
		CreatedAt:       s.now().UTC(),
	}
	if err := s.deps.History.Save(r.Context(), upload); err != nil {
		s.logger.Warn("record upload failed",
			slog.String("presentation_id", upload.PresentationID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	view, err := s.deps.Host.Open(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.backendError(w, err)
		return
	}
	http.Redirect(w, r, viewPath(view.ID), http.StatusSeeOther)
}

func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	if s.deps.Documents == nil {
		s.clientError(w, http.StatusNotFound, "document upload is not available")
		return
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		s.clientError(w, http.StatusBadRequest, "invalid form data")
		return
	}
	defer r.MultipartForm.RemoveAll()

	doc, header, err := r.FormFile("document")
	if err != nil {
		s.clientError(w, http.StatusBadRequest, "please select a document")
		return
	}
	defer doc.Close()

	file := gateway.File{Name: header.Filename, Body: doc}
	if _, err := s.deps.Documents.UploadDocument(r.Context(), file, r.FormValue("description")); err != nil {
		s.backendError(w, err)
		return
	}
	notify.Multi{s.deps.Notifier, s.channel(r.FormValue("token"))}.Notify("Document uploaded", header.Filename, notify.LevelSuccess)
	http.Redirect(w, r, "/?document=ok", http.StatusSeeOther)
}

func (s *Server) publish(token string, ev progressEvent) {
	if s.deps.Events == nil {
		return
	}
	s.deps.Events.Publish(token, notify.TopicProgress, ev)
}

func optionalFile(r *http.Request, field string) (multipart.File, *multipart.FileHeader, error) {
	f, h, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	if h.Filename == "" {
		f.Close()
		return nil, nil, nil
	}
	return f, h, nil
}
