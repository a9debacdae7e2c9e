package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"slidevoice/internal/assets"
	"slidevoice/internal/decks"
	"slidevoice/internal/gateway"
	"slidevoice/internal/i18n"
	"slidevoice/internal/notify"
	"slidevoice/internal/pipeline"
	"slidevoice/internal/viewer"
)

// DocumentUploader sends standalone reference documents to the backend.
type DocumentUploader interface {
	UploadDocument(ctx context.Context, file gateway.File, description string) (json.RawMessage, error)
}

// Deps are the components the HTTP layer drives.
type Deps struct {
	Pipeline     *pipeline.Pipeline
	Host         *viewer.Host
	Assets       *assets.Store
	History      decks.UploadRepository
	Documents    DocumentUploader
	Events       *notify.Hub
	Notifier     notify.Notifier
	MaxDeckBytes int64
}

// Server wires HTTP routing for SlideVoice.
type Server struct {
	logger    *slog.Logger
	deps      Deps
	templates *template.Template
	staticFS  http.FileSystem
	now       func() time.Time
}

// NewServer constructs a chi router implementing http.Handler.
func NewServer(logger *slog.Logger, deps Deps, templates *template.Template, staticFS http.FileSystem) http.Handler {
	if deps.Notifier == nil {
		deps.Notifier = notify.Discard{}
	}
	if deps.MaxDeckBytes <= 0 {
		deps.MaxDeckBytes = decks.DefaultMaxDeckBytes
	}
	srv := &Server{
		logger:    logger,
		deps:      deps,
		templates: templates,
		staticFS:  staticFS,
		now:       time.Now,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(srv.staticFS)))

	r.Get("/", srv.handleIndex)
	r.Post("/presentations", srv.handleUpload)
	r.Get("/presentations/{id}", srv.handleOpen)
	r.Post("/documents", srv.handleUploadDocument)

	r.Route("/views/{viewID}", func(r chi.Router) {
		r.Get("/", srv.handleView)
		r.Delete("/", srv.handleCloseView)
		r.Post("/close", srv.handleCloseView)
		r.Post("/slides/{n}", srv.handleGoToSlide)
		r.Post("/previous", srv.handlePrevious)
		r.Post("/next", srv.handleNext)
		r.Post("/audio/stop", srv.handleStopAudio)
		r.Post("/audio/ended", srv.handleAudioEnded)
		r.Post("/audio/{kind}", srv.handlePlayAudio)
		r.Post("/script", srv.handleToggleScript)
		r.Post("/materials", srv.handleUploadMaterials)
	})

	r.Get("/audio/{assetID}", srv.handleAudio)
	if deps.Events != nil {
		r.Handle("/ws", deps.Events)
	}
	r.Get("/lang/{lang}", srv.handleSetLanguage)

	return r
}

type pageView struct {
	Title       string
	Body        template.HTML
	Lang        string
	UILanguages []UILanguage
}

type UILanguage struct {
	Code string
	Name string
}

func (s *Server) renderPage(w http.ResponseWriter, lang, title, contentTemplate string, payload any) {
	s.renderPageStatus(w, http.StatusOK, lang, title, contentTemplate, payload)
}

func (s *Server) renderPageStatus(w http.ResponseWriter, status int, lang, title, contentTemplate string, payload any) {
	var body bytes.Buffer
	if err := s.templates.ExecuteTemplate(&body, contentTemplate, payload); err != nil {
		s.logger.Error("render template failed", slog.String("template", contentTemplate), slog.String("error", err.Error()))
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}

	data := pageView{
		Title:       title,
		Body:        template.HTML(body.String()),
		Lang:        lang,
		UILanguages: s.getUILanguages(),
	}
	s.executeTemplate(w, status, "base.html", data)
}

func (s *Server) renderPartial(w http.ResponseWriter, templateName string, data any) {
	s.executeTemplate(w, http.StatusOK, templateName, data)
}

func (s *Server) executeTemplate(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.logger.Error("render template failed", slog.String("template", name), slog.String("error", err.Error()))
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *Server) serverError(w http.ResponseWriter, err error) {
	s.logger.Error("request error", slog.String("error", err.Error()))
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

func (s *Server) clientError(w http.ResponseWriter, status int, msg string) {
	http.Error(w, msg, status)
}

// backendError maps a failed backend interaction onto a response.
func (s *Server) backendError(w http.ResponseWriter, err error) {
	status, msg := s.backendStatus(err)
	if status == http.StatusInternalServerError {
		s.serverError(w, err)
		return
	}
	s.clientError(w, status, msg)
}

// backendStatus picks the status and user-facing message for err. Local
// validation is the client's fault; anything the backend said (or failed
// to say) is passed through as a bad gateway with its normalized message.
func (s *Server) backendStatus(err error) (int, string) {
	var gwErr *gateway.Error
	switch {
	case errors.Is(err, decks.ErrInvalidFile), errors.Is(err, decks.ErrMissingID), errors.Is(err, decks.ErrInvalidSlide):
		return http.StatusBadRequest, gateway.Message(err)
	case errors.Is(err, decks.ErrNotFound):
		return http.StatusNotFound, "presentation not found"
	case errors.As(err, &gwErr):
		if gwErr.Kind == gateway.KindValidation {
			return http.StatusBadRequest, gwErr.Message
		}
		if gwErr.Status == http.StatusNotFound {
			return http.StatusNotFound, gwErr.Message
		}
		s.logger.Warn("backend request failed", slog.String("op", gwErr.Op), slog.String("error", gwErr.Message))
		return http.StatusBadGateway, gwErr.Message
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// channel returns the hub notifier for key, or nil without a hub.
func (s *Server) channel(key string) notify.Notifier {
	if s.deps.Events == nil || key == "" {
		return nil
	}
	return s.deps.Events.Channel(key)
}

func (s *Server) getLanguage(r *http.Request) string {
	// Check cookie first
	if cookie, err := r.Cookie("lang"); err == nil && cookie.Value != "" {
		if i18n.Supported(cookie.Value) {
			return cookie.Value
		}
	}
	// Check query param
	if lang := r.URL.Query().Get("lang"); lang != "" && i18n.Supported(lang) {
		return lang
	}
	// Check Accept-Language header
	if acceptLang := r.Header.Get("Accept-Language"); acceptLang != "" {
		parts := strings.Split(acceptLang, ",")
		langCode := strings.TrimSpace(strings.Split(parts[0], ";")[0])
		if len(langCode) >= 2 && i18n.Supported(langCode[:2]) {
			return langCode[:2]
		}
	}
	return i18n.DefaultLanguage
}

func (s *Server) getUILanguages() []UILanguage {
	result := make([]UILanguage, 0, len(i18n.Languages))
	for _, code := range i18n.Languages {
		result = append(result, UILanguage{
			Code: code,
			Name: i18n.LanguageNames[code],
		})
	}
	return result
}

func (s *Server) handleSetLanguage(w http.ResponseWriter, r *http.Request) {
	lang := chi.URLParam(r, "lang")
	if !i18n.Supported(lang) {
		lang = i18n.DefaultLanguage
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "lang",
		Value:    lang,
		Path:     "/",
		MaxAge:   365 * 24 * 60 * 60, // 1 year
		SameSite: http.SameSiteLaxMode,
	})

	// Redirect back to referer or home
	redirect := r.Header.Get("Referer")
	if redirect == "" {
		redirect = "/"
	}
	http.Redirect(w, r, redirect, http.StatusSeeOther)
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}
