package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"slidevoice/internal/decks"
)

const defaultTimeout = 2 * time.Minute

// Options configures optional client behavior.
type Options struct {
	HTTPClient   *http.Client
	DefaultVoice string
}

// Client is the typed boundary to the narration backend. It holds no
// business state.
type Client struct {
	logger     *slog.Logger
	baseURL    string
	httpClient *http.Client
	voice      string
}

// NewClient creates a client for the API rooted at baseURL (base URL plus
// version prefix).
func NewClient(logger *slog.Logger, baseURL string, opts *Options) *Client {
	if opts == nil {
		opts = &Options{}
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: defaultTimeout,
		}
	}

	return &Client{
		logger:     logger,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		voice:      opts.DefaultVoice,
	}
}

// File is an upload payload.
type File struct {
	Name string
	Body io.Reader
}

// ProgressFunc receives the number of request bytes sent so far.
type ProgressFunc func(sent, total int64)

// Status is the presentation metadata returned by the status endpoint.
type Status struct {
	ID         string
	State      string
	SlideCount int
}

// ViewURL is a time-limited signed URL for the document viewer.
type ViewURL struct {
	PresentationID string
	URL            string
	Expiry         time.Time
}

// Audio is a raw binary speech payload.
type Audio struct {
	Data        []byte
	ContentType string
}

type presentationInfo struct {
	ID         string   `json:"id"`
	Status     string   `json:"status"`
	SlideCount *float64 `json:"slideCount"`
}

type viewURLResponse struct {
	PresentationID string `json:"presentationId"`
	ViewURL        string `json:"viewUrl"`
	SASExpiry      string `json:"sasExpiry"`
}

type scriptResponse struct {
	SlideNumber int     `json:"slideNumber"`
	Script      *string `json:"script"`
	Source      string  `json:"source"`
}

// UploadDeck posts a .ppt/.pptx file and returns the new presentation id.
func (c *Client) UploadDeck(ctx context.Context, file File, onProgress ProgressFunc) (decks.Presentation, error) {
	const op = "upload deck"
	if err := decks.ValidateDeck(file.Name, 0, 0); err != nil {
		return decks.Presentation{}, validationError(op, err)
	}

	var info presentationInfo
	if err := c.postFile(ctx, op, "/presentations/upload", file, onProgress, &info); err != nil {
		return decks.Presentation{}, err
	}
	if strings.TrimSpace(info.ID) == "" {
		return decks.Presentation{}, &Error{
			Kind:    KindServer,
			Op:      op,
			Message: "upload succeeded but the response is missing the presentation id",
		}
	}

	return decks.Presentation{ID: info.ID, SlideCount: slideCount(info.SlideCount)}, nil
}

// GetStatus fetches presentation metadata. An absent or malformed slide
// count is reported as zero (unknown).
func (c *Client) GetStatus(ctx context.Context, presentationID string) (Status, error) {
	const op = "get status"
	if err := requireID(op, presentationID); err != nil {
		return Status{}, err
	}

	var info presentationInfo
	if err := c.getJSON(ctx, op, presentationPath(presentationID, ""), nil, &info); err != nil {
		return Status{}, err
	}

	count := slideCount(info.SlideCount)
	if count == 0 && (info.SlideCount == nil || *info.SlideCount != 0) {
		c.logger.Warn("presentation status has no usable slide count", slog.String("presentation_id", presentationID))
	}

	return Status{ID: info.ID, State: info.Status, SlideCount: count}, nil
}

// GetViewURL fetches the signed URL used by the document viewer.
func (c *Client) GetViewURL(ctx context.Context, presentationID string) (ViewURL, error) {
	const op = "get view url"
	if err := requireID(op, presentationID); err != nil {
		return ViewURL{}, err
	}

	var resp viewURLResponse
	if err := c.getJSON(ctx, op, presentationPath(presentationID, "/view-url"), nil, &resp); err != nil {
		return ViewURL{}, err
	}

	view := ViewURL{PresentationID: resp.PresentationID, URL: strings.TrimSpace(resp.ViewURL)}
	if view.PresentationID == "" {
		view.PresentationID = presentationID
	}
	if resp.SASExpiry != "" {
		expiry, err := time.Parse(time.RFC3339Nano, resp.SASExpiry)
		if err != nil {
			c.logger.Debug("unparseable sas expiry", slog.String("value", resp.SASExpiry))
		} else {
			view.Expiry = expiry
		}
	}
	return view, nil
}

// GetOriginalSpeech fetches speech synthesized from the slide's own text.
func (c *Client) GetOriginalSpeech(ctx context.Context, presentationID string, slideNumber int, voice string) (Audio, error) {
	const op = "get original speech"
	if err := requireSlide(op, presentationID, slideNumber); err != nil {
		return Audio{}, err
	}

	query := url.Values{}
	query.Set("slide_number", strconv.Itoa(slideNumber))
	if v := c.voiceOr(voice); v != "" {
		query.Set("voice", v)
	}
	return c.getAudio(ctx, op, presentationPath(presentationID, "/bot-script-speech"), query)
}

// GetGeneratedScript fetches the AI-generated narration for a slide.
func (c *Client) GetGeneratedScript(ctx context.Context, presentationID string, slideNumber int) (decks.ScriptRecord, error) {
	const op = "get generated script"
	if err := requireSlide(op, presentationID, slideNumber); err != nil {
		return decks.ScriptRecord{}, err
	}

	var resp scriptResponse
	if err := c.getJSON(ctx, op, slidePath(presentationID, slideNumber, "/generated-script"), nil, &resp); err != nil {
		return decks.ScriptRecord{}, err
	}
	if resp.Script == nil {
		return decks.ScriptRecord{}, &Error{Kind: KindServer, Op: op, Message: "received invalid script data format"}
	}

	record := decks.ScriptRecord{SlideNumber: slideNumber, Text: *resp.Script, Source: resp.Source}
	if record.Source == "" {
		record.Source = decks.SourceUnknown
	}
	return record, nil
}

// GetGeneratedSpeech fetches speech synthesized from the generated script.
func (c *Client) GetGeneratedSpeech(ctx context.Context, presentationID string, slideNumber int, voice string) (Audio, error) {
	const op = "get generated speech"
	if err := requireSlide(op, presentationID, slideNumber); err != nil {
		return Audio{}, err
	}

	var query url.Values
	if v := c.voiceOr(voice); v != "" {
		query = url.Values{"voice": []string{v}}
	}
	return c.getAudio(ctx, op, slidePath(presentationID, slideNumber, "/generated-speech"), query)
}

// UploadMaterials attaches a supporting document to a presentation.
func (c *Client) UploadMaterials(ctx context.Context, presentationID string, file File) (json.RawMessage, error) {
	const op = "upload materials"
	if err := requireID(op, presentationID); err != nil {
		return nil, err
	}
	if err := decks.ValidateMaterial(file.Name); err != nil {
		return nil, validationError(op, err)
	}

	var raw json.RawMessage
	if err := c.postFile(ctx, op, presentationPath(presentationID, "/upload-user-script"), file, nil, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// GenerateBotScript asks the backend to (re)generate narration scripts.
// Every call is a fresh generation request.
func (c *Client) GenerateBotScript(ctx context.Context, presentationID string) (json.RawMessage, error) {
	const op = "generate bot script"
	if err := requireID(op, presentationID); err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, presentationPath(presentationID, "/generate-bot-script"), nil, nil)
	if err != nil {
		return nil, validationError(op, err)
	}
	req.Header.Set("Accept", "application/json")

	var raw json.RawMessage
	if err := c.doJSON(req, op, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// UploadDocument uploads a standalone document not tied to a presentation.
func (c *Client) UploadDocument(ctx context.Context, file File, description string) (json.RawMessage, error) {
	const op = "upload document"
	if err := decks.ValidateMaterial(file.Name); err != nil {
		return nil, validationError(op, err)
	}

	body, contentType, err := multipartBody(file, map[string]string{"description": description})
	if err != nil {
		return nil, validationError(op, err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/documents/upload", nil, bytes.NewReader(body))
	if err != nil {
		return nil, validationError(op, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	var raw json.RawMessage
	if err := c.doJSON(req, op, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func (c *Client) getJSON(ctx context.Context, op, path string, query url.Values, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return validationError(op, err)
	}
	req.Header.Set("Accept", "application/json")
	return c.doJSON(req, op, out)
}

func (c *Client) postFile(ctx context.Context, op, path string, file File, onProgress ProgressFunc, out any) error {
	body, contentType, err := multipartBody(file, nil)
	if err != nil {
		return validationError(op, err)
	}

	var reader io.Reader = bytes.NewReader(body)
	if onProgress != nil {
		reader = &progressReader{r: reader, total: int64(len(body)), fn: onProgress}
	}

	req, err := c.newRequest(ctx, http.MethodPost, path, nil, reader)
	if err != nil {
		return validationError(op, err)
	}
	req.ContentLength = int64(len(body))
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("uploading file",
		slog.String("op", op),
		slog.String("file", file.Name),
		slog.Int("bytes", len(body)),
	)
	return c.doJSON(req, op, out)
}

func (c *Client) getAudio(ctx context.Context, op, path string, query url.Values) (Audio, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return Audio{}, validationError(op, err)
	}
	req.Header.Set("Accept", "audio/*, application/json")

	resp, body, err := c.do(req, op)
	if err != nil {
		return Audio{}, err
	}

	if resp.StatusCode >= 400 {
		gwErr := responseError(op, resp.StatusCode, resp.Header.Get("Content-Type"), body, true)
		c.logFailure(gwErr)
		return Audio{}, gwErr
	}

	return Audio{Data: body, ContentType: resp.Header.Get("Content-Type")}, nil
}

func (c *Client) doJSON(req *http.Request, op string, out any) error {
	resp, body, err := c.do(req, op)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		gwErr := responseError(op, resp.StatusCode, resp.Header.Get("Content-Type"), body, false)
		c.logFailure(gwErr)
		return gwErr
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &Error{
			Kind:    KindServer,
			Op:      op,
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("decode response: %v", err),
			Err:     err,
		}
	}
	return nil
}

func (c *Client) do(req *http.Request, op string) (*http.Response, []byte, error) {
	c.logger.Debug("calling backend",
		slog.String("op", op),
		slog.String("method", req.Method),
		slog.String("url", req.URL.String()),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		gwErr := transportError(op, err)
		c.logger.Error("backend request failed",
			slog.String("op", op),
			slog.String("url", req.URL.String()),
			slog.String("error", err.Error()),
		)
		return nil, nil, gwErr
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Error("read backend response failed", slog.String("op", op), slog.String("error", err.Error()))
		return nil, nil, transportError(op, err)
	}

	c.logger.Debug("backend response received",
		slog.String("op", op),
		slog.Int("status_code", resp.StatusCode),
		slog.String("content_type", resp.Header.Get("Content-Type")),
		slog.Int("bytes", len(body)),
	)
	return resp, body, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	return req, nil
}

func (c *Client) logFailure(err *Error) {
	c.logger.Error("backend returned error",
		slog.String("op", err.Op),
		slog.Int("status_code", err.Status),
		slog.String("message", err.Message),
	)
}

func (c *Client) voiceOr(voice string) string {
	if voice != "" {
		return voice
	}
	return c.voice
}

func requireID(op, presentationID string) error {
	if strings.TrimSpace(presentationID) == "" {
		return validationError(op, fmt.Errorf("%w: %s requires a presentation id", decks.ErrMissingID, op))
	}
	return nil
}

func requireSlide(op, presentationID string, slideNumber int) error {
	if err := requireID(op, presentationID); err != nil {
		return err
	}
	if slideNumber < 1 {
		return validationError(op, fmt.Errorf("%w: %s requires a slide number, got %d", decks.ErrInvalidSlide, op, slideNumber))
	}
	return nil
}

func presentationPath(presentationID, suffix string) string {
	return "/presentations/" + url.PathEscape(presentationID) + suffix
}

func slidePath(presentationID string, slideNumber int, suffix string) string {
	return presentationPath(presentationID, "/slides/"+strconv.Itoa(slideNumber)+suffix)
}

// slideCount accepts only non-negative whole numbers; anything else is unknown.
func slideCount(v *float64) int {
	if v == nil || *v < 0 || *v != math.Trunc(*v) || *v > math.MaxInt32 {
		return 0
	}
	return int(*v)
}
