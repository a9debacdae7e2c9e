package pipeline

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"sync"

	"lukechampine.com/blake3"

	"slidevoice/internal/decks"
	"slidevoice/internal/gateway"
	"slidevoice/internal/notify"
)

// Phase labels a pipeline step.
type Phase string

const (
	PhaseUploading  Phase = "uploading"
	PhaseMaterials  Phase = "processing-materials"
	PhaseGenerating Phase = "generating-script"
)

// Progress is one element of a run's progress stream.
type Progress struct {
	Phase   Phase `json:"phase"`
	Percent int   `json:"percent"`
}

// StepError reports the step a run halted at. Its message is the step's
// error text, unchanged.
type StepError struct {
	Phase Phase
	Err   error
}

func (e *StepError) Error() string { return gateway.Message(e.Err) }

func (e *StepError) Unwrap() error { return e.Err }

// Gateway is the subset of the backend client the pipeline drives.
type Gateway interface {
	UploadDeck(ctx context.Context, file gateway.File, onProgress gateway.ProgressFunc) (decks.Presentation, error)
	UploadMaterials(ctx context.Context, presentationID string, file gateway.File) (json.RawMessage, error)
	GenerateBotScript(ctx context.Context, presentationID string) (json.RawMessage, error)
}

// Request describes one upload. Materials is optional; GenerateScript
// controls the final step. Notifier, when set, receives this run's
// notifications in addition to the pipeline-wide notifier.
type Request struct {
	Deck           gateway.File
	DeckSize       int64
	Materials      *gateway.File
	GenerateScript bool
	Notifier       notify.Notifier
}

// Result summarizes a successful (or partially successful) run.
type Result struct {
	Presentation    decks.Presentation
	Fingerprint     string
	DeckBytes       int64
	Materials       string
	ScriptRequested bool
	Completed       []Phase
}

// Options configures optional pipeline behavior.
type Options struct {
	MaxDeckBytes int64
	Notifier     notify.Notifier
}

// Pipeline uploads a deck and prepares it for narration, one step at a time.
type Pipeline struct {
	logger       *slog.Logger
	gw           Gateway
	maxDeckBytes int64
	notifier     notify.Notifier
}

// New constructs a Pipeline.
func New(logger *slog.Logger, gw Gateway, opts *Options) *Pipeline {
	if opts == nil {
		opts = &Options{}
	}
	maxBytes := opts.MaxDeckBytes
	if maxBytes <= 0 {
		maxBytes = decks.DefaultMaxDeckBytes
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.Discard{}
	}
	return &Pipeline{
		logger:       logger,
		gw:           gw,
		maxDeckBytes: maxBytes,
		notifier:     notifier,
	}
}

// Validate checks a request without touching the network.
func (p *Pipeline) Validate(req Request) error {
	if err := decks.ValidateDeck(req.Deck.Name, req.DeckSize, p.maxDeckBytes); err != nil {
		return &StepError{Phase: PhaseUploading, Err: err}
	}
	if req.Deck.Body == nil {
		return &StepError{Phase: PhaseUploading, Err: fmt.Errorf("%w: no file selected", decks.ErrInvalidFile)}
	}
	if req.Materials != nil {
		if err := decks.ValidateMaterial(req.Materials.Name); err != nil {
			return &StepError{Phase: PhaseMaterials, Err: err}
		}
	}
	return nil
}

// Start prepares a run. Nothing happens until its progress is consumed or
// its result is requested.
func (p *Pipeline) Start(ctx context.Context, req Request) *Run {
	return &Run{p: p, ctx: ctx, req: req, finished: make(chan struct{})}
}

// Run is a single pipeline execution.
type Run struct {
	p   *Pipeline
	ctx context.Context
	req Request

	once     sync.Once
	finished chan struct{}
	result   Result
	err      error
}

// Progress executes the run while yielding its progress. The sequence can
// be ranged over once; later calls yield nothing. Breaking out of the loop
// cancels the remaining steps.
func (r *Run) Progress() iter.Seq[Progress] {
	return func(yield func(Progress) bool) {
		r.once.Do(func() {
			defer close(r.finished)
			r.result, r.err = r.execute(yield)
		})
	}
}

// Result waits for the run to finish, executing it without progress
// delivery if nobody ranged over Progress.
func (r *Run) Result() (Result, error) {
	for range r.Progress() {
	}
	<-r.finished
	return r.result, r.err
}

func (r *Run) execute(yield func(Progress) bool) (Result, error) {
	ctx, cancel := context.WithCancel(r.ctx)
	defer cancel()

	stopped := false
	emit := func(phase Phase, pct int) {
		if stopped {
			return
		}
		if !yield(Progress{Phase: phase, Percent: pct}) {
			stopped = true
			cancel()
		}
	}

	p := r.p
	var result Result

	if err := p.Validate(r.req); err != nil {
		return result, r.fail(err.(*StepError), result)
	}

	emit(PhaseUploading, 0)
	pres, fingerprint, size, err := r.uploadDeck(ctx, emit)
	if err != nil {
		return result, r.fail(&StepError{Phase: PhaseUploading, Err: err}, result)
	}
	result.Presentation = pres
	result.Fingerprint = fingerprint
	result.DeckBytes = size
	result.Completed = append(result.Completed, PhaseUploading)
	emit(PhaseUploading, 100)
	p.logger.Info("deck uploaded",
		slog.String("presentation_id", pres.ID),
		slog.String("file", r.req.Deck.Name),
		slog.String("fingerprint", fingerprint),
	)

	if m := r.req.Materials; m != nil {
		emit(PhaseMaterials, 0)
		if _, err := p.gw.UploadMaterials(ctx, pres.ID, *m); err != nil {
			return result, r.fail(&StepError{Phase: PhaseMaterials, Err: err}, result)
		}
		result.Materials = m.Name
		result.Completed = append(result.Completed, PhaseMaterials)
		emit(PhaseMaterials, 100)
	}

	if r.req.GenerateScript {
		emit(PhaseGenerating, 0)
		if _, err := p.gw.GenerateBotScript(ctx, pres.ID); err != nil {
			return result, r.fail(&StepError{Phase: PhaseGenerating, Err: err}, result)
		}
		result.ScriptRequested = true
		result.Completed = append(result.Completed, PhaseGenerating)
		emit(PhaseGenerating, 100)
	}

	r.notifier().Notify("Presentation uploaded", r.req.Deck.Name, notify.LevelSuccess)
	return result, nil
}

// uploadDeck runs the upload on its own goroutine so byte progress, which
// the transport reports from its writer, is delivered on the caller's.
func (r *Run) uploadDeck(ctx context.Context, emit func(Phase, int)) (decks.Presentation, string, int64, error) {
	hasher := blake3.New(32, nil)
	counter := &countingWriter{}
	file := gateway.File{
		Name: r.req.Deck.Name,
		Body: io.TeeReader(r.req.Deck.Body, io.MultiWriter(hasher, counter)),
	}

	updates := make(chan int, 1)
	type outcome struct {
		pres decks.Presentation
		err  error
	}
	done := make(chan outcome, 1)

	go func() {
		pres, err := r.p.gw.UploadDeck(ctx, file, func(sent, total int64) {
			pct := percent(sent, total)
			select {
			case <-updates:
			default:
			}
			updates <- pct
		})
		done <- outcome{pres: pres, err: err}
	}()

	last := 0
	for {
		select {
		case pct := <-updates:
			// 100 is only reported once the backend accepted the deck
			if pct > last && pct < 100 {
				last = pct
				emit(PhaseUploading, pct)
			}
		case out := <-done:
			if out.err != nil {
				return decks.Presentation{}, "", 0, out.err
			}
			return out.pres, hex.EncodeToString(hasher.Sum(nil)), counter.n, nil
		}
	}
}

func (r *Run) notifier() notify.Notifier {
	if r.req.Notifier == nil {
		return r.p.notifier
	}
	return notify.Multi{r.p.notifier, r.req.Notifier}
}

func (r *Run) fail(stepErr *StepError, result Result) error {
	r.p.logger.Error("pipeline step failed",
		slog.String("phase", string(stepErr.Phase)),
		slog.String("presentation_id", result.Presentation.ID),
		slog.String("error", stepErr.Error()),
	)
	r.notifier().Notify("Step failed: "+string(stepErr.Phase), stepErr.Error(), notify.LevelError)
	return stepErr
}

func percent(sent, total int64) int {
	if total <= 0 {
		return 0
	}
	pct := int(sent * 100 / total)
	return min(max(pct, 0), 100)
}

type countingWriter struct {
	n int64
}

func (w *countingWriter) Write(b []byte) (int, error) {
	w.n += int64(len(b))
	return len(b), nil
}
