// internal/workflow/engine.go
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/clickpilot/internal/artifacts"
	"github.com/xkilldash9x/clickpilot/internal/candidates"
	"github.com/xkilldash9x/clickpilot/internal/config"
	"github.com/xkilldash9x/clickpilot/internal/geometry"
	"github.com/xkilldash9x/clickpilot/internal/input"
	"github.com/xkilldash9x/clickpilot/internal/llmclient"
	"github.com/xkilldash9x/clickpilot/internal/records"
	"github.com/xkilldash9x/clickpilot/internal/secrets"
	"github.com/xkilldash9x/clickpilot/internal/vision"
)

const validationSystemPrompt = "You are verifying the state of a web page from a screenshot. " +
	"Answer the user's yes/no question. Output ONLY JSON of the form " +
	"{\"answer\":bool,\"confidence\":number,\"reasoning\":string}."

// Browser is the page-level driver the engine needs.
type Browser interface {
	Navigate(ctx context.Context, url string) error
	Screenshot(ctx context.Context) ([]byte, error)
	Click(ctx context.Context, handle string) error
	Submit(ctx context.Context, selector string) error
}

// PointResolver turns a prompt and screenshot into a viewport point.
type PointResolver interface {
	Resolve(ctx context.Context, prompt string, screenshot []byte) (vision.Point, error)
}

// CandidateSource snapshots clickable elements.
type CandidateSource interface {
	Collect(ctx context.Context, max int) ([]candidates.Candidate, error)
}

// CandidatePicker chooses one candidate for a prompt.
type CandidatePicker interface {
	Select(ctx context.Context, prompt string, cands []candidates.Candidate) int
}

// StepObserver receives step, signal and client counts.
type StepObserver interface {
	ObserveStep(kind, outcome string)
	ObserveSignal(signal string)
	ObserveClient(outcome string)
}

// Step outcomes reported to a StepObserver.
const (
	OutcomeOK     = "ok"
	OutcomeError  = "error"
	OutcomeSignal = "signal"
)

// Deps are the engine's collaborators. Any may be nil; a step that needs a
// missing one fails with ErrCodeCollaboratorMissing.
type Deps struct {
	Browser   Browser
	Injector  input.Injector
	Window    input.WindowLocator
	Zoom      input.ZoomResetter
	Resolver  PointResolver
	Collector CandidateSource
	Selector  CandidatePicker
	// Validator answers validation questions on the reasoning tier.
	Validator llmclient.VisionClient
	Store     records.Store
	Roster    *records.Roster
	Secrets   secrets.Provider
	// SecretRecordID names the credentials record used for TypeText
	// secrets and TypeOTP.
	SecretRecordID string
	Mapper         geometry.Mapper
	MaxCandidates  int
}

// verdict is the validator's reply.
type verdict struct {
	Answer     bool     `json:"answer"`
	Confidence *float64 `json:"confidence,omitempty"`
	Reasoning  string   `json:"reasoning,omitempty"`
}

type stepHandler func(ctx context.Context, step Step, path []int) error

// Engine executes steps one at a time.
type Engine struct {
	deps     Deps
	cfg      config.WorkflowConfig
	logger   *zap.Logger
	observer StepObserver
	sleep    func(ctx context.Context, d time.Duration) error
	handlers map[Kind]stepHandler

	currentRow int
	report     Report
}

// EngineOption customises an Engine.
type EngineOption func(*Engine)

// WithStepObserver attaches a metrics observer.
func WithStepObserver(o StepObserver) EngineOption {
	return func(e *Engine) { e.observer = o }
}

// WithSleep replaces the context-aware sleep used for waits and the settle
// delay.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) EngineOption {
	return func(e *Engine) { e.sleep = fn }
}

// NewEngine builds an Engine.
func NewEngine(deps Deps, cfg config.WorkflowConfig, logger *zap.Logger, opts ...EngineOption) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		deps:   deps,
		cfg:    cfg,
		logger: logger.Named("workflow.engine"),
		sleep:  sleepCtx,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.handlers = map[Kind]stepHandler{}
	e.register(e.beginClient, KindBeginClient)
	e.register(e.visitURL, KindVisitURL)
	e.register(e.typeText, KindTypeText)
	e.register(e.typeKey, KindTypeKey)
	e.register(e.typeOTP, KindTypeOTP)
	e.register(e.resetZoom, KindResetZoom)
	e.register(e.wait, KindWait)
	e.register(e.submitForm, KindSubmitForm)
	e.register(e.clickByVision,
		KindClickStage, KindClickCheckbox, KindClickOptionsMenu, KindClickTemplate,
		KindClickCreate, KindClickInvoiceAmount, KindClickByVision)
	e.register(e.clickByDOM, KindClickByDOM)
	e.register(e.updateRecordCell, KindUpdateRecordCell)
	e.register(e.stopClient, KindStopClient)
	e.register(e.abort, KindAbort)
	return e
}

func (e *Engine) register(h stepHandler, kinds ...Kind) {
	for _, k := range kinds {
		e.handlers[k] = h
	}
}

// Execute runs a single step, its validation and any corrective steps.
// Signals pass through untouched; other failures come back as *StepError.
func (e *Engine) Execute(ctx context.Context, step Step) error {
	return e.execute(ctx, step, []int{0})
}

func (e *Engine) execute(ctx context.Context, step Step, path []int) error {
	if err := ctx.Err(); err != nil {
		return newStepError(ErrCodeStepFailed, path, step.Kind, err)
	}
	h, ok := e.handlers[step.Kind]
	if !ok {
		return newStepError(ErrCodePlanInvalid, path, step.Kind, fmt.Errorf("unknown step kind %q", step.Kind))
	}

	logger := e.logger.With(zap.String("kind", string(step.Kind)), zap.String("path", formatPath(path, 0)))
	logger.Debug("Executing step.")
	e.report.Steps++

	stepCtx := artifacts.WithStep(ctx, path[0]+1)
	if err := h(stepCtx, step, path); err != nil {
		return e.fail(step, path, err)
	}
	e.observeStep(step.Kind, OutcomeOK)

	question, ok := step.Question()
	if !ok {
		return nil
	}
	answer, err := e.validate(stepCtx, question, logger)
	if err != nil {
		e.observeStep(step.Kind, OutcomeError)
		code := ErrCodeValidationFailed
		if errors.Is(err, errMissing) {
			code = ErrCodeCollaboratorMissing
		}
		return newStepError(code, path, step.Kind, err)
	}
	for i, c := range step.Corrections(answer) {
		if err := e.execute(ctx, c, append(append([]int(nil), path...), i)); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) fail(step Step, path []int, err error) error {
	if isSignal(err) {
		e.observeStep(step.Kind, OutcomeSignal)
		return err
	}
	e.observeStep(step.Kind, OutcomeError)
	code := ErrCodeStepFailed
	if errors.Is(err, errMissing) {
		code = ErrCodeCollaboratorMissing
	}
	return newStepError(code, path, step.Kind, err)
}

// validate waits for the page to settle, screenshots it and asks question.
// Only a screenshot failure is an error; an unusable answer counts as no.
func (e *Engine) validate(ctx context.Context, question string, logger *zap.Logger) (bool, error) {
	if e.deps.Browser == nil {
		return false, missingCollaborator("browser")
	}
	if err := e.sleep(ctx, e.cfg.SettleDelay); err != nil {
		return false, err
	}
	shot, err := e.deps.Browser.Screenshot(ctx)
	if err != nil {
		return false, fmt.Errorf("validation screenshot: %w", err)
	}
	e.report.Validations++

	if e.deps.Validator == nil {
		logger.Warn("No validator configured, treating answer as no.", zap.String("question", question))
		return false, nil
	}
	v, err := llmclient.CompleteJSON[verdict](ctx, e.deps.Validator, llmclient.Request{
		Tier:   llmclient.TierReasoning,
		System: validationSystemPrompt,
		Prompt: question,
		Image:  shot,
	})
	if err != nil {
		logger.Warn("Validation call failed, treating answer as no.", zap.String("question", question), zap.Error(err))
		return false, nil
	}
	fields := []zap.Field{zap.String("question", question), zap.Bool("answer", v.Answer)}
	if v.Confidence != nil {
		fields = append(fields, zap.Float64("confidence", *v.Confidence))
	}
	if v.Reasoning != "" {
		fields = append(fields, zap.String("reasoning", v.Reasoning))
	}
	logger.Info("Validation answered.", fields...)
	return v.Answer, nil
}

// -- Step handlers --

func (e *Engine) beginClient(_ context.Context, step Step, _ []int) error {
	e.currentRow = step.Row
	e.report.ClientsStarted++
	fields := []zap.Field{zap.Int("row", step.Row)}
	if e.deps.Roster != nil {
		if c, ok := e.deps.Roster.Row(step.Row); ok {
			fields = append(fields, zap.String("client_id", c.ClientID), zap.String("client", c.ClientName))
		}
	}
	e.logger.Info("Starting client.", fields...)
	if e.observer != nil {
		e.observer.ObserveClient("started")
	}
	return nil
}

func (e *Engine) visitURL(ctx context.Context, step Step, _ []int) error {
	if e.deps.Browser == nil {
		return missingCollaborator("browser")
	}
	return e.deps.Browser.Navigate(ctx, step.URL)
}

func (e *Engine) typeText(ctx context.Context, step Step, _ []int) error {
	if e.deps.Injector == nil {
		return missingCollaborator("input injector")
	}
	text := step.Text
	if step.Secret != "" {
		creds, err := e.credentials(ctx)
		if err != nil {
			return err
		}
		switch step.Secret {
		case SecretUsername:
			text = creds.Username
		case SecretPassword:
			text = creds.Password
		default:
			return fmt.Errorf("unknown secret %q", step.Secret)
		}
	}
	perChar := step.PerChar
	if perChar == 0 {
		perChar = e.cfg.TypeDelay
	}
	return e.deps.Injector.TypeText(ctx, text, perChar)
}

func (e *Engine) typeKey(ctx context.Context, step Step, _ []int) error {
	if e.deps.Injector == nil {
		return missingCollaborator("input injector")
	}
	return e.deps.Injector.PressKey(ctx, step.Key)
}

func (e *Engine) typeOTP(ctx context.Context, step Step, _ []int) error {
	if e.deps.Injector == nil {
		return missingCollaborator("input injector")
	}
	creds, err := e.credentials(ctx)
	if err != nil {
		return err
	}
	if !creds.HasOTP {
		return errors.New("credentials record has no TOTP secret")
	}
	perChar := step.PerChar
	if perChar == 0 {
		perChar = e.cfg.TypeDelay
	}
	return e.deps.Injector.TypeText(ctx, creds.OTP, perChar)
}

func (e *Engine) credentials(ctx context.Context) (secrets.Credentials, error) {
	if e.deps.Secrets == nil {
		return secrets.Credentials{}, missingCollaborator("secrets provider")
	}
	creds, err := e.deps.Secrets.Fetch(ctx, e.deps.SecretRecordID)
	if err != nil {
		return secrets.Credentials{}, fmt.Errorf("fetching credentials: %w", err)
	}
	return creds, nil
}

func (e *Engine) resetZoom(ctx context.Context, _ Step, _ []int) error {
	if e.deps.Zoom == nil {
		return missingCollaborator("zoom resetter")
	}
	return e.deps.Zoom.ResetZoom(ctx)
}

func (e *Engine) wait(ctx context.Context, step Step, _ []int) error {
	return e.sleep(ctx, step.Duration)
}

func (e *Engine) submitForm(ctx context.Context, step Step, _ []int) error {
	if e.deps.Browser == nil {
		return missingCollaborator("browser")
	}
	return e.deps.Browser.Submit(ctx, step.Selector)
}

// clickByVision screenshots the page, resolves the prompt to a viewport
// point, maps it into injector space and clicks.
func (e *Engine) clickByVision(ctx context.Context, step Step, _ []int) error {
	switch {
	case e.deps.Browser == nil:
		return missingCollaborator("browser")
	case e.deps.Resolver == nil:
		return missingCollaborator("point resolver")
	case e.deps.Window == nil:
		return missingCollaborator("window locator")
	case e.deps.Injector == nil:
		return missingCollaborator("input injector")
	}

	shot, err := e.deps.Browser.Screenshot(ctx)
	if err != nil {
		return fmt.Errorf("screenshot: %w", err)
	}
	sw, sh, err := geometry.PNGSize(shot)
	if err != nil {
		return err
	}
	prompt := step.visionPrompt()
	pt, err := e.deps.Resolver.Resolve(ctx, prompt, shot)
	if err != nil {
		return fmt.Errorf("resolving %q: %w", prompt, err)
	}
	if step.Double != nil {
		pt.Double = *step.Double
	}

	// Window geometry is read after resolution; the model call can take
	// long enough for the window to move.
	win, err := e.deps.Window.WindowGeometry(ctx)
	if err != nil {
		return fmt.Errorf("window geometry: %w", err)
	}
	x, y := e.deps.Mapper.Map(geometry.NewInputs(sw, sh, win), pt.X, pt.Y)
	if db, ok := e.deps.Injector.(input.DisplayBounds); ok {
		w, h, err := db.DisplayGeometry(ctx)
		if err != nil {
			e.logger.Warn("Display geometry unavailable, skipping clamp.", zap.Error(err))
		} else {
			x, y = geometry.ClampToDisplay(x, y, w, h)
		}
	}

	e.logger.Info("Clicking resolved point.",
		zap.String("prompt", prompt),
		zap.Int("viewport_x", pt.X), zap.Int("viewport_y", pt.Y),
		zap.Int("x", x), zap.Int("y", y),
		zap.Bool("double", pt.Double))
	return e.deps.Injector.MoveClick(ctx, x, y, pt.Double)
}

func (e *Engine) clickByDOM(ctx context.Context, step Step, _ []int) error {
	switch {
	case e.deps.Browser == nil:
		return missingCollaborator("browser")
	case e.deps.Collector == nil:
		return missingCollaborator("candidate collector")
	case e.deps.Selector == nil:
		return missingCollaborator("candidate selector")
	}
	cands, err := e.deps.Collector.Collect(ctx, e.deps.MaxCandidates)
	if err != nil {
		return fmt.Errorf("collecting candidates: %w", err)
	}
	if len(cands) == 0 {
		return errors.New("no clickable candidates on the page")
	}
	idx := e.deps.Selector.Select(ctx, step.Prompt, cands)
	if idx < 0 || idx >= len(cands) {
		return fmt.Errorf("selector returned index %d outside %d candidates", idx, len(cands))
	}
	chosen := cands[idx]
	e.logger.Info("Clicking DOM candidate.", zap.String("prompt", step.Prompt), zap.Stringer("candidate", chosen))
	return e.deps.Browser.Click(ctx, chosen.Handle)
}

func (e *Engine) updateRecordCell(ctx context.Context, step Step, _ []int) error {
	if e.deps.Store == nil {
		return missingCollaborator("record store")
	}
	if e.currentRow < 1 {
		return errors.New("no current client row")
	}
	col, err := e.column(step.Column)
	if err != nil {
		return err
	}
	color, err := records.ParseColor(step.Color)
	if err != nil {
		return err
	}
	e.logger.Info("Updating record cell.",
		zap.Int("row", e.currentRow),
		zap.String("cell", records.ColumnLetter(col)+strconv.Itoa(e.currentRow)))
	return e.deps.Store.UpdateCell(ctx, e.currentRow, col, step.Value, color)
}

// column resolves a header name through the roster, or a 1-based index.
func (e *Engine) column(name string) (int, error) {
	if e.deps.Roster != nil {
		if col, ok := e.deps.Roster.Column(strings.TrimSpace(name)); ok {
			return col, nil
		}
	}
	if n, err := strconv.Atoi(strings.TrimSpace(name)); err == nil && n >= 1 {
		return n, nil
	}
	return 0, fmt.Errorf("unknown record column %q", name)
}

func (e *Engine) stopClient(_ context.Context, step Step, path []int) error {
	return &StopClientSignal{Path: append([]int(nil), path...), Reason: step.Reason}
}

func (e *Engine) abort(_ context.Context, step Step, path []int) error {
	return &AbortSignal{Path: append([]int(nil), path...), Reason: step.Reason}
}

func (e *Engine) observeStep(kind Kind, outcome string) {
	if e.observer != nil {
		e.observer.ObserveStep(string(kind), outcome)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
