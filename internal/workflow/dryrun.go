package workflow

import (
	"bytes"
	"context"
	"image"
	"image/draw"
	"image/png"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/clickpilot/internal/candidates"
	"github.com/xkilldash9x/clickpilot/internal/geometry"
	"github.com/xkilldash9x/clickpilot/internal/llmclient"
	"github.com/xkilldash9x/clickpilot/internal/records"
	"github.com/xkilldash9x/clickpilot/internal/secrets"
	"github.com/xkilldash9x/clickpilot/internal/vision"
)

// DryRunDeps returns collaborators that log every action instead of
// touching a browser, the OS or a model. Validations answer yes, points
// resolve to the viewport center and secrets are placeholders.
func DryRunDeps(viewport geometry.Window, store records.Store, roster *records.Roster, logger *zap.Logger) Deps {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &dryRun{viewport: viewport, logger: logger.Named("workflow.dryrun")}
	return Deps{
		Browser:        d,
		Injector:       d,
		Window:         d,
		Zoom:           d,
		Resolver:       d,
		Collector:      d,
		Selector:       candidates.NewSelector(nil, candidates.Viewport{W: viewport.W, H: viewport.H}, logger),
		Validator:      d,
		Store:          store,
		Roster:         roster,
		Secrets:        d,
		SecretRecordID: "dry-run",
		MaxCandidates:  1,
	}
}

type dryRun struct {
	viewport geometry.Window
	logger   *zap.Logger
}

func (d *dryRun) Navigate(_ context.Context, url string) error {
	d.logger.Info("navigate", zap.String("url", url))
	return nil
}

func (d *dryRun) Screenshot(context.Context) ([]byte, error) {
	w, h := max(d.viewport.W, 1), max(d.viewport.H, 1)
	img := image.NewGray(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (d *dryRun) Click(_ context.Context, handle string) error {
	d.logger.Info("dom click", zap.String("handle", handle))
	return nil
}

func (d *dryRun) Submit(_ context.Context, selector string) error {
	d.logger.Info("submit", zap.String("selector", selector))
	return nil
}

func (d *dryRun) MoveClick(_ context.Context, x, y int, double bool) error {
	d.logger.Info("move click", zap.Int("x", x), zap.Int("y", y), zap.Bool("double", double))
	return nil
}

func (d *dryRun) TypeText(_ context.Context, text string, perChar time.Duration) error {
	d.logger.Info("type", zap.Int("runes", len([]rune(text))), zap.Duration("per_char", perChar))
	return nil
}

func (d *dryRun) PressKey(_ context.Context, combo string) error {
	d.logger.Info("key", zap.String("combo", combo))
	return nil
}

func (d *dryRun) WindowGeometry(context.Context) (geometry.Window, error) {
	return d.viewport, nil
}

func (d *dryRun) ResetZoom(context.Context) error {
	d.logger.Info("reset zoom")
	return nil
}

func (d *dryRun) Resolve(_ context.Context, prompt string, _ []byte) (vision.Point, error) {
	d.logger.Info("resolve", zap.String("prompt", prompt))
	return vision.Point{X: d.viewport.W / 2, Y: d.viewport.H / 2}, nil
}

func (d *dryRun) Collect(context.Context, int) ([]candidates.Candidate, error) {
	cx, cy := float64(d.viewport.W)/2, float64(d.viewport.H)/2
	return []candidates.Candidate{{
		Tag:     "button",
		Text:    "dry run",
		Rect:    &candidates.Rect{X: cx - 40, Y: cy - 15, W: 80, H: 30},
		Visible: true,
		Handle:  "body",
	}}, nil
}

func (d *dryRun) Complete(_ context.Context, req llmclient.Request) (string, error) {
	d.logger.Info("validate", zap.String("question", req.Prompt))
	reply := `{"answer":true,"confidence":1,"reasoning":"dry run"}`
	if req.Accept != nil {
		if err := req.Accept(reply); err != nil {
			return "", err
		}
	}
	return reply, nil
}

func (d *dryRun) Fetch(context.Context, string) (secrets.Credentials, error) {
	return secrets.Credentials{Username: "dry-run", Password: "dry-run", OTP: "000000", HasOTP: true}, nil
}
