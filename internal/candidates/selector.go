package candidates

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/clickpilot/internal/llmclient"
)

const selectSystemPrompt = `You pick the single UI element a user instruction refers to.
Reply with strict JSON only: {"id": <index>, "reason": "<short>", "confidence": <0..1>}.
The id must be one of the listed indexes.`

// decision is the model's reply. ID is a pointer so a missing id is
// distinguishable from index 0.
type decision struct {
	ID         *int    `json:"id"`
	Reason     string  `json:"reason,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

// Selector asks the reasoning model to choose a candidate and falls back to
// Heuristic when the answer is unusable.
type Selector struct {
	client   llmclient.VisionClient
	viewport Viewport
	logger   *zap.Logger
}

// NewSelector builds a Selector. client may be nil, in which case only the
// heuristic is used.
func NewSelector(client llmclient.VisionClient, vp Viewport, logger *zap.Logger) *Selector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Selector{client: client, viewport: vp, logger: logger.Named("candidates.selector")}
}

// Select returns an index into cands. It never fails; an empty list yields 0.
func (s *Selector) Select(ctx context.Context, prompt string, cands []Candidate) int {
	if len(cands) == 0 {
		return 0
	}
	if s.client != nil {
		idx, err := s.ask(ctx, prompt, cands)
		if err == nil {
			return idx
		}
		s.logger.Warn("Model selection unusable, falling back to heuristic.", zap.Error(err))
	}
	idx := Heuristic(prompt, cands, s.viewport)
	s.logger.Debug("Heuristic selection.", zap.Int("index", idx), zap.Stringer("candidate", cands[idx]))
	return idx
}

func (s *Selector) ask(ctx context.Context, prompt string, cands []Candidate) (int, error) {
	listing, err := describe(cands)
	if err != nil {
		return 0, err
	}
	req := llmclient.Request{
		Tier:   llmclient.TierReasoning,
		System: selectSystemPrompt,
		Prompt: fmt.Sprintf("Instruction: %s\n\nCandidates (one JSON object per line):\n%s", prompt, listing),
	}
	d, err := llmclient.CompleteJSON[decision](ctx, s.client, req)
	if err != nil {
		return 0, err
	}
	if d.ID == nil {
		return 0, fmt.Errorf("model reply has no id")
	}
	if *d.ID < 0 || *d.ID >= len(cands) {
		return 0, fmt.Errorf("model chose id %d outside [0,%d)", *d.ID, len(cands))
	}
	s.logger.Debug("Model selection.",
		zap.Int("index", *d.ID),
		zap.Float64("confidence", d.Confidence),
		zap.String("reason", d.Reason))
	return *d.ID, nil
}

// describe renders the candidates as index-tagged JSON lines.
func describe(cands []Candidate) (string, error) {
	var b strings.Builder
	for i, c := range cands {
		c.ID = i
		line, err := json.Marshal(c)
		if err != nil {
			return "", fmt.Errorf("encoding candidate %d: %w", i, err)
		}
		b.Write(line)
		b.WriteByte('\n')
	}
	return b.String(), nil
}
