package candidates

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// MarkerAttr tags collected elements so their handles stay addressable.
const MarkerAttr = "data-clickpilot-cand"

// maxLabelRunes bounds text and ARIA labels to keep prompts small.
const maxLabelRunes = 200

// candidateSelectors is the fixed set of semantic and test-id selectors.
var candidateSelectors = []string{
	"button",
	"a[href]",
	"input[type=button]",
	"input[type=submit]",
	"input[type=reset]",
	"[role=button]",
	"[role=link]",
	"[role=menuitem]",
	"[role=tab]",
	"[role=checkbox]",
	"[role=option]",
	"[data-testid]",
	"[data-test]",
	"[data-qa]",
	"[data-cy]",
}

// Evaluator runs a script in the page; browser.Session satisfies it.
type Evaluator interface {
	Evaluate(ctx context.Context, script string, out interface{}) error
}

// rawCandidate is what the collection script returns per element.
type rawCandidate struct {
	Tag       string `json:"tag"`
	Text      string `json:"text"`
	AriaLabel string `json:"aria"`
	Role      string `json:"role"`
	Type      string `json:"type"`
	Name      string `json:"name"`
	Value     string `json:"value"`
	TestHint  string `json:"hint"`
	Rect      *Rect  `json:"rect"`
	Visible   bool   `json:"visible"`
	Disabled  bool   `json:"disabled"`
	Marker    string `json:"marker"`
}

const collectScript = `(() => {
	const selectors = %s;
	const max = %d;
	const attr = %q;
	const run = %q;
	const seen = new Set();
	const out = [];
	for (const el of document.querySelectorAll(selectors.join(","))) {
		if (out.length >= max) break;
		if (seen.has(el)) continue;
		seen.add(el);
		const marker = run + "-" + out.length;
		el.setAttribute(attr, marker);
		const r = el.getBoundingClientRect();
		const st = getComputedStyle(el);
		const visible = r.width > 0 && r.height > 0 && st.visibility !== "hidden" && st.display !== "none";
		out.push({
			tag: el.tagName.toLowerCase(),
			text: (el.innerText || el.textContent || "").slice(0, 400),
			aria: (el.getAttribute("aria-label") || "").slice(0, 400),
			role: el.getAttribute("role") || "",
			type: el.getAttribute("type") || "",
			name: el.getAttribute("name") || "",
			value: (el.value === undefined || el.value === null) ? "" : String(el.value),
			hint: el.getAttribute("data-testid") || el.getAttribute("data-test") || el.getAttribute("data-qa") || el.getAttribute("data-cy") || "",
			rect: {x: r.left, y: r.top, w: r.width, h: r.height},
			visible: visible,
			disabled: !!el.disabled || el.getAttribute("aria-disabled") === "true",
			marker: marker,
		});
	}
	return out;
})()`

// Collector enumerates candidates from the live page.
type Collector struct {
	eval   Evaluator
	logger *zap.Logger
}

// NewCollector returns a Collector evaluating through eval.
func NewCollector(eval Evaluator, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{eval: eval, logger: logger.Named("candidates.collector")}
}

// Collect returns at most max candidates in document order. Only a failed
// evaluation is an error.
func (c *Collector) Collect(ctx context.Context, max int) ([]Candidate, error) {
	if max <= 0 {
		return nil, nil
	}
	selectors, err := json.Marshal(candidateSelectors)
	if err != nil {
		return nil, err
	}
	runID := uuid.NewString()[:8]
	script := fmt.Sprintf(collectScript, selectors, max, MarkerAttr, runID)

	var raw []rawCandidate
	if err := c.eval.Evaluate(ctx, script, &raw); err != nil {
		return nil, fmt.Errorf("collecting candidates: %w", err)
	}

	out := make([]Candidate, 0, min(len(raw), max))
	for _, r := range raw {
		if len(out) >= max {
			break
		}
		out = append(out, Candidate{
			ID:        len(out),
			Tag:       strings.ToLower(r.Tag),
			Text:      cleanLabel(r.Text),
			AriaLabel: cleanLabel(r.AriaLabel),
			Role:      r.Role,
			Type:      r.Type,
			Name:      r.Name,
			Value:     r.Value,
			TestHint:  r.TestHint,
			Rect:      r.Rect,
			Visible:   r.Visible,
			Disabled:  r.Disabled,
			Handle:    fmt.Sprintf("[%s=%q]", MarkerAttr, r.Marker),
		})
	}
	c.logger.Debug("Collected candidates.", zap.Int("count", len(out)), zap.Int("max", max))
	return out, nil
}

// cleanLabel collapses whitespace and caps the length in runes.
func cleanLabel(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= maxLabelRunes {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLabelRunes])
}
