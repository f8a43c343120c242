package candidates

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/clickpilot/internal/llmclient"
)

type fakeEvaluator struct {
	result  []rawCandidate
	err     error
	scripts []string
}

func (f *fakeEvaluator) Evaluate(_ context.Context, script string, out interface{}) error {
	f.scripts = append(f.scripts, script)
	if f.err != nil {
		return f.err
	}
	data, err := json.Marshal(f.result)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

type stubClient struct {
	reply string
	err   error
	reqs  []llmclient.Request
}

func (s *stubClient) Complete(_ context.Context, req llmclient.Request) (string, error) {
	s.reqs = append(s.reqs, req)
	if s.err != nil {
		return "", s.err
	}
	if req.Accept != nil {
		if err := req.Accept(s.reply); err != nil {
			return "", err
		}
	}
	return s.reply, nil
}

func TestCollector(t *testing.T) {
	t.Run("maps and cleans elements", func(t *testing.T) {
		long := strings.Repeat("é", 250)
		eval := &fakeEvaluator{result: []rawCandidate{
			{Tag: "BUTTON", Text: "  Send \n\t now ", Rect: &Rect{X: 1, Y: 2, W: 30, H: 10}, Visible: true, Marker: "ab12-0"},
			{Tag: "a", AriaLabel: long, Visible: false, Marker: "ab12-1"},
		}}
		c := NewCollector(eval, zaptest.NewLogger(t))

		got, err := c.Collect(context.Background(), 10)
		require.NoError(t, err)
		require.Len(t, got, 2)

		want := Candidate{
			ID:      0,
			Tag:     "button",
			Text:    "Send now",
			Rect:    &Rect{X: 1, Y: 2, W: 30, H: 10},
			Visible: true,
			Handle:  `[data-clickpilot-cand="ab12-0"]`,
		}
		if diff := cmp.Diff(want, got[0]); diff != "" {
			t.Errorf("candidate mismatch (-want +got):\n%s", diff)
		}
		assert.Equal(t, 1, got[1].ID)
		assert.Equal(t, 200, len([]rune(got[1].AriaLabel)))
		assert.Nil(t, got[1].Rect)

		require.Len(t, eval.scripts, 1)
		assert.Contains(t, eval.scripts[0], `"[data-testid]"`)
		assert.Contains(t, eval.scripts[0], MarkerAttr)
	})

	t.Run("caps at max even if the page returns more", func(t *testing.T) {
		eval := &fakeEvaluator{result: make([]rawCandidate, 5)}
		got, err := NewCollector(eval, nil).Collect(context.Background(), 3)
		require.NoError(t, err)
		assert.Len(t, got, 3)
	})

	t.Run("evaluation failure propagates", func(t *testing.T) {
		eval := &fakeEvaluator{err: errors.New("target closed")}
		_, err := NewCollector(eval, nil).Collect(context.Background(), 3)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "collecting candidates")
	})

	t.Run("non-positive max collects nothing", func(t *testing.T) {
		eval := &fakeEvaluator{}
		got, err := NewCollector(eval, nil).Collect(context.Background(), 0)
		require.NoError(t, err)
		assert.Empty(t, got)
		assert.Empty(t, eval.scripts)
	})
}

var vp = Viewport{W: 1280, H: 800}

func rectAt(cx, cy, w, h float64) *Rect {
	return &Rect{X: cx - w/2, Y: cy - h/2, W: w, H: h}
}

func TestHeuristic(t *testing.T) {
	t.Run("word matches win", func(t *testing.T) {
		cands := []Candidate{
			{Tag: "a", Text: "Home", Visible: true, Rect: rectAt(640, 400, 80, 20)},
			{Tag: "a", Text: "Open invoices", Visible: true, Rect: rectAt(100, 100, 80, 20)},
		}
		assert.Equal(t, 1, Heuristic("click the invoices link", cands, vp))
	})

	t.Run("send bonus beats a plain button", func(t *testing.T) {
		cands := []Candidate{
			{Tag: "button", Text: "Cancel", Visible: true, Rect: rectAt(600, 400, 80, 30)},
			{Tag: "button", Text: "Send", Visible: true, Rect: rectAt(700, 400, 80, 30)},
		}
		assert.Equal(t, 1, Heuristic("confirm", cands, vp))
	})

	t.Run("hidden and disabled are skipped", func(t *testing.T) {
		cands := []Candidate{
			{Tag: "button", Text: "Submit", Visible: false},
			{Tag: "button", Text: "Submit", Visible: true, Disabled: true},
			{Tag: "a", Text: "Help", Visible: true},
		}
		assert.Equal(t, 2, Heuristic("submit", cands, vp))
	})

	t.Run("nothing eligible returns zero", func(t *testing.T) {
		cands := []Candidate{{Visible: false}, {Visible: true, Disabled: true}}
		assert.Equal(t, 0, Heuristic("anything", cands, vp))
		assert.Equal(t, 0, Heuristic("anything", nil, vp))
	})

	t.Run("ties break on area then index", func(t *testing.T) {
		// Same score contribution except size, which is capped at 1.0.
		big := rectAt(640, 400, 300, 300)
		bigger := rectAt(640, 400, 400, 400)
		cands := []Candidate{
			{Tag: "div", Visible: true, Rect: big},
			{Tag: "div", Visible: true, Rect: bigger},
			{Tag: "div", Visible: true, Rect: bigger},
		}
		assert.Equal(t, 1, Heuristic("", cands, vp))
	})

	t.Run("deterministic", func(t *testing.T) {
		cands := []Candidate{
			{Tag: "button", Text: "Save draft", Visible: true, Rect: rectAt(300, 700, 90, 30)},
			{Tag: "input", Type: "submit", Value: "Go", Visible: true, Rect: rectAt(640, 420, 60, 30)},
			{Tag: "a", Text: "Save and send", Visible: true, Rect: rectAt(900, 100, 120, 24)},
		}
		first := Heuristic("save the estimate", cands, vp)
		for range 20 {
			assert.Equal(t, first, Heuristic("save the estimate", cands, vp))
		}
	})
}

func TestScoreComponents(t *testing.T) {
	centre := Candidate{Tag: "span", Visible: true, Rect: rectAt(640, 400, 0, 0)}
	assert.InDelta(t, 0.5, Score(nil, centre, vp), 1e-9, "centre proximity only")

	corner := Candidate{Tag: "span", Visible: true, Rect: rectAt(0, 0, 0, 0)}
	assert.InDelta(t, 0.0, Score(nil, corner, vp), 1e-9)

	huge := Candidate{Tag: "span", Rect: &Rect{X: -5000, Y: -5000, W: 1000, H: 1000}}
	assert.InDelta(t, 1.0, Score(nil, huge, vp), 1e-9, "size capped at one, far from centre")

	btn := Candidate{Tag: "input", Type: "submit", AriaLabel: "Submit form"}
	assert.InDelta(t, 0.6+0.9+1, Score(promptWords("submit it"), btn, Viewport{}), 1e-9)

	sendSave := Candidate{Tag: "span", Text: "Send and save"}
	assert.InDelta(t, 1.0+0.6, Score(nil, sendSave, Viewport{}), 1e-9, "action bonuses add up")
	send := Candidate{Tag: "span", Text: "Send"}
	assert.Greater(t, Score(nil, sendSave, Viewport{}), Score(nil, send, Viewport{}))
}

func TestPromptWords(t *testing.T) {
	assert.Equal(t, []string{"click", "the", "send", "button"}, promptWords("Click the SEND button, send!"))
	assert.Empty(t, promptWords("a to of"))
}

func TestSelector(t *testing.T) {
	cands := []Candidate{
		{Tag: "a", Text: "Home", Visible: true},
		{Tag: "button", Text: "Send", Visible: true, Rect: rectAt(640, 400, 80, 30)},
		{Tag: "a", Text: "Logout", Visible: true},
	}

	t.Run("model answer is used", func(t *testing.T) {
		client := &stubClient{reply: `{"id": 2, "reason": "logout link", "confidence": 0.9}`}
		s := NewSelector(client, vp, zaptest.NewLogger(t))

		assert.Equal(t, 2, s.Select(context.Background(), "log out", cands))
		require.Len(t, client.reqs, 1)
		req := client.reqs[0]
		assert.Equal(t, llmclient.TierReasoning, req.Tier)
		assert.Nil(t, req.Image)
		assert.Contains(t, req.Prompt, "Instruction: log out")
		assert.Contains(t, req.Prompt, `{"id":1,"tag":"button","text":"Send"`)
	})

	tests := []struct {
		name  string
		reply string
		err   error
	}{
		{"out of range", `{"id": 7}`, nil},
		{"negative", `{"id": -1}`, nil},
		{"missing id", `{"reason": "unsure"}`, nil},
		{"malformed", `I think the second one`, nil},
		{"call failed", "", errors.New("503")},
	}
	for _, tt := range tests {
		t.Run("falls back when "+tt.name, func(t *testing.T) {
			client := &stubClient{reply: tt.reply, err: tt.err}
			s := NewSelector(client, vp, zaptest.NewLogger(t))
			assert.Equal(t, Heuristic("send it", cands, vp), s.Select(context.Background(), "send it", cands))
			assert.Equal(t, 1, s.Select(context.Background(), "send it", cands))
		})
	}

	t.Run("no client uses the heuristic", func(t *testing.T) {
		s := NewSelector(nil, vp, nil)
		assert.Equal(t, 1, s.Select(context.Background(), "send", cands))
	})

	t.Run("empty list", func(t *testing.T) {
		client := &stubClient{reply: `{"id": 0}`}
		s := NewSelector(client, vp, nil)
		assert.Equal(t, 0, s.Select(context.Background(), "x", nil))
		assert.Empty(t, client.reqs)
	})
}
