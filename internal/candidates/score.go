package candidates

import (
	"math"
	"sort"
	"strings"
	"unicode/utf8"
)

// Viewport is the size used to locate the screen centre.
type Viewport struct {
	W, H int
}

type scored struct {
	index int
	score float64
	area  float64
}

// Heuristic picks a candidate without the model. Only visible, enabled
// candidates are considered; with none it returns 0. Ties break on larger
// area, then lower index, so the result is deterministic.
func Heuristic(prompt string, cands []Candidate, vp Viewport) int {
	words := promptWords(prompt)

	var ranked []scored
	for i, c := range cands {
		if !c.Visible || c.Disabled {
			continue
		}
		ranked = append(ranked, scored{index: i, score: Score(words, c, vp), area: c.Rect.Area()})
	}
	if len(ranked) == 0 {
		return 0
	}

	sort.SliceStable(ranked, func(a, b int) bool {
		if ranked[a].score != ranked[b].score {
			return ranked[a].score > ranked[b].score
		}
		if ranked[a].area != ranked[b].area {
			return ranked[a].area > ranked[b].area
		}
		return ranked[a].index < ranked[b].index
	})
	return ranked[0].index
}

// actionWords each add their bonus independently when present in the label.
var actionWords = []struct {
	word  string
	bonus float64
}{
	{"send", 1.0},
	{"submit", 0.9},
	{"save", 0.6},
}

// Score rates one candidate against the prompt words.
func Score(words []string, c Candidate, vp Viewport) float64 {
	text := strings.ToLower(c.Text)
	aria := strings.ToLower(c.AriaLabel)
	label := text + " " + aria

	var s float64
	for _, w := range words {
		if strings.Contains(text, w) || strings.Contains(aria, w) {
			s++
		}
	}

	if c.IsButton() {
		s += 0.6
	}
	for _, kw := range actionWords {
		if strings.Contains(label, kw.word) {
			s += kw.bonus
		}
	}

	s += math.Min(math.Sqrt(c.Rect.Area())/100, 1.0)
	s += centerProximity(c.Rect, vp)
	return s
}

// centerProximity is 0.5 at the viewport centre, falling to 0 at half the
// diagonal away.
func centerProximity(r *Rect, vp Viewport) float64 {
	if r == nil || vp.W <= 0 || vp.H <= 0 {
		return 0
	}
	cx, cy := r.Center()
	dist := math.Hypot(cx-float64(vp.W)/2, cy-float64(vp.H)/2)
	diag := math.Hypot(float64(vp.W), float64(vp.H)) / 2
	return 0.5 * (1 - math.Min(dist/diag, 1))
}

// promptWords returns the distinct lower-cased words of at least three runes.
func promptWords(prompt string) []string {
	seen := make(map[string]bool)
	var words []string
	for _, w := range strings.FieldsFunc(strings.ToLower(prompt), isSeparator) {
		if utf8.RuneCountInString(w) < 3 || seen[w] {
			continue
		}
		seen[w] = true
		words = append(words, w)
	}
	return words
}

func isSeparator(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', ',', '.', ';', ':', '!', '?', '"', '\'', '(', ')', '[', ']':
		return true
	}
	return false
}
