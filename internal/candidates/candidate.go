// Package candidates enumerates clickable DOM elements and picks the one an
// instruction refers to.
package candidates

import (
	"fmt"
	"strings"
)

// Rect is a bounding box in CSS pixels.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Area of the rectangle; negative sizes count as zero.
func (r *Rect) Area() float64 {
	if r == nil || r.W <= 0 || r.H <= 0 {
		return 0
	}
	return r.W * r.H
}

// Center point of the rectangle.
func (r *Rect) Center() (float64, float64) {
	return r.X + r.W/2, r.Y + r.H/2
}

// Candidate is a snapshot of one element. Handle addresses the live element
// for as long as the DOM keeps it.
type Candidate struct {
	ID        int    `json:"id"`
	Tag       string `json:"tag"`
	Text      string `json:"text,omitempty"`
	AriaLabel string `json:"aria_label,omitempty"`
	Role      string `json:"role,omitempty"`
	Type      string `json:"type,omitempty"`
	Name      string `json:"name,omitempty"`
	Value     string `json:"value,omitempty"`
	TestHint  string `json:"test_hint,omitempty"`
	Rect      *Rect  `json:"rect,omitempty"`
	Visible   bool   `json:"visible"`
	Disabled  bool   `json:"disabled"`
	Handle    string `json:"-"`
}

// IsButton reports a button by tag, role or input type.
func (c Candidate) IsButton() bool {
	if strings.EqualFold(c.Tag, "button") || strings.EqualFold(c.Role, "button") {
		return true
	}
	if strings.EqualFold(c.Tag, "input") {
		switch strings.ToLower(c.Type) {
		case "button", "submit":
			return true
		}
	}
	return false
}

func (c Candidate) String() string {
	label := c.Text
	if label == "" {
		label = c.AriaLabel
	}
	return fmt.Sprintf("#%d <%s> %q", c.ID, c.Tag, label)
}
