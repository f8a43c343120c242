// Package workflow runs an ordered plan of browser steps per client record.
package workflow

import (
	"fmt"
	"slices"
	"time"
)

// Kind identifies what a Step does.
type Kind string

const (
	KindBeginClient        Kind = "begin_client"
	KindVisitURL           Kind = "visit_url"
	KindTypeText           Kind = "type_text"
	KindTypeKey            Kind = "type_key"
	KindTypeOTP            Kind = "type_otp"
	KindResetZoom          Kind = "reset_zoom"
	KindWait               Kind = "wait"
	KindSubmitForm         Kind = "submit_form"
	KindClickStage         Kind = "click_stage"
	KindClickCheckbox      Kind = "click_checkbox"
	KindClickOptionsMenu   Kind = "click_options_menu"
	KindClickTemplate      Kind = "click_template"
	KindClickCreate        Kind = "click_create"
	KindClickInvoiceAmount Kind = "click_invoice_amount"
	KindClickByDOM         Kind = "click_by_dom"
	KindClickByVision      Kind = "click_by_vision"
	KindUpdateRecordCell   Kind = "update_record_cell"
	KindStopClient         Kind = "stop_client"
	KindAbort              Kind = "abort"
)

// Secret names accepted by TypeText.
const (
	SecretUsername = "username"
	SecretPassword = "password"
)

// Validation is a yes/no question asked about the screen after a step, with
// the corrective steps to run for each answer.
type Validation struct {
	Question string `yaml:"question"`
	OnYes    []Step `yaml:"on_yes,omitempty"`
	OnNo     []Step `yaml:"on_no,omitempty"`
}

// Step is one plan entry. Kind selects which of the remaining fields apply.
// Steps are values; nothing in this package mutates a Step after it is
// built.
type Step struct {
	Kind Kind `yaml:"kind"`

	// When is a template expanded per client; the step is dropped unless it
	// renders "true". Only meaningful in plan files.
	When string `yaml:"when,omitempty"`

	Row      int           `yaml:"row,omitempty"`
	URL      string        `yaml:"url,omitempty"`
	Text     string        `yaml:"text,omitempty"`
	Secret   string        `yaml:"secret,omitempty"`
	PerChar  time.Duration `yaml:"per_char,omitempty"`
	Key      string        `yaml:"key,omitempty"`
	Duration time.Duration `yaml:"duration,omitempty"`
	Selector string        `yaml:"selector,omitempty"`
	Prompt   string        `yaml:"prompt,omitempty"`
	Double   *bool         `yaml:"double,omitempty"`
	Stage    string        `yaml:"stage,omitempty"`
	Label    string        `yaml:"label,omitempty"`
	Name     string        `yaml:"name,omitempty"`
	Amount   string        `yaml:"amount,omitempty"`
	Column   string        `yaml:"column,omitempty"`
	Value    string        `yaml:"value,omitempty"`
	Color    string        `yaml:"color,omitempty"`
	Reason   string        `yaml:"reason,omitempty"`

	Validation *Validation `yaml:"validation,omitempty"`
}

func BeginClient(row int) Step { return Step{Kind: KindBeginClient, Row: row} }
func VisitURL(url string) Step { return Step{Kind: KindVisitURL, URL: url} }
func TypeText(text string) Step { return Step{Kind: KindTypeText, Text: text} }
func TypeSecret(name string) Step { return Step{Kind: KindTypeText, Secret: name} }
func TypeKey(combo string) Step { return Step{Kind: KindTypeKey, Key: combo} }
func TypeOTP() Step { return Step{Kind: KindTypeOTP} }
func ResetZoom() Step { return Step{Kind: KindResetZoom} }
func Wait(d time.Duration) Step { return Step{Kind: KindWait, Duration: d} }
func SubmitForm(sel string) Step { return Step{Kind: KindSubmitForm, Selector: sel} }
func ClickStage(stage string) Step { return Step{Kind: KindClickStage, Stage: stage} }
func ClickCheckbox(label string) Step { return Step{Kind: KindClickCheckbox, Label: label} }
func ClickOptionsMenu(label string) Step {
	return Step{Kind: KindClickOptionsMenu, Label: label}
}
func ClickTemplate(name string) Step { return Step{Kind: KindClickTemplate, Name: name} }
func ClickCreate() Step { return Step{Kind: KindClickCreate} }
func ClickInvoiceAmount(amount string) Step {
	return Step{Kind: KindClickInvoiceAmount, Amount: amount}
}
func ClickByDOM(prompt string) Step { return Step{Kind: KindClickByDOM, Prompt: prompt} }
func ClickByVision(prompt string) Step { return Step{Kind: KindClickByVision, Prompt: prompt} }
func UpdateRecordCell(column, value, color string) Step {
	return Step{Kind: KindUpdateRecordCell, Column: column, Value: value, Color: color}
}
func StopClient(reason string) Step { return Step{Kind: KindStopClient, Reason: reason} }
func Abort(reason string) Step { return Step{Kind: KindAbort, Reason: reason} }

// WithValidation returns a copy of s that asks question after running.
func (s Step) WithValidation(question string, onYes, onNo []Step) Step {
	s.Validation = &Validation{
		Question: question,
		OnYes:    slices.Clone(onYes),
		OnNo:     slices.Clone(onNo),
	}
	return s
}

// WithDouble returns a copy of a ClickByVision step that forces the
// double-click flag.
func (s Step) WithDouble(double bool) Step {
	s.Double = &double
	return s
}

// Question returns the validation question, if the step has one.
func (s Step) Question() (string, bool) {
	if s.Validation == nil || s.Validation.Question == "" {
		return "", false
	}
	return s.Validation.Question, true
}

// Corrections returns the steps to run for a validation answer. The slice
// is a copy.
func (s Step) Corrections(answer bool) []Step {
	if s.Validation == nil {
		return nil
	}
	if answer {
		return slices.Clone(s.Validation.OnYes)
	}
	return slices.Clone(s.Validation.OnNo)
}

// IsClick reports whether the step clicks something.
func (s Step) IsClick() bool {
	switch s.Kind {
	case KindClickStage, KindClickCheckbox, KindClickOptionsMenu, KindClickTemplate,
		KindClickCreate, KindClickInvoiceAmount, KindClickByDOM, KindClickByVision:
		return true
	}
	return false
}

func (s Step) validatable() bool {
	switch s.Kind {
	case KindVisitURL, KindTypeText, KindTypeKey, KindTypeOTP:
		return true
	}
	return s.IsClick()
}

// visionPrompt builds the instruction sent to the point resolver for vision
// click kinds.
func (s Step) visionPrompt() string {
	switch s.Kind {
	case KindClickStage:
		return fmt.Sprintf("Click the %q stage in the pipeline stage selector.", s.Stage)
	case KindClickCheckbox:
		return fmt.Sprintf("Click the checkbox next to %q.", s.Label)
	case KindClickOptionsMenu:
		return fmt.Sprintf("Click the options menu button (three dots) in the row for %q.", s.Label)
	case KindClickTemplate:
		return fmt.Sprintf("Click the template named %q in the template list.", s.Name)
	case KindClickCreate:
		return "Click the Create button."
	case KindClickInvoiceAmount:
		return fmt.Sprintf("Click the invoice amount input field so %s can be entered.", s.Amount)
	default:
		return s.Prompt
	}
}

// Check reports structural problems with a single step and its corrective
// branches.
func (s Step) Check() error {
	if err := s.checkFields(); err != nil {
		return err
	}
	if s.Validation == nil {
		return nil
	}
	if !s.validatable() {
		return fmt.Errorf("%s steps cannot carry a validation", s.Kind)
	}
	if s.Validation.Question == "" {
		return fmt.Errorf("%s validation has no question", s.Kind)
	}
	for i, c := range s.Validation.OnYes {
		if err := c.Check(); err != nil {
			return fmt.Errorf("on_yes[%d]: %w", i, err)
		}
	}
	for i, c := range s.Validation.OnNo {
		if err := c.Check(); err != nil {
			return fmt.Errorf("on_no[%d]: %w", i, err)
		}
	}
	return nil
}

func (s Step) checkFields() error {
	missing := func(field string) error {
		return fmt.Errorf("%s step requires %s", s.Kind, field)
	}
	switch s.Kind {
	case KindBeginClient:
		if s.Row < 1 {
			return missing("a row of at least 1")
		}
	case KindVisitURL:
		if s.URL == "" {
			return missing("url")
		}
	case KindTypeText:
		switch {
		case s.Secret != "" && s.Text != "":
			return fmt.Errorf("type_text step takes text or secret, not both")
		case s.Secret != "" && s.Secret != SecretUsername && s.Secret != SecretPassword:
			return fmt.Errorf("unknown secret %q", s.Secret)
		case s.Secret == "" && s.Text == "":
			return missing("text or secret")
		}
	case KindTypeKey:
		if s.Key == "" {
			return missing("key")
		}
	case KindWait:
		if s.Duration < 0 {
			return fmt.Errorf("wait duration must not be negative")
		}
	case KindSubmitForm:
		if s.Selector == "" {
			return missing("selector")
		}
	case KindClickStage:
		if s.Stage == "" {
			return missing("stage")
		}
	case KindClickCheckbox, KindClickOptionsMenu:
		if s.Label == "" {
			return missing("label")
		}
	case KindClickTemplate:
		if s.Name == "" {
			return missing("name")
		}
	case KindClickInvoiceAmount:
		if s.Amount == "" {
			return missing("amount")
		}
	case KindClickByDOM, KindClickByVision:
		if s.Prompt == "" {
			return missing("prompt")
		}
	case KindUpdateRecordCell:
		if s.Column == "" {
			return missing("column")
		}
	case KindTypeOTP, KindResetZoom, KindClickCreate, KindStopClient, KindAbort:
	default:
		return fmt.Errorf("unknown step kind %q", s.Kind)
	}
	if s.Double != nil && s.Kind != KindClickByVision {
		return fmt.Errorf("%s steps cannot force a double click", s.Kind)
	}
	return nil
}

// String renders the step for plan listings. Secrets are named, never
// resolved.
func (s Step) String() string {
	var detail string
	switch s.Kind {
	case KindBeginClient:
		detail = fmt.Sprintf("row=%d", s.Row)
	case KindVisitURL:
		detail = s.URL
	case KindTypeText:
		if s.Secret != "" {
			detail = "secret=" + s.Secret
		} else {
			detail = fmt.Sprintf("%d chars", len([]rune(s.Text)))
		}
	case KindTypeKey:
		detail = s.Key
	case KindWait:
		detail = s.Duration.String()
	case KindSubmitForm:
		detail = s.Selector
	case KindClickByDOM, KindClickByVision, KindClickStage, KindClickCheckbox,
		KindClickOptionsMenu, KindClickTemplate, KindClickInvoiceAmount:
		detail = s.visionPrompt()
	case KindUpdateRecordCell:
		detail = fmt.Sprintf("%s=%q", s.Column, s.Value)
	case KindStopClient, KindAbort:
		detail = s.Reason
	}
	out := string(s.Kind)
	if detail != "" {
		out += " " + detail
	}
	if q, ok := s.Question(); ok {
		out += fmt.Sprintf(" [validate: %s]", q)
	}
	return out
}
