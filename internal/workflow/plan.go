package workflow

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/template"

	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"

	"github.com/xkilldash9x/clickpilot/internal/config"
	"github.com/xkilldash9x/clickpilot/internal/records"
)

// Plan is the on-disk workflow: steps run once before any client, a
// template repeated per client row, and steps run once at the end.
type Plan struct {
	Setup     []Step `yaml:"setup"`
	PerClient []Step `yaml:"per_client"`
	Teardown  []Step `yaml:"teardown"`
}

// TemplateData is what plan templates see. Client fields are promoted, so
// {{ .ClientName }} works alongside {{ .PortalURL }}.
type TemplateData struct {
	records.Client
	PortalURL   string
	DocsURL     string
	PipelineURL string
	LoginURL    string
}

// ExpandOptions controls Plan.Expand.
type ExpandOptions struct {
	Records  config.RecordsConfig
	LoginURL string
	// OnlyRow, when positive, keeps only the client at that sheet row.
	OnlyRow int
}

var templateFuncs = template.FuncMap{
	"join":  strings.Join,
	"lower": strings.ToLower,
	"upper": strings.ToUpper,
	"trim":  strings.TrimSpace,
}

// LoadPlan reads and parses a YAML plan file.
func LoadPlan(path string) (*Plan, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("expanding plan path: %w", err)
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		return nil, fmt.Errorf("reading plan: %w", err)
	}
	return ParsePlan(data)
}

// ParsePlan decodes a YAML plan. Unknown fields are rejected, as are
// begin_client steps, which Expand inserts itself.
func ParsePlan(data []byte) (*Plan, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var p Plan
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return nil, &StepError{Code: ErrCodePlanInvalid, Err: fmt.Errorf("decoding plan: %w", err)}
	}
	sections := []struct {
		name  string
		steps []Step
	}{{"setup", p.Setup}, {"per_client", p.PerClient}, {"teardown", p.Teardown}}
	for _, sec := range sections {
		for i, s := range sec.steps {
			if s.Kind == KindBeginClient {
				return nil, &StepError{Code: ErrCodePlanInvalid, Index: i, Kind: s.Kind,
					Err: fmt.Errorf("%s[%d]: begin_client is inserted automatically", sec.name, i)}
			}
		}
	}
	return &p, nil
}

// Expand flattens the plan against a roster: setup, then BeginClient plus
// the per-client template for each client, then teardown. Every expanded
// step is checked.
func (p *Plan) Expand(roster *records.Roster, opts ExpandOptions) ([]Step, error) {
	base := TemplateData{LoginURL: opts.LoginURL}

	var out []Step
	add := func(section string, steps []Step, data TemplateData) error {
		expanded, err := expandSteps(steps, data)
		if err != nil {
			return &StepError{Code: ErrCodePlanInvalid, Index: len(out), Err: fmt.Errorf("%s: %w", section, err)}
		}
		out = append(out, expanded...)
		return nil
	}

	if err := add("setup", p.Setup, base); err != nil {
		return nil, err
	}

	var clients []records.Client
	if roster != nil {
		clients = roster.Clients
	}
	matched := false
	for _, c := range clients {
		if opts.OnlyRow > 0 && c.RowIndex != opts.OnlyRow {
			continue
		}
		matched = true
		data := TemplateData{
			Client:      c,
			PortalURL:   c.PortalURL(opts.Records),
			DocsURL:     c.DocsURL(opts.Records),
			PipelineURL: c.PipelineURL(opts.Records),
			LoginURL:    opts.LoginURL,
		}
		out = append(out, BeginClient(c.RowIndex))
		if err := add(fmt.Sprintf("per_client row %d", c.RowIndex), p.PerClient, data); err != nil {
			return nil, err
		}
	}
	if opts.OnlyRow > 0 && !matched {
		return nil, &StepError{Code: ErrCodePlanInvalid, Err: fmt.Errorf("row %d is not in the roster", opts.OnlyRow)}
	}

	if err := add("teardown", p.Teardown, base); err != nil {
		return nil, err
	}

	for i, s := range out {
		if err := s.Check(); err != nil {
			return nil, &StepError{Code: ErrCodePlanInvalid, Index: i, Kind: s.Kind, Err: err}
		}
	}
	return out, nil
}

func expandSteps(steps []Step, data TemplateData) ([]Step, error) {
	var out []Step
	for i, s := range steps {
		keep, err := evalWhen(s.When, data)
		if err != nil {
			return nil, fmt.Errorf("step %d when: %w", i, err)
		}
		if !keep {
			continue
		}
		expanded, err := expandStep(s, data)
		if err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, s.Kind, err)
		}
		out = append(out, expanded)
	}
	return out, nil
}

func evalWhen(when string, data TemplateData) (bool, error) {
	if strings.TrimSpace(when) == "" {
		return true, nil
	}
	v, err := render(when, data)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(v) == "true", nil
}

func expandStep(s Step, data TemplateData) (Step, error) {
	s.When = ""
	fields := []*string{
		&s.URL, &s.Text, &s.Key, &s.Selector, &s.Prompt, &s.Stage, &s.Label,
		&s.Name, &s.Amount, &s.Column, &s.Value, &s.Color, &s.Reason,
	}
	for _, f := range fields {
		v, err := render(*f, data)
		if err != nil {
			return Step{}, err
		}
		*f = v
	}
	if s.Validation == nil {
		return s, nil
	}

	q, err := render(s.Validation.Question, data)
	if err != nil {
		return Step{}, err
	}
	onYes, err := expandSteps(s.Validation.OnYes, data)
	if err != nil {
		return Step{}, fmt.Errorf("on_yes: %w", err)
	}
	onNo, err := expandSteps(s.Validation.OnNo, data)
	if err != nil {
		return Step{}, fmt.Errorf("on_no: %w", err)
	}
	s.Validation = &Validation{Question: q, OnYes: onYes, OnNo: onNo}
	return s, nil
}

func render(text string, data TemplateData) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}
	tmpl, err := template.New("step").Option("missingkey=error").Funcs(templateFuncs).Parse(text)
	if err != nil {
		return "", err
	}
	var buf strings.Builder
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
