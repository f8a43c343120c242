// internal/artifacts/rundir.go
package artifacts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mitchellh/go-homedir"
)

// RunDir is the per-run directory that collects screenshots, dot maps and
// the run report. It is created lazily on the first write.
type RunDir struct {
	id   string
	path string

	once    sync.Once
	initErr error
	now     func() time.Time
}

// NewRunDir names a run directory under base ("~" is expanded). Nothing is
// created until the first write.
func NewRunDir(base string) (*RunDir, error) {
	if base == "" {
		base = "runs"
	}
	expanded, err := homedir.Expand(base)
	if err != nil {
		return nil, fmt.Errorf("failed to expand run dir %q: %w", base, err)
	}

	id := uuid.NewString()
	name := fmt.Sprintf("run-%d-%s", time.Now().UnixMilli(), id[:8])
	return &RunDir{
		id:   id,
		path: filepath.Join(expanded, name),
		now:  time.Now,
	}, nil
}

// ID is the run's UUID.
func (r *RunDir) ID() string { return r.id }

// Path is the absolute or relative directory path.
func (r *RunDir) Path() string { return r.path }

func (r *RunDir) ensure() error {
	r.once.Do(func() {
		if err := os.MkdirAll(r.path, 0o755); err != nil {
			r.initErr = fmt.Errorf("failed to create run dir %s: %w", r.path, err)
		}
	})
	return r.initErr
}

// Write stores data under name inside the run dir and returns the full path.
func (r *RunDir) Write(name string, data []byte) (string, error) {
	if err := r.ensure(); err != nil {
		return "", err
	}
	p := filepath.Join(r.path, filepath.Base(name))
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write artifact %s: %w", p, err)
	}
	return p, nil
}

// Create opens a new file under name inside the run dir.
func (r *RunDir) Create(name string) (*os.File, error) {
	if err := r.ensure(); err != nil {
		return nil, err
	}
	return os.Create(filepath.Join(r.path, filepath.Base(name)))
}

// Name builds "<stem>-<ms>.png", prefixed with "step-NN-" when ctx carries
// a step number.
func (r *RunDir) Name(ctx context.Context, stem, ext string) string {
	ms := r.now().UnixMilli()
	if step, ok := StepFromContext(ctx); ok {
		return fmt.Sprintf("step-%02d-%s-%d.%s", step, stem, ms, ext)
	}
	return fmt.Sprintf("%s-%d.%s", stem, ms, ext)
}

type stepKey struct{}

// WithStep tags ctx with the 1-based number of the step being executed.
func WithStep(ctx context.Context, step int) context.Context {
	return context.WithValue(ctx, stepKey{}, step)
}

// StepFromContext returns the step number set by WithStep.
func StepFromContext(ctx context.Context) (int, bool) {
	step, ok := ctx.Value(stepKey{}).(int)
	return step, ok
}
