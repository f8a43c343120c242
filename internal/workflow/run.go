package workflow

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Report summarises a Run.
type Report struct {
	StartedAt      time.Time       `json:"started_at"`
	FinishedAt     time.Time       `json:"finished_at"`
	Steps          int             `json:"steps"`
	ClientsStarted int             `json:"clients_started"`
	ClientsSkipped int             `json:"clients_skipped"`
	Validations    int             `json:"validations"`
	Aborted        bool            `json:"aborted"`
	Skipped        []SkippedClient `json:"skipped,omitempty"`
	AbortReason    string          `json:"abort_reason,omitempty"`
	Error          string          `json:"error,omitempty"`
}

// SkippedClient records a StopClient.
type SkippedClient struct {
	Row    int    `json:"row"`
	Reason string `json:"reason,omitempty"`
}

// Duration is FinishedAt minus StartedAt.
func (r Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Run executes a flat plan in order. A StopClient skips ahead to the next
// BeginClient; an Abort ends the run and is returned with Report.Aborted
// set. Any other error ends the run immediately.
func (e *Engine) Run(ctx context.Context, plan []Step) (Report, error) {
	e.report = Report{StartedAt: time.Now()}
	e.currentRow = 0
	e.logger.Info("Run starting.", zap.Int("steps", len(plan)))

	finish := func(err error) (Report, error) {
		e.report.FinishedAt = time.Now()
		if err != nil && !e.report.Aborted {
			e.report.Error = err.Error()
		}
		return e.report, err
	}

	for i := 0; i < len(plan); {
		err := e.execute(ctx, plan[i], []int{i})
		if err == nil {
			i++
			continue
		}

		var stop *StopClientSignal
		var abort *AbortSignal
		switch {
		case errors.As(err, &stop):
			e.report.ClientsSkipped++
			e.report.Skipped = append(e.report.Skipped, SkippedClient{Row: e.currentRow, Reason: stop.Reason})
			if e.observer != nil {
				e.observer.ObserveSignal("stop_client")
				e.observer.ObserveClient("skipped")
			}
			next := nextClient(plan, i+1)
			e.logger.Info("client skipped",
				zap.Int("row", e.currentRow),
				zap.String("reason", stop.Reason),
				zap.String("path", formatPath(stop.Path, i)),
				zap.Int("resume_at", next))
			i = next
		case errors.As(err, &abort):
			e.report.Aborted = true
			e.report.AbortReason = abort.Reason
			if e.observer != nil {
				e.observer.ObserveSignal("abort")
			}
			e.logger.Info("run aborted",
				zap.String("reason", abort.Reason),
				zap.String("path", formatPath(abort.Path, i)))
			return finish(err)
		default:
			e.logger.Error("Step failed.", zap.Int("index", i), zap.String("kind", string(plan[i].Kind)), zap.Error(err))
			var se *StepError
			if !errors.As(err, &se) {
				err = newStepError(ErrCodeStepFailed, []int{i}, plan[i].Kind, err)
			}
			return finish(err)
		}
	}

	e.logger.Info("Run complete.",
		zap.Int("steps", e.report.Steps),
		zap.Int("clients_started", e.report.ClientsStarted),
		zap.Int("clients_skipped", e.report.ClientsSkipped))
	return finish(nil)
}

// nextClient returns the index of the first BeginClient at or after from,
// or len(plan).
func nextClient(plan []Step, from int) int {
	for i := from; i < len(plan); i++ {
		if plan[i].Kind == KindBeginClient {
			return i
		}
	}
	return len(plan)
}
