package orchestrator

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/gohgeo-lang/back-auto-review-insight/internal/crawler"
)

// State is a step of a crawl run.
type State string

// Run states in order. Any state may move to StateFailed, which is always
// followed by StateCleanup and StateDone.
const (
	StateStarting    State = "starting"
	StateNavigating  State = "navigating"
	StateLoading     State = "loading"
	StateExtracting  State = "extracting"
	StateNormalizing State = "normalizing"
	StateSelecting   State = "selecting"
	StateFiltering   State = "filtering"
	StatePersisting  State = "persisting"
	StateFailed      State = "failed"
	StateCleanup     State = "cleanup"
	StateDone        State = "done"
)

// run accumulates the log and counters of one Run call.
type run struct {
	logger    *zap.Logger
	state     State
	states    []State
	logs      []string
	count     int
	updated   int
	rangeDays *int
	limitedBy crawler.LimitReason
	failed    bool
	empty     bool
}

func (r *run) enter(s State) {
	r.state = s
	r.states = append(r.states, s)
	r.logs = append(r.logs, fmt.Sprintf("[%s]", s))
	r.logger.Debug("state", zap.String("state", string(s)))
}

func (r *run) logf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.logs = append(r.logs, fmt.Sprintf("[%s] %s", r.state, msg))
	r.logger.Info(msg, zap.String("state", string(r.state)))
}

func (r *run) fail(err error) {
	r.failed = true
	r.enter(StateFailed)
	r.logs = append(r.logs, fmt.Sprintf("[%s] %v", StateFailed, err))
	r.logger.Warn("crawl run failed", zap.Error(err))
}

func (r *run) outcome() string {
	switch {
	case r.failed:
		return "failed"
	case r.empty:
		return "empty"
	default:
		return "ok"
	}
}

func (r *run) result() crawler.Result {
	if r.failed {
		return crawler.Result{Count: 0, Logs: r.logs}
	}
	return crawler.Result{
		Count:         r.count,
		Logs:          r.logs,
		RangeDaysUsed: r.rangeDays,
		LimitedBy:     r.limitedBy,
	}
}
