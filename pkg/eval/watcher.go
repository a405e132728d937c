package eval

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/adhocore/gronx"
	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"

	"github.com/sipeed/receval/pkg/logger"
)

const (
	defaultEvalDebounce = 2 * time.Second
	defaultMinInterval  = 30 * time.Second
)

// Trigger names what caused a watcher evaluation.
type Trigger string

const (
	TriggerFileChange Trigger = "file-change"
	TriggerSchedule   Trigger = "schedule"
	TriggerInitial    Trigger = "initial"
)

// EvalFunc runs one evaluation pass.
type EvalFunc func(ctx context.Context, trigger Trigger) error

// Watcher re-evaluates when recommendation files under dir change and,
// optionally, on a cron schedule. Bursts of file events are debounced and
// evaluations are spaced at least minInterval apart.
type Watcher struct {
	dir    string
	fsw    *fsnotify.Watcher
	eval   EvalFunc
	cancel context.CancelFunc
	wg     sync.WaitGroup

	debounce    time.Duration
	minInterval time.Duration
	schedule    string
	limiter     *rate.Limiter
}

// WatcherOption configures the watcher.
type WatcherOption func(*Watcher)

func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounce = d }
}

func WithMinInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.minInterval = d }
}

// WithSchedule adds a cron expression; empty disables scheduled runs.
func WithSchedule(expr string) WatcherOption {
	return func(w *Watcher) { w.schedule = expr }
}

// NewWatcher creates a watcher on dir. eval is called from the watcher
// goroutine, never concurrently with itself.
func NewWatcher(dir string, eval EvalFunc, opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		dir:         dir,
		eval:        eval,
		debounce:    defaultEvalDebounce,
		minInterval: defaultMinInterval,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.schedule != "" && !gronx.New().IsValid(w.schedule) {
		return nil, fmt.Errorf("invalid schedule %q", w.schedule)
	}

	limit := rate.Inf
	if w.minInterval > 0 {
		limit = rate.Every(w.minInterval)
	}
	w.limiter = rate.NewLimiter(limit, 1)

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	w.fsw = fsw
	return w, nil
}

// Start begins watching in a background goroutine.
func (w *Watcher) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.loop(ctx)
	}()
}

// Stop cancels the watcher and waits for the loop to finish.
func (w *Watcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	w.fsw.Close()
}

func (w *Watcher) loop(ctx context.Context) {
	var evalTimer, cronTimer *time.Timer
	pending := TriggerFileChange

	resetEval := func(d time.Duration) {
		if evalTimer == nil {
			evalTimer = time.NewTimer(d)
			return
		}
		if !evalTimer.Stop() {
			select {
			case <-evalTimer.C:
			default:
			}
		}
		evalTimer.Reset(d)
	}

	scheduleNext := func() {
		if w.schedule == "" {
			return
		}
		next, err := gronx.NextTickAfter(w.schedule, time.Now(), false)
		if err != nil {
			logger.WarnCF("watch", "Cannot compute next scheduled run", map[string]any{"error": err.Error()})
			return
		}
		cronTimer = time.NewTimer(time.Until(next))
	}
	scheduleNext()

	evalC := func() <-chan time.Time {
		if evalTimer == nil {
			return nil
		}
		return evalTimer.C
	}
	cronC := func() <-chan time.Time {
		if cronTimer == nil {
			return nil
		}
		return cronTimer.C
	}

	for {
		select {
		case <-ctx.Done():
			if evalTimer != nil {
				evalTimer.Stop()
			}
			if cronTimer != nil {
				cronTimer.Stop()
			}
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !isRunFileEvent(ev) {
				continue
			}
			logger.DebugCF("watch", "Recommendation file changed", map[string]any{"file": ev.Name, "op": ev.Op.String()})
			pending = TriggerFileChange
			resetEval(w.debounce)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logger.Warn(fmt.Sprintf("watcher error: %v", err))

		case <-cronC():
			cronTimer = nil
			pending = TriggerSchedule
			resetEval(0)
			scheduleNext()

		case <-evalC():
			evalTimer = nil
			if d := w.throttle(); d > 0 {
				logger.InfoCF("watch", "Evaluation throttled", map[string]any{"retry_in": d.String()})
				resetEval(d)
				continue
			}
			w.run(ctx, pending)
		}
	}
}

// throttle reserves an evaluation slot. It returns the wait needed when the
// limiter has no token, leaving the limiter unchanged.
func (w *Watcher) throttle() time.Duration {
	r := w.limiter.Reserve()
	if d := r.Delay(); d > 0 {
		r.Cancel()
		return d
	}
	return 0
}

func (w *Watcher) run(ctx context.Context, trigger Trigger) {
	start := time.Now()
	if err := w.eval(ctx, trigger); err != nil {
		logger.ErrorCF("watch", "Evaluation failed", map[string]any{
			"trigger": string(trigger),
			"error":   err.Error(),
		})
		return
	}
	logger.InfoCF("watch", "Evaluation finished", map[string]any{
		"trigger":  string(trigger),
		"duration": time.Since(start).String(),
	})
}

func isRunFileEvent(ev fsnotify.Event) bool {
	if ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) {
		return false
	}
	return strings.EqualFold(filepath.Ext(ev.Name), ".tsv")
}
