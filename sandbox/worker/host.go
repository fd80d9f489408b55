package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vshell/vshell/internal/obs"
)

// DefaultExecutionTimeout is the worker host's per-execution bound
// (spec §4.9: "default 30000 ms; configurable").
const DefaultExecutionTimeout = 30 * time.Second

// idleTimeout terminates the singleton worker after this much time with
// no queued execution (spec §4.9 "terminated after 5 seconds of idle").
const idleTimeout = 5 * time.Second

type job struct {
	ctx      context.Context
	source   string
	opts     Options
	resultCh chan jobResult
}

type jobResult struct {
	result Result
	err    error
}

// Host is the sandbox's singleton worker: a single background goroutine
// drains a FIFO queue and runs at most one execution at a time (spec §4.9
// "the embedded engine is single-threaded"), mirroring the teacher's
// shellWorkerPool in spirit (one live worker serving serialized requests)
// but collapsed to exactly one worker since the sandbox has no per-session
// fan-out.
type Host struct {
	Runtime          JSRuntime
	Policy           *Policy
	ExecutionTimeout time.Duration

	log *slog.Logger

	mu      sync.Mutex
	queue   chan job
	running bool
}

// NewHost constructs a Host. Policy must already be compiled via
// CompilePolicy (spec §4.9 "applied once at worker startup").
func NewHost(rt JSRuntime, policy *Policy) *Host {
	return &Host{
		Runtime:          rt,
		Policy:           policy,
		ExecutionTimeout: DefaultExecutionTimeout,
		log:              obs.Logger("sandbox-worker"),
		queue:            make(chan job, 64),
	}
}

// Execute enqueues source for the singleton worker and blocks for its
// result, respecting ctx cancellation and the configured per-execution
// timeout (spec §4.9, §5 "Cancellation / timeouts").
func (h *Host) Execute(ctx context.Context, source string, opts Options) (Result, error) {
	h.ensureRunning()

	if violations := h.Policy.Check(h.Policy.NewExecutionID(), source); len(violations) > 0 {
		h.log.Warn("sandbox policy violation", "count", len(violations), "kind", violations[0].Kind)
	}

	timeout := h.ExecutionTimeout
	if timeout <= 0 {
		timeout = DefaultExecutionTimeout
	}
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	j := job{ctx: execCtx, source: source, opts: opts, resultCh: make(chan jobResult, 1)}

	select {
	case h.queue <- j:
	case <-execCtx.Done():
		return Result{ExitCode: 1, Stderr: "timeout"}, execCtx.Err()
	}

	select {
	case r := <-j.resultCh:
		return r.result, r.err
	case <-execCtx.Done():
		return Result{ExitCode: 1, Stderr: "timeout"}, fmt.Errorf("sandbox: execution exceeded %s: %w", timeout, execCtx.Err())
	}
}

// ensureRunning starts the singleton worker goroutine on first use (spec
// §4.9 "created on first use"). The goroutine self-terminates after
// idleTimeout of no queued work; the next Execute call respawns it.
func (h *Host) ensureRunning() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return
	}
	h.running = true
	go h.loop()
}

// loop is the singleton worker: it processes the FIFO queue one job at a
// time and exits once idleTimeout passes with nothing queued.
func (h *Host) loop() {
	defer func() {
		h.mu.Lock()
		h.running = false
		h.mu.Unlock()
		h.log.Debug("sandbox worker idle-terminated")
	}()

	idle := time.NewTimer(idleTimeout)
	defer idle.Stop()

	for {
		select {
		case j := <-h.queue:
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			result, err := h.Runtime.Execute(j.ctx, j.source, j.opts)
			j.resultCh <- jobResult{result: result, err: err}
			idle.Reset(idleTimeout)
		case <-idle.C:
			return
		}
	}
}
