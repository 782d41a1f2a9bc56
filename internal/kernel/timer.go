package kernel

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ysos/ysos/internal/kernel/procctx"
)

// TimerQuantum documents the real design's APIC configuration (divide=1,
// count=0x20000) that a periodic tick stands in for here; it is not itself
// a duration, since nothing in this simulation counts bus cycles.
const TimerQuantum = 0x20000

// Tick performs one timer-ISR-equivalent reschedule: it saves ctx as the
// current process's context, exactly as the real timer ISR would on entry,
// then picks and releases the next ready process. Tests call this directly
// for deterministic scheduling instead of waiting on a real ticker.
func (m *Manager) Tick(ctx procctx.Context) {
	m.mu.Lock()
	m.saveCurrentLocked(ctx)
	next, _ := m.switchNextLocked()
	m.ticksLeft = QuantumTicks
	m.releaseLocked(next)
	m.mu.Unlock()
}

// runTimer drives Tick on a fixed period until ctx is done, standing in for
// the periodic APIC timer interrupt. It reads back whatever context the
// currently running process last saved, since there is no hardware trap
// frame to snapshot from outside the running goroutine — this is therefore
// a courtesy reschedule between syscalls rather than a true preemption of
// running Go code; see DESIGN.md.
func (m *Manager) runTimer(ctx context.Context, period time.Duration) error {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.mu.Lock()
			cur := m.lookupLocked(m.current)
			var saved procctx.Context
			if cur != nil {
				saved = cur.Context
			}
			m.mu.Unlock()
			m.Tick(saved)
		}
	}
}

// Run supervises the timer goroutine and, if consoleInput is non-nil, a
// console-input goroutine, under a single errgroup — matching the
// teacher's pattern of an errgroup-owned background-task set
// (pkg/sentry/kernel's task goroutines) instead of hand-rolled
// WaitGroup/done-channel plumbing. consoleInput is the real UART-ISR
// stand-in (e.g. Console.ReadFrom bound to os.Stdin); it is an external
// collaborator this package has no concrete handle on, so Run only
// supervises it. Run returns when ctx is canceled, or immediately if
// either supervised goroutine errors.
func (m *Manager) Run(ctx context.Context, period time.Duration, consoleInput func(context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return m.runTimer(gctx, period)
	})
	if consoleInput != nil {
		g.Go(func() error {
			return consoleInput(gctx)
		})
	}
	err := g.Wait()
	if err == context.Canceled || err == context.DeadlineExceeded {
		return nil
	}
	return err
}
