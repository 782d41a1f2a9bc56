// Package console implements the kernel's UART-backed console contract: a
// bounded input queue fed by the (out-of-scope) UART ISR, and a sink for
// framed stdout/stderr output. The real driver is an external collaborator
// (spec.md §1); this package only implements the interface the process
// manager's resource set consumes.
package console

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/ysos/ysos/internal/kernel/resource"
)

// InputQueueSize bounds the UART input queue, matching "a bounded
// lock-free MPSC of characters populated by the UART ISR".
const InputQueueSize = 256

// Console is the kernel's console: an input queue plus an ANSI-capable
// output sink over an io.Writer.
type Console struct {
	log *logrus.Logger
	in  chan byte

	mu  sync.Mutex
	out io.Writer
}

// New returns a Console writing framed output to out and accepting input
// pushed via PushInput.
func New(out io.Writer, log *logrus.Logger) *Console {
	return &Console{log: log, in: make(chan byte, InputQueueSize), out: out}
}

// PushInput enqueues bytes as if produced by the UART ISR. Excess bytes
// beyond the queue's capacity are dropped (matching a bounded MPSC) and
// logged at warn level, a "Recoverable scheduler event"-class condition.
func (c *Console) PushInput(p []byte) {
	for _, b := range p {
		select {
		case c.in <- b:
		default:
			if c.log != nil {
				c.log.Warn("console: input queue full, dropping byte")
			}
			return
		}
	}
}

// PopInput implements resource.InputSource: a non-blocking dequeue.
func (c *Console) PopInput() (byte, bool) {
	select {
	case b := <-c.in:
		return b, true
	default:
		return 0, false
	}
}

// Write implements resource.ConsoleSink: stdout and stderr are both
// forwarded to the same framed output stream, tagged by stream for callers
// that want to distinguish them.
func (c *Console) Write(stream resource.ConsoleStream, p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if stream == resource.Stderr {
		fmt.Fprint(c.out, "\x1b[31m")
		defer fmt.Fprint(c.out, "\x1b[0m")
	}
	return c.out.Write(p)
}

// ReadFrom stands in for the UART ISR: it reads r in chunks of up to 64
// bytes and pushes each chunk into the input queue until r returns an error or ctx is
// canceled. Suitable as the consoleInput argument to kernel.Manager.Run
// when r is, e.g., os.Stdin in raw mode.
func (c *Console) ReadFrom(ctx context.Context, r io.Reader) error {
	buf := make([]byte, 64)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := r.Read(buf)
		if n > 0 {
			c.PushInput(buf[:n])
		}
		if err != nil {
			return err
		}
	}
}

var _ resource.ConsoleSink = (*Console)(nil)
var _ resource.InputSource = (*Console)(nil)
