package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
)

// terminalMonitor renders transfer progress on stderr and reports
// cancellation when its context is done. Progress lines are only drawn on
// an interactive terminal; cancellation works everywhere.
type terminalMonitor struct {
	ctx   context.Context
	label string
	total int64
	tty   bool
	drawn bool
}

// newTerminalMonitor creates a monitor for one transfer. total may be 0
// when the size is unknown.
func newTerminalMonitor(ctx context.Context, label string, total int64) *terminalMonitor {
	return &terminalMonitor{
		ctx:   ctx,
		label: label,
		total: total,
		tty:   !flagQuiet && isatty.IsTerminal(os.Stderr.Fd()),
	}
}

// IsCancelled reports whether the transfer's context has been cancelled.
func (m *terminalMonitor) IsCancelled() bool {
	return m.ctx.Err() != nil
}

// OnTotalSize records the transfer's total once known, enabling the
// "x / y" form of the progress line. Downloads report it from the
// response Content-Length after the monitor is constructed.
func (m *terminalMonitor) OnTotalSize(total int64) {
	if total > 0 {
		m.total = total
	}
}

// OnProgressNotify redraws the progress line in place.
func (m *terminalMonitor) OnProgressNotify(bytesSoFar int64) {
	if !m.tty {
		return
	}

	m.drawn = true

	if m.total > 0 {
		fmt.Fprintf(os.Stderr, "\r%s: %s / %s", m.label, formatSize(bytesSoFar), formatSize(m.total))
		return
	}

	fmt.Fprintf(os.Stderr, "\r%s: %s", m.label, formatSize(bytesSoFar))
}

// Done terminates the progress line so subsequent output starts clean.
// Idempotent, so it is safe to call both deferred and on the success path.
func (m *terminalMonitor) Done() {
	if m.tty && m.drawn {
		m.drawn = false

		fmt.Fprintln(os.Stderr)
	}
}
