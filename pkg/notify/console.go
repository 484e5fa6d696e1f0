package notify

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"github.com/ethereum/go-ethereum/common"
	"github.com/fatih/color"
)

// Console renders notifications in the terminal: a spinner while pending,
// a coloured line once the notification reaches a terminal state.
type Console struct {
	out io.Writer
}

// NewConsole creates a console notifier writing to out (stdout when nil)
func NewConsole(out io.Writer) *Console {
	if out == nil {
		out = os.Stdout
	}
	return &Console{out: out}
}

// Hash starts a pending notification labelled with the transaction hash
func (c *Console) Hash(hash common.Hash) (Notification, bool) {
	return c.Notify(Event{
		Code:    TxSent,
		Type:    TypePending,
		Message: fmt.Sprintf("Transaction %s pending", ShortHash(hash)),
	}), true
}

// Notify starts a notification in the given state
func (c *Console) Notify(ev Event) Notification {
	n := &consoleNotification{
		out: c.out,
		s:   spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(c.out)),
	}
	n.Update(ev)
	return n
}

type consoleNotification struct {
	mu   sync.Mutex
	out  io.Writer
	s    *spinner.Spinner
	done bool
}

func (n *consoleNotification) Update(ev Event) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.done {
		return
	}

	if !ev.Terminal() {
		n.s.Suffix = " " + ev.Message
		if ev.Type == TypeHint {
			n.s.Stop()
			color.New(color.FgCyan).Fprintf(n.out, "  %s\n", ev.Message)
			return
		}
		n.s.Start()
		return
	}

	n.s.Stop()
	n.done = true
	switch ev.Type {
	case TypeSuccess:
		color.New(color.FgGreen).Fprintf(n.out, "✓ %s\n", ev.Message)
	case TypeError:
		color.New(color.FgRed).Fprintf(n.out, "✗ %s\n", ev.Message)
	}
}

func (n *consoleNotification) Dismiss() {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.s.Stop()
	n.done = true
}

// ShortHash abbreviates a hash for display, e.g. 0x1234…cdef
func ShortHash(hash common.Hash) string {
	h := hash.Hex()
	return h[:6] + "…" + h[len(h)-4:]
}
