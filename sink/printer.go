// Package sink renders timeline events on a terminal.
package sink

import (
	"classroom-live/projection"
	"fmt"
	"io"
	"sync"

	"github.com/gookit/color"
)

// Format turns one timeline row into a printable line.
type Format[T projection.Item] func(entry projection.Entry[T]) string

// Printer writes the rows of a timeline as they change: the initial page,
// older pages on top of a separator, live items at the tail, and the state
// of optimistic entries.
// It keeps track of what it already printed, so it reads the timeline
// instead of trusting the event counts.
type Printer[T projection.Item] struct {
	mu       sync.Mutex
	out      io.Writer
	timeline *projection.Timeline[T]
	format   Format[T]
	status   func(items []T) string

	printedFrom int
	printedTo   int
	pending     map[string]bool
}

// NewPrinter subscribes a printer to timeline. status is optional and
// printed after every change of the confirmed items.
func NewPrinter[T projection.Item](out io.Writer, timeline *projection.Timeline[T],
	format Format[T], status func(items []T) string) *Printer[T] {
	p := &Printer[T]{
		out:         out,
		timeline:    timeline,
		format:      format,
		status:      status,
		printedFrom: projection.FirstIndex,
		printedTo:   projection.FirstIndex,
		pending:     make(map[string]bool),
	}
	timeline.Subscribe(p)
	return p
}

func (p *Printer[T]) Consume(evt projection.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if evt.Kind == projection.EventReset {
		p.printedFrom = projection.FirstIndex
		p.printedTo = projection.FirstIndex
		p.pending = make(map[string]bool)
		p.line(color.New(color.FgCyan, color.OpBold).Sprintf("== %s ==", evt.Scope))
		return
	}
	if evt.Generation != p.timeline.Generation() {
		return
	}

	switch evt.Kind {
	case projection.EventInitialLoaded:
		p.printConfirmed(p.confirmed())
		if p.printedFrom == p.printedTo {
			p.line(color.FgDarkGray.Sprint("(nothing yet)"))
		}
		p.printStatus()
	case projection.EventPrepended:
		p.printOlder(p.confirmed())
	case projection.EventAppended:
		p.printConfirmed(p.confirmed())
		p.printStatus()
	case projection.EventHistoryFailed:
		p.line(color.FgRed.Sprintf("history unavailable: %v", evt.Err))
	case projection.EventPendingChanged:
		p.printPending()
	case projection.EventUpdated:
		p.printStatus()
	}
}

func (p *Printer[T]) confirmed() []projection.Entry[T] {
	var out []projection.Entry[T]
	for _, entry := range p.timeline.Entries() {
		if !entry.Pending {
			out = append(out, entry)
		}
	}
	return out
}

// printConfirmed prints the rows newer than the last printed one.
// The first call also takes the oldest loaded index as the top.
func (p *Printer[T]) printConfirmed(entries []projection.Entry[T]) {
	if len(entries) == 0 {
		return
	}
	if p.printedFrom == p.printedTo {
		p.printedFrom = entries[0].Index
		p.printedTo = entries[0].Index
	}
	for _, entry := range entries {
		if entry.Index >= p.printedTo {
			p.line(p.format(entry))
			p.printedTo = entry.Index + 1
		}
	}
}

func (p *Printer[T]) printOlder(entries []projection.Entry[T]) {
	var older []projection.Entry[T]
	for _, entry := range entries {
		if entry.Index < p.printedFrom {
			older = append(older, entry)
		}
	}
	if len(older) == 0 {
		p.line(color.FgDarkGray.Sprint("-- no older items --"))
		return
	}
	p.line(color.FgDarkGray.Sprintf("-- %d older --", len(older)))
	for _, entry := range older {
		p.line(p.format(entry))
	}
	p.line(color.FgDarkGray.Sprint("--"))
	p.printedFrom = older[0].Index
}

// printPending reports optimistic entries once per state change.
func (p *Printer[T]) printPending() {
	seen := make(map[string]bool)
	for _, entry := range p.timeline.Entries() {
		if !entry.Pending {
			continue
		}
		seen[entry.TempID] = true
		failed, known := p.pending[entry.TempID]
		if known && failed == entry.Failed {
			continue
		}
		p.pending[entry.TempID] = entry.Failed
		if entry.Failed {
			p.line(color.FgRed.Sprintf("%s  [failed, /retry %s]", p.format(entry), entry.TempID))
		} else {
			p.line(color.FgDarkGray.Sprintf("%s  [sending]", p.format(entry)))
		}
	}
	for tempID := range p.pending {
		if !seen[tempID] {
			delete(p.pending, tempID)
		}
	}
}

func (p *Printer[T]) printStatus() {
	if p.status == nil {
		return
	}
	if s := p.status(p.timeline.Items()); s != "" {
		p.line(s)
	}
}

func (p *Printer[T]) line(s string) {
	_, _ = fmt.Fprintln(p.out, s)
}
