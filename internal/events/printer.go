package events

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

// Printer writes one human-readable line per event.
type Printer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewPrinter returns a Printer writing to w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// Trigger prints the event as "name key=value ...", keys sorted.
func (p *Printer) Trigger(name string, payload Payload) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, Format(name, payload))
}

// Format renders an event the way Printer does.
func Format(name string, payload Payload) string {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(name)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, payload[k])
	}
	return b.String()
}
