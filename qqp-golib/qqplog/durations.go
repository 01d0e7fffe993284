package qqplog

import (
	"bytes"
	"fmt"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"
)

type duration struct {
	name     string
	duration time.Duration
}

// Durations tracks named stage timings for a run.
type Durations []duration

// Record records a duration
func (t *Durations) Record(name string, d time.Duration) {
	*t = append(*t, duration{name, d})
}

// Start returns a func that records the time elapsed since Start under name.
//
//	defer durations.Start("fold 0")()
func (t *Durations) Start(name string) func() {
	start := time.Now()
	return func() {
		t.Record(name, time.Since(start))
	}
}

// String renders the recorded durations as an aligned table.
func (t Durations) String() string {
	var b bytes.Buffer
	tw := tabwriter.NewWriter(&b, 4, 4, 0, ' ', 0)
	for _, entry := range t {
		fmt.Fprintf(tw, "   %s\t%s\n", entry.name, entry.duration)
	}
	tw.Flush()
	return b.String()
}

// Flush logs the table and resets the tracker.
func (t *Durations) Flush(log *zap.Logger) {
	if len(*t) == 0 {
		return
	}
	log.Info("durations\n" + t.String())
	*t = nil
}
