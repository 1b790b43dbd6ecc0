package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"vid2audio/application/events"
	"vid2audio/domain/conversion"
)

// progressStep is the granularity of printed progress lines
const progressStep = 10

// eventPrinter renders run events as lines. It runs on the goroutine started by printEvents.
type eventPrinter struct {
	out     OutputWriter
	names   map[conversion.TaskID]string
	printed map[conversion.TaskID]int
}

func newEventPrinter(out OutputWriter, tasks []conversion.Task) *eventPrinter {
	p := &eventPrinter{
		out:     out,
		names:   make(map[conversion.TaskID]string, len(tasks)),
		printed: make(map[conversion.TaskID]int, len(tasks)),
	}
	for _, t := range tasks {
		p.names[t.ID] = filepath.Base(t.InputPath)
	}
	return p
}

func (p *eventPrinter) HandleEvent(e conversion.Event) {
	name := p.names[e.TaskID]
	switch e.Type {
	case conversion.EventRunStarted:
		fmt.Fprintf(p.out, "Converting %d file(s)...\n", e.Total)
	case conversion.EventTaskStarted:
		fmt.Fprintf(p.out, "[%d] %s: started\n", e.TaskID+1, name)
	case conversion.EventTaskProgress:
		// 100 is implied by the completion line
		if e.Percent < 100 && e.Percent/progressStep > p.printed[e.TaskID]/progressStep {
			p.printed[e.TaskID] = e.Percent
			fmt.Fprintf(p.out, "[%d] %s: %d%%\n", e.TaskID+1, name, e.Percent)
		}
	case conversion.EventTaskCompleted, conversion.EventTaskFailed:
		fmt.Fprintf(p.out, "[%d] %s: %s\n", e.TaskID+1, name, e.Message)
	case conversion.EventRunFinished:
		fmt.Fprintf(p.out, "Finished: %d succeeded, %d failed\n", e.Succeeded, e.Failed)
	}
}

// printEvents feeds bus events to p through a channel so terminal writes happen outside
// the bus lock. stop detaches p and returns once every delivered event is printed.
func printEvents(bus *events.Bus, p *eventPrinter) (stop func()) {
	listener := events.NewChannelListener(events.DefaultHistory)
	unsubscribe := bus.Subscribe(listener)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for e := range listener.C() {
			p.HandleEvent(e)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			unsubscribe()
			listener.Close()
			<-done
		})
	}
}

// writeEventLog writes the events still held by bus to path, one JSON object per line
func writeEventLog(path string, bus *events.Bus, log *slog.Logger) error {
	history := bus.Since(0)
	if dropped := bus.LastSeq() - int64(len(history)); dropped > 0 {
		log.Warn("event log starts after the oldest events", "dropped", dropped, "kept", len(history))
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create event log: %w", err)
	}
	enc := json.NewEncoder(f)
	for _, e := range history {
		if err := enc.Encode(e); err != nil {
			f.Close()
			return fmt.Errorf("failed to write event log: %w", err)
		}
	}
	return f.Close()
}
