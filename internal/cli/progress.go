package cli

import (
	"fmt"
	"time"

	"github.com/gosuri/uilive"

	"codeberg.org/snonux/ordkort/internal/pipeline"
)

// ProgressObserver renders pipeline progress on a single live terminal
// line. It implements pipeline.Observer; invocation happens on the
// pipeline goroutine, uilive handles the terminal writes.
type ProgressObserver struct {
	writer *uilive.Writer
}

// NewProgressObserver creates and starts a live progress renderer.
func NewProgressObserver() *ProgressObserver {
	writer := uilive.New()
	writer.Start()
	return &ProgressObserver{writer: writer}
}

// OnProgress renders the latest pipeline event.
func (p *ProgressObserver) OnProgress(state pipeline.State, stats pipeline.Stats, message string) {
	line := fmt.Sprintf("[%s] %s", state, message)
	if stats.TotalWords > 0 {
		line += fmt.Sprintf(" (%d/%d", stats.ProcessedWords, stats.TotalWords)
		if stats.FailedWords > 0 {
			line += fmt.Sprintf(", %d failed", stats.FailedWords)
		}
		if stats.SkippedWords > 0 {
			line += fmt.Sprintf(", %d skipped", stats.SkippedWords)
		}
		line += ")"
	}
	if stats.EstimatedTimeRemaining > 0 {
		line += fmt.Sprintf(" ~%s left", stats.EstimatedTimeRemaining.Round(time.Second))
	}
	fmt.Fprintln(p.writer, line)
}

// Stop flushes and releases the live line.
func (p *ProgressObserver) Stop() {
	p.writer.Stop()
}

// PrintSummary writes the end-of-run statistics block.
func PrintSummary(state pipeline.State, stats pipeline.Stats) {
	elapsed := time.Since(stats.StartTime).Round(time.Second)
	fmt.Println()
	fmt.Printf("Run %s in %s\n", state, elapsed)
	fmt.Printf("  words:     %d\n", stats.TotalWords)
	fmt.Printf("  processed: %d\n", stats.ProcessedWords)
	fmt.Printf("  skipped:   %d\n", stats.SkippedWords)
	fmt.Printf("  failed:    %d\n", stats.FailedWords)
}
