package reporter

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// LogReporter writes run events to a log file.
type LogReporter struct {
	w                  io.Writer
	mu                 sync.Mutex
	lastSplitBucket    int
	lastStitchBucket   int
}

// NewLogReporter creates a new log reporter that writes to w.
func NewLogReporter(w io.Writer) *LogReporter {
	return &LogReporter{w: w, lastSplitBucket: -1, lastStitchBucket: -1}
}

func (r *LogReporter) log(level, format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	msg := fmt.Sprintf(format, args...)
	_, _ = fmt.Fprintf(r.w, "%s [%s] %s\n", timestamp, level, msg)
}

func (r *LogReporter) StageProgress(update StageProgress) {
	r.log("INFO", "[%s] %s", strings.ToUpper(update.Stage), update.Message)
}

func (r *LogReporter) PlanComplete(summary PlanSummary) {
	r.log("INFO", "=== PLAN === duration=%.3fs chunks=%d", summary.SourceDuration, summary.ChunkCount)
	for _, c := range summary.Chunks {
		r.log("INFO", "  chunk %04d %.3fs -> %.3fs", c.Index, c.Start, c.End)
	}
}

func (r *LogReporter) SplitStarted(total int) {
	r.mu.Lock()
	r.lastSplitBucket = -1
	r.mu.Unlock()
	r.log("INFO", "=== SPLIT STARTED === (%d chunks)", total)
}

func (r *LogReporter) SplitProgress(p SplitProgress) {
	r.bucketedLog(&r.lastSplitBucket, "split", p.Done, p.Total)
}

func (r *LogReporter) StitchStarted(total int) {
	r.mu.Lock()
	r.lastStitchBucket = -1
	r.mu.Unlock()
	r.log("INFO", "=== STITCH STARTED === (%d chunks)", total)
}

func (r *LogReporter) StitchProgress(p StitchProgress) {
	r.bucketedLog(&r.lastStitchBucket, "stitch", p.Done, p.Total)
}

// bucketedLog logs progress at 5% intervals to keep log volume down.
func (r *LogReporter) bucketedLog(lastBucket *int, label string, done, total int) {
	if total <= 0 {
		return
	}
	percent := float64(done) / float64(total) * 100
	bucket := int(percent / 5)

	r.mu.Lock()
	if bucket <= *lastBucket {
		r.mu.Unlock()
		return
	}
	*lastBucket = bucket
	r.mu.Unlock()

	r.log("INFO", "%s progress: %d/%d (%.0f%%)", label, done, total, percent)
}

func (r *LogReporter) Warning(message string) {
	r.log("WARN", "%s", message)
}

func (r *LogReporter) Error(err ReporterError) {
	r.log("ERROR", "%s: %s", err.Title, err.Message)
	if err.Context != "" {
		r.log("ERROR", "  Context: %s", err.Context)
	}
	if err.Suggestion != "" {
		r.log("ERROR", "  Suggestion: %s", err.Suggestion)
	}
}

func (r *LogReporter) OperationComplete(message string) {
	r.log("INFO", "=== COMPLETE === %s", message)
}
