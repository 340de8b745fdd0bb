package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// ProgressCallback receives batch progress. All methods are called from the
// goroutine running Run, in order.
type ProgressCallback interface {
	// OnStart is called once with the number of images in the batch.
	OnStart(total int)

	// OnImageDone is called after each image finishes or is skipped.
	OnImageDone(done, total int, result ImageResult)

	// OnComplete is called with the aggregated result.
	OnComplete(result *BatchResult)
}

// NoOpProgressCallback ignores all progress.
type NoOpProgressCallback struct{}

func (NoOpProgressCallback) OnStart(int)                       {}
func (NoOpProgressCallback) OnImageDone(int, int, ImageResult) {}
func (NoOpProgressCallback) OnComplete(*BatchResult)           {}

// ConsoleProgressCallback draws a progress bar, one redraw per image.
type ConsoleProgressCallback struct {
	writer    io.Writer
	prefix    string
	width     int
	mutex     sync.Mutex
	startTime time.Time
	skipped   int
}

// NewConsoleProgressCallback creates a console reporter. A nil writer means
// stderr.
func NewConsoleProgressCallback(writer io.Writer, prefix string) *ConsoleProgressCallback {
	if writer == nil {
		writer = os.Stderr
	}
	return &ConsoleProgressCallback{writer: writer, prefix: prefix, width: 30}
}

// WithWidth sets the bar width in characters.
func (c *ConsoleProgressCallback) WithWidth(width int) *ConsoleProgressCallback {
	if width > 0 {
		c.width = width
	}
	return c
}

func (c *ConsoleProgressCallback) OnStart(total int) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.startTime = time.Now()
	c.skipped = 0
	_, _ = fmt.Fprintf(c.writer, "%s0/%d images\n", c.prefix, total)
}

func (c *ConsoleProgressCallback) OnImageDone(done, total int, result ImageResult) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if result.Skipped() {
		c.skipped++
	}
	if total == 0 {
		return
	}
	filled := c.width * done / total
	bar := strings.Repeat("#", filled) + strings.Repeat(".", c.width-filled)
	_, _ = fmt.Fprintf(c.writer, "\r%s[%s] %d/%d", c.prefix, bar, done, total)
	if c.skipped > 0 {
		_, _ = fmt.Fprintf(c.writer, " (%d skipped)", c.skipped)
	}
}

func (c *ConsoleProgressCallback) OnComplete(result *BatchResult) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	n := 0
	if result != nil {
		n = len(result.Names)
	}
	_, _ = fmt.Fprintf(c.writer, "\n%s%d ingredients in %v\n", c.prefix, n, time.Since(c.startTime).Round(time.Millisecond))
}

// LogProgressCallback reports progress through slog.
type LogProgressCallback struct {
	logger *slog.Logger
	level  slog.Level
}

// NewLogProgressCallback creates a log-based reporter.
func NewLogProgressCallback(logger *slog.Logger, level slog.Level) *LogProgressCallback {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogProgressCallback{logger: logger, level: level}
}

func (l *LogProgressCallback) OnStart(total int) {
	l.logger.Log(context.Background(), l.level, "Batch started", "total", total)
}

func (l *LogProgressCallback) OnImageDone(done, total int, result ImageResult) {
	l.logger.Log(context.Background(), l.level, "Image finished",
		"done", done,
		"total", total,
		"image_index", result.Index,
		"state", result.State,
		"candidates", len(result.Candidates))
}

func (l *LogProgressCallback) OnComplete(result *BatchResult) {
	if result == nil {
		return
	}
	l.logger.Log(context.Background(), l.level, "Batch completed",
		"ingredients", result.Ingredients,
		"duration_ms", result.Duration.Milliseconds())
}

// MultiProgressCallback fans progress out to several callbacks.
type MultiProgressCallback []ProgressCallback

func (m MultiProgressCallback) OnStart(total int) {
	for _, cb := range m {
		cb.OnStart(total)
	}
}

func (m MultiProgressCallback) OnImageDone(done, total int, result ImageResult) {
	for _, cb := range m {
		cb.OnImageDone(done, total, result)
	}
}

func (m MultiProgressCallback) OnComplete(result *BatchResult) {
	for _, cb := range m {
		cb.OnComplete(result)
	}
}
