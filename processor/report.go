package processor

import (
	"sync"

	"go.uber.org/zap"
)

// Reporter receives the diagnostics of a pass. Implementations must not
// panic; reporting has no effect on generation.
type Reporter interface {
	Report(Diagnostic)
}

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc func(Diagnostic)

// Report implements Reporter.
func (f ReporterFunc) Report(d Diagnostic) {
	f(d)
}

// NopReporter discards all diagnostics.
var NopReporter Reporter = ReporterFunc(func(Diagnostic) {})

// Collector is a Reporter that retains the diagnostics it is given. It is safe
// for concurrent use.
type Collector struct {
	mu    sync.Mutex
	diags []Diagnostic
}

// Report implements Reporter.
func (c *Collector) Report(d Diagnostic) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.diags = append(c.diags, d)
}

// Diagnostics returns the collected diagnostics, in the order reported.
func (c *Collector) Diagnostics() []Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()
	diags := make([]Diagnostic, len(c.diags))
	copy(diags, c.diags)
	return diags
}

// Reset discards the collected diagnostics.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.diags = nil
}

// LogReporter returns a Reporter that logs each diagnostic at a level that
// matches its severity.
func LogReporter(logger *zap.Logger) Reporter {
	return ReporterFunc(func(d Diagnostic) {
		fields := []zap.Field{
			zap.Stringer("code", d.Code),
			zap.Stringer("pos", d.Pos),
		}
		switch d.Severity {
		case SeverityError:
			logger.Error(d.Message, fields...)
		case SeverityWarning:
			logger.Warn(d.Message, fields...)
		default:
			logger.Info(d.Message, fields...)
		}
	})
}

// MultiReporter returns a Reporter that hands each diagnostic to all of the
// given reporters.
func MultiReporter(reporters ...Reporter) Reporter {
	return ReporterFunc(func(d Diagnostic) {
		for _, r := range reporters {
			r.Report(d)
		}
	})
}
