package warnings

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Severity levels for warnings
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityLow
	SeverityMedium
	SeverityHigh
)

// String returns the string representation of severity
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	default:
		return "UNKNOWN"
	}
}

// Warning represents a recorded processing warning, typically a cosmetic
// stage falling back to its unmodified input.
type Warning struct {
	ID        string
	Stage     string
	Severity  Severity
	Message   string
	Details   map[string]interface{}
	FirstSeen time.Time
	LastSeen  time.Time
	Count     int
}

// Handler receives warnings as they are recorded
type Handler interface {
	HandleWarning(warning *Warning)
}

// LogHandler logs warnings through logrus
type LogHandler struct {
	logger *logrus.Logger
}

// NewLogHandler creates a handler that logs each warning
func NewLogHandler(logger *logrus.Logger) *LogHandler {
	return &LogHandler{logger: logger}
}

// HandleWarning logs the warning with its context fields
func (h *LogHandler) HandleWarning(warning *Warning) {
	fields := logrus.Fields{
		"warning_id": warning.ID,
		"stage":      warning.Stage,
		"severity":   warning.Severity.String(),
		"count":      warning.Count,
	}
	for k, v := range warning.Details {
		fields[k] = v
	}

	switch warning.Severity {
	case SeverityHigh:
		h.logger.WithFields(fields).Error(warning.Message)
	case SeverityMedium:
		h.logger.WithFields(fields).Warn(warning.Message)
	default:
		h.logger.WithFields(fields).Info(warning.Message)
	}
}

// Collector aggregates warnings across processing invocations. Repeated
// warnings with the same stage and message are coalesced with a count
// instead of growing without bound.
type Collector struct {
	logger      *logrus.Logger
	warnings    map[string]*Warning
	mu          sync.RWMutex
	maxWarnings int
	handlers    []Handler
}

// NewCollector creates a warning collector
func NewCollector(logger *logrus.Logger) *Collector {
	c := &Collector{
		logger:      logger,
		warnings:    make(map[string]*Warning),
		maxWarnings: 1000,
	}
	c.handlers = append(c.handlers, NewLogHandler(logger))
	return c
}

// AddHandler registers an additional warning handler
func (c *Collector) AddHandler(handler Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, handler)
}

// Record records a warning for the given stage. The stage and message
// together identify the warning for coalescing.
func (c *Collector) Record(stage string, severity Severity, message string, details map[string]interface{}) {
	c.mu.Lock()

	id := fmt.Sprintf("%s:%s", stage, message)
	now := time.Now()

	w, exists := c.warnings[id]
	if exists {
		w.LastSeen = now
		w.Count++
		w.Details = details
	} else {
		if len(c.warnings) >= c.maxWarnings {
			c.evictOldest()
		}
		w = &Warning{
			ID:        id,
			Stage:     stage,
			Severity:  severity,
			Message:   message,
			Details:   details,
			FirstSeen: now,
			LastSeen:  now,
			Count:     1,
		}
		c.warnings[id] = w
	}

	handlers := make([]Handler, len(c.handlers))
	copy(handlers, c.handlers)
	snapshot := *w
	c.mu.Unlock()

	for _, h := range handlers {
		h.HandleWarning(&snapshot)
	}
}

// RecordFallback records a cosmetic stage falling back to its unmodified
// input. This is the observability hook for best-effort stages.
func (c *Collector) RecordFallback(stage string, reason error, details map[string]interface{}) {
	if details == nil {
		details = make(map[string]interface{})
	}
	if reason != nil {
		details["reason"] = reason.Error()
	}
	c.Record(stage, SeverityLow, "stage fell back to unmodified input", details)
}

// GetWarnings returns a snapshot of all recorded warnings
func (c *Collector) GetWarnings() []*Warning {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]*Warning, 0, len(c.warnings))
	for _, w := range c.warnings {
		snapshot := *w
		result = append(result, &snapshot)
	}
	return result
}

// Count returns the number of distinct warnings recorded
func (c *Collector) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.warnings)
}

// Reset clears all recorded warnings
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.warnings = make(map[string]*Warning)
}

// evictOldest removes the least recently seen warning. Caller must hold the lock.
func (c *Collector) evictOldest() {
	var oldestID string
	var oldest time.Time
	for id, w := range c.warnings {
		if oldestID == "" || w.LastSeen.Before(oldest) {
			oldestID = id
			oldest = w.LastSeen
		}
	}
	if oldestID != "" {
		delete(c.warnings, oldestID)
	}
}
