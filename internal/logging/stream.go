package logging

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"
)

// LogEvent represents a structured log line published to the streaming hub.
type LogEvent struct {
	Sequence      uint64            `json:"seq"`
	Timestamp     time.Time         `json:"ts"`
	Level         string            `json:"level"`
	Message       string            `json:"msg"`
	Component     string            `json:"component,omitempty"`
	JobID         string            `json:"job_id,omitempty"`
	Stage         string            `json:"stage,omitempty"`
	Provider      string            `json:"provider,omitempty"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	Fields        map[string]string `json:"fields,omitempty"`
	Details       []DetailField     `json:"details,omitempty"`
}

// DetailField mirrors the console handler's info bullet lines.
type DetailField struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// EventFilter narrows a page of events for /api/logs. Zero fields match
// everything; Level is a minimum ("warn" keeps WARN and ERROR).
type EventFilter struct {
	JobID     string
	Component string
	Level     string
}

// Match reports whether evt passes every set criterion.
func (f EventFilter) Match(evt LogEvent) bool {
	if id := strings.TrimSpace(f.JobID); id != "" && evt.JobID != id {
		return false
	}
	if c := strings.TrimSpace(f.Component); c != "" && !strings.EqualFold(c, evt.Component) {
		return false
	}
	if strings.TrimSpace(f.Level) != "" && parseLevel(evt.Level) < parseLevel(f.Level) {
		return false
	}
	return true
}

// Apply returns the events that Match, preserving order.
func (f EventFilter) Apply(events []LogEvent) []LogEvent {
	out := make([]LogEvent, 0, len(events))
	for _, evt := range events {
		if f.Match(evt) {
			out = append(out, evt)
		}
	}
	return out
}

// LogEventSink receives every published event (the on-disk archive).
type LogEventSink interface {
	Append(LogEvent)
}

// StreamHub keeps the most recent events in a ring and lets followers block
// until something newer than their cursor arrives.
type StreamHub struct {
	mu    sync.Mutex
	ring  []LogEvent
	start int
	count int
	seq   uint64
	wake  chan struct{}
	sinks []LogEventSink
}

// NewStreamHub returns a hub holding up to capacity events (512 if <= 0).
func NewStreamHub(capacity int) *StreamHub {
	if capacity <= 0 {
		capacity = 512
	}
	return &StreamHub{ring: make([]LogEvent, capacity), wake: make(chan struct{})}
}

// AddSink registers sink for every subsequent event.
func (h *StreamHub) AddSink(sink LogEventSink) {
	if h == nil || sink == nil {
		return
	}
	h.mu.Lock()
	h.sinks = append(h.sinks, sink)
	h.mu.Unlock()
}

// Publish assigns the next sequence to evt, evicting the oldest event when
// full, and wakes all followers.
func (h *StreamHub) Publish(evt LogEvent) {
	if h == nil {
		return
	}
	h.mu.Lock()
	h.seq++
	evt.Sequence = h.seq
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	if h.count < len(h.ring) {
		h.ring[(h.start+h.count)%len(h.ring)] = evt
		h.count++
	} else {
		h.ring[h.start] = evt
		h.start = (h.start + 1) % len(h.ring)
	}
	close(h.wake)
	h.wake = make(chan struct{})
	sinks := slices.Clone(h.sinks)
	h.mu.Unlock()

	for _, sink := range sinks {
		sink.Append(evt)
	}
}

// Fetch returns up to limit events with sequence greater than since and the
// cursor to pass next time. With wait set it blocks until at least one such
// event exists or ctx ends.
func (h *StreamHub) Fetch(ctx context.Context, since uint64, limit int, wait bool) ([]LogEvent, uint64, error) {
	if h == nil {
		return nil, since, nil
	}
	for {
		h.mu.Lock()
		events := h.afterLocked(since, h.clampLimit(limit))
		next, wake := h.seq, h.wake
		h.mu.Unlock()

		if len(events) > 0 {
			return events, events[len(events)-1].Sequence, nil
		}
		if !wait {
			return nil, next, nil
		}
		select {
		case <-ctx.Done():
			return nil, next, ctx.Err()
		case <-wake:
		}
	}
}

// Tail returns the newest limit events and the current sequence.
func (h *StreamHub) Tail(limit int) ([]LogEvent, uint64) {
	if h == nil {
		return nil, 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	n := min(h.clampLimit(limit), h.count)
	if n == 0 {
		return nil, h.seq
	}
	out := make([]LogEvent, n)
	for i := range n {
		out[i] = h.at(h.count - n + i)
	}
	return out, h.seq
}

// FirstSequence returns the oldest sequence still buffered, or 0 when empty.
func (h *StreamHub) FirstSequence() uint64 {
	if h == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.count == 0 {
		return 0
	}
	return h.at(0).Sequence
}

func (h *StreamHub) clampLimit(limit int) int {
	if limit <= 0 || limit > len(h.ring) {
		return len(h.ring)
	}
	return limit
}

func (h *StreamHub) at(i int) LogEvent {
	return h.ring[(h.start+i)%len(h.ring)]
}

func (h *StreamHub) afterLocked(since uint64, limit int) []LogEvent {
	var out []LogEvent
	for i := 0; i < h.count && len(out) < limit; i++ {
		if evt := h.at(i); evt.Sequence > since {
			out = append(out, evt)
		}
	}
	return out
}

// hubHandler publishes every record to a StreamHub before passing it on.
type hubHandler struct {
	next  slog.Handler
	hub   *StreamHub
	attrs []slog.Attr
}

func newStreamHandler(next slog.Handler, hub *StreamHub) slog.Handler {
	if hub == nil || next == nil {
		return next
	}
	return &hubHandler{next: next, hub: hub}
}

func (h *hubHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *hubHandler) Handle(ctx context.Context, record slog.Record) error {
	h.hub.Publish(eventFromRecord(record, h.attrs))
	return h.next.Handle(ctx, record.Clone())
}

func (h *hubHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &hubHandler{next: h.next.WithAttrs(attrs), hub: h.hub, attrs: slices.Concat(h.attrs, attrs)}
}

func (h *hubHandler) WithGroup(name string) slog.Handler {
	return &hubHandler{next: h.next.WithGroup(name), hub: h.hub, attrs: h.attrs}
}

// eventFromRecord lifts the well-known keys into LogEvent fields and keeps
// the rest as strings. Call-site attributes override logger attributes.
func eventFromRecord(record slog.Record, inherited []slog.Attr) LogEvent {
	event := LogEvent{
		Timestamp: record.Time,
		Level:     strings.ToUpper(record.Level.String()),
		Message:   strings.TrimSpace(record.Message),
	}

	flat := collectFields(nil, inherited, record)

	known := map[string]*string{
		FieldJobID:         &event.JobID,
		FieldStage:         &event.Stage,
		FieldProvider:      &event.Provider,
		FieldCorrelationID: &event.CorrelationID,
		FieldComponent:     &event.Component,
	}
	for _, attr := range flat {
		if dst, ok := known[attr.key]; ok {
			*dst = attrString(attr.value)
			continue
		}
		if event.Fields == nil {
			event.Fields = make(map[string]string)
		}
		event.Fields[attr.key] = attrString(attr.value)
	}

	info, _ := selectInfoFields(flat, infoAttrLimit, false)
	for _, field := range info {
		event.Details = append(event.Details, DetailField{Label: field.label, Value: field.value})
	}
	return event
}
