package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"courtline/internal/apperr"
	"courtline/internal/atomicfile"
)

// FormatVersion is written into every event log file.
const FormatVersion = "2.0"

type logFile struct {
	Version    string  `json:"version"`
	Created    string  `json:"created"`
	EventCount int     `json:"event_count"`
	Events     []Event `json:"events"`
}

// Options configure a Log.
type Options struct {
	Now    func() time.Time
	NewID  func() string
	Logger *slog.Logger
}

// Log is the append-only, file-backed event log of one case.
type Log struct {
	path      string
	mu        sync.RWMutex
	data      logFile
	now       func() time.Time
	newID     func() string
	logger    *slog.Logger
	recovered error
}

// Open loads the log at path. A missing file yields an empty log. An
// unreadable or malformed file is moved aside and the log starts empty; the
// reason is kept in Recovered.
func Open(path string, opts Options) *Log {
	l := &Log{
		path:   path,
		now:    opts.Now,
		newID:  opts.NewID,
		logger: opts.Logger,
	}
	if l.now == nil {
		l.now = time.Now
	}
	if l.newID == nil {
		l.newID = func() string { return uuid.NewString() }
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	l.data = l.emptyFile()
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			l.recover(err)
		}
		return l
	}
	var f logFile
	if err := json.Unmarshal(data, &f); err != nil {
		l.recover(err)
		return l
	}
	if err := validateFile(f); err != nil {
		l.recover(err)
		return l
	}
	if f.Events == nil {
		f.Events = []Event{}
	}
	l.data = f
	return l
}

func (l *Log) emptyFile() logFile {
	return logFile{
		Version: FormatVersion,
		Created: l.now().UTC().Format(time.RFC3339Nano),
		Events:  []Event{},
	}
}

func (l *Log) recover(cause error) {
	l.recovered = apperr.Corrupt(apperr.CodeCorruptLog, l.path, cause)
	moved, err := atomicfile.Quarantine(l.path, l.now().UTC().Format("20060102T150405"))
	l.logger.Warn("event log unreadable, starting empty",
		slog.String("path", l.path), slog.String("moved_to", moved), slog.Any("error", cause))
	if err != nil {
		l.logger.Warn("could not move corrupt event log aside", slog.String("path", l.path), slog.Any("error", err))
	}
}

func validateFile(f logFile) error {
	if f.Version == "" {
		return errors.New("missing version")
	}
	if f.EventCount != len(f.Events) {
		return fmt.Errorf("event_count %d does not match %d events", f.EventCount, len(f.Events))
	}
	seen := make(map[string]bool, len(f.Events))
	for i, e := range f.Events {
		if e.ID == "" {
			return fmt.Errorf("event %d has no id", i)
		}
		if seen[e.ID] {
			return fmt.Errorf("duplicate event id %s", e.ID)
		}
		seen[e.ID] = true
		if !e.Kind.Valid() {
			return fmt.Errorf("event %s has unknown kind %q", e.ID, e.Kind)
		}
	}
	return nil
}

// Path returns the backing file path.
func (l *Log) Path() string { return l.path }

// Recovered returns the corruption that forced an empty log on Open, if any.
func (l *Log) Recovered() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.recovered
}

// Append records a new event and persists the log before returning its id.
func (l *Log) Append(kind Kind, payload Payload) (Event, error) {
	if !kind.Valid() {
		return Event{}, apperr.Validation(apperr.CodeUnknownEventKind, "unknown event kind %q", kind)
	}
	if payload == nil {
		payload = Payload{}
	}
	normalized, err := PayloadOf(payload)
	if err != nil {
		return Event{}, err
	}
	evt := Event{
		ID:        l.newID(),
		Timestamp: l.now().UTC(),
		Kind:      kind,
		Payload:   normalized,
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	next := l.data
	next.Events = append(append(make([]Event, 0, len(l.data.Events)+1), l.data.Events...), evt)
	next.EventCount = len(next.Events)
	if err := atomicfile.WriteJSON(l.path, next); err != nil {
		return Event{}, fmt.Errorf("persist event log: %w", err)
	}
	l.data = next
	return evt, nil
}

// Replace swaps the whole log for events, atomically. Used by save restore.
func (l *Log) Replace(events []Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	next := logFile{
		Version:    FormatVersion,
		Created:    l.data.Created,
		EventCount: len(events),
		Events:     append([]Event{}, events...),
	}
	if err := validateFile(next); err != nil {
		return apperr.Corrupt(apperr.CodeCorruptSave, l.path, err)
	}
	if err := atomicfile.WriteJSON(l.path, next); err != nil {
		return fmt.Errorf("persist event log: %w", err)
	}
	l.data = next
	l.recovered = nil
	return nil
}

// Events returns a copy of every event in order.
func (l *Log) Events() []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Event{}, l.data.Events...)
}

// Len returns the number of events.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.data.Events)
}

// Last returns the newest event.
func (l *Log) Last() (Event, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.data.Events) == 0 {
		return Event{}, false
	}
	return l.data.Events[len(l.data.Events)-1], true
}

// EventsSince returns the events after id, or all events when id is empty.
func (l *Log) EventsSince(id string) ([]Event, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if id == "" {
		return append([]Event{}, l.data.Events...), nil
	}
	for i, e := range l.data.Events {
		if e.ID == id {
			return append([]Event{}, l.data.Events[i+1:]...), nil
		}
	}
	return nil, apperr.Validation(apperr.CodeInvalidArgument, "event %s not in log", id).With("event_id", id)
}
