package events_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"courtline/internal/apperr"
	"courtline/internal/events"
)

func fixedClock() func() time.Time {
	ts := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		ts = ts.Add(time.Second)
		return ts
	}
}

func openLog(t *testing.T, path string) *events.Log {
	t.Helper()
	return events.Open(path, events.Options{Now: fixedClock()})
}

func TestAppendPersistsAndReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.json")
	l := openLog(t, path)
	first, err := l.Append(events.EvidenceAdded, events.Payload{"id": "bloody_glove", "name": "Bloody Glove"})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := l.Append(events.LocationChanged, events.Payload{"from": "law_office", "to": "crime_scene"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	reloaded := openLog(t, path)
	if reloaded.Recovered() != nil {
		t.Fatalf("unexpected recovery: %v", reloaded.Recovered())
	}
	if diff := cmp.Diff(l.Events(), reloaded.Events()); diff != "" {
		t.Fatalf("reloaded events differ (-want +got):\n%s", diff)
	}
	since, err := reloaded.EventsSince(first.ID)
	if err != nil {
		t.Fatalf("since: %v", err)
	}
	if len(since) != 1 || since[0].Kind != events.LocationChanged {
		t.Fatalf("since = %+v", since)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var file struct {
		Version    string `json:"version"`
		EventCount int    `json:"event_count"`
	}
	if err := json.Unmarshal(raw, &file); err != nil {
		t.Fatal(err)
	}
	if file.Version != events.FormatVersion || file.EventCount != 2 {
		t.Fatalf("file header = %+v", file)
	}
}

func TestAppendRejectsUnknownKind(t *testing.T) {
	l := openLog(t, filepath.Join(t.TempDir(), "events.json"))
	_, err := l.Append(events.Kind("teleported"), nil)
	if !apperr.HasCode(err, apperr.CodeUnknownEventKind) {
		t.Fatalf("expected unknown kind, got %v", err)
	}
	if l.Len() != 0 {
		t.Fatalf("log should stay empty")
	}
}

func TestCorruptLogFailsOpenToEmpty(t *testing.T) {
	for name, body := range map[string]string{
		"garbage":        "{not json",
		"count mismatch": `{"version":"2.0","event_count":3,"events":[]}`,
		"unknown kind":   `{"version":"2.0","event_count":1,"events":[{"id":"e1","timestamp":"2024-01-01T00:00:00Z","kind":"nope","payload":{}}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "events.json")
			if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
				t.Fatal(err)
			}
			l := openLog(t, path)
			if l.Len() != 0 {
				t.Fatalf("expected empty log, got %d events", l.Len())
			}
			if apperr.KindOf(l.Recovered()) != apperr.KindCorrupt {
				t.Fatalf("expected corrupt recovery, got %v", l.Recovered())
			}
			if _, err := l.Append(events.CaseCreated, events.Payload{"case_id": "c"}); err != nil {
				t.Fatalf("append after recovery: %v", err)
			}
			matches, _ := filepath.Glob(path + ".corrupt-*")
			if len(matches) != 1 {
				t.Fatalf("corrupt file should be kept aside, found %v", matches)
			}
		})
	}
}

func TestEventsSinceUnknownID(t *testing.T) {
	l := openLog(t, filepath.Join(t.TempDir(), "events.json"))
	if _, err := l.EventsSince("missing"); err == nil {
		t.Fatalf("expected error for unknown id")
	}
	all, err := l.EventsSince("")
	if err != nil || len(all) != 0 {
		t.Fatalf("all = %v %v", all, err)
	}
}

func TestReplaceValidates(t *testing.T) {
	l := openLog(t, filepath.Join(t.TempDir(), "events.json"))
	evt, err := l.Append(events.CaseCreated, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Replace([]events.Event{evt, evt}); err == nil {
		t.Fatalf("duplicate ids must be rejected")
	}
	if err := l.Replace(nil); err != nil {
		t.Fatalf("replace with empty: %v", err)
	}
	if l.Len() != 0 {
		t.Fatalf("len = %d", l.Len())
	}
}

func TestPayloadOfNormalizes(t *testing.T) {
	p, err := events.PayloadOf(events.EvidencePresentedPayload{Statement: "C", Evidence: []string{"autopsy_report"}})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := p["evidence"].([]any); !ok {
		t.Fatalf("expected JSON array form, got %T", p["evidence"])
	}
	var back events.EvidencePresentedPayload
	if err := (events.Event{Kind: events.EvidencePresented, Payload: p}).Decode(&back); err != nil {
		t.Fatal(err)
	}
	if back.Statement != "C" || back.Evidence[0] != "autopsy_report" {
		t.Fatalf("decoded = %+v", back)
	}
}
