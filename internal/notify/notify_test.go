package notify

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(zerolog.New(&buf))

	if _, ok := n.Last(); ok {
		t.Fatal("Last() reported a notification before any was sent")
	}

	n.Notify(Notification{Title: "Insufficient credit", Message: "Please add 2.00", Severity: SeverityWarning})

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not JSON: %v", err)
	}
	if entry["level"] != "warn" || entry["title"] != "Insufficient credit" || entry["component"] != "notify" {
		t.Errorf("unexpected log entry: %v", entry)
	}

	last, ok := n.Last()
	if !ok || last.Message != "Please add 2.00" {
		t.Errorf("Last() = %+v, %v", last, ok)
	}
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	r.Cue(CueCountdownBeep)
	r.Cue(CueCountdownBeep)
	r.Cue(CueShutter)
	r.Notify(Notification{Title: "x"})

	if got := r.Count(CueCountdownBeep); got != 2 {
		t.Errorf("Count(countdown-beep) = %d, want 2", got)
	}
	if got := len(r.Notifications()); got != 1 {
		t.Errorf("len(Notifications()) = %d, want 1", got)
	}
}
