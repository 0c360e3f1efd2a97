// Package notify delivers customer-facing messages and audio cues.
package notify

import (
	"sync"

	"github.com/rs/zerolog"
)

// Severity ranks a notification for display.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Audio cue names.
const (
	CueCountdownBeep = "countdown-beep"
	CueShutter       = "shutter"
	CueSuccess       = "success"
	CueError         = "error"
)

// ContactStaff replaces internal diagnostic detail in customer messages.
const ContactStaff = "Something went wrong. Please contact staff for assistance."

// Notification is a fire-and-forget message to the customer.
type Notification struct {
	Title    string   `json:"title"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// Notifier displays notifications. Implementations must not block.
type Notifier interface {
	Notify(n Notification)
}

// Audio plays named cues. Implementations must not block.
type Audio interface {
	Cue(name string)
}

// LogNotifier writes notifications and cues to a zerolog logger and keeps
// the most recent notification for status queries.
type LogNotifier struct {
	logger zerolog.Logger

	mu   sync.RWMutex
	last *Notification
}

// NewLogNotifier creates a notifier that logs under the "notify" component.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "notify").Logger()}
}

// Notify logs n at a level matching its severity.
func (n *LogNotifier) Notify(msg Notification) {
	n.mu.Lock()
	n.last = &msg
	n.mu.Unlock()

	event := n.logger.Info()
	switch msg.Severity {
	case SeverityWarning:
		event = n.logger.Warn()
	case SeverityError:
		event = n.logger.Error()
	}
	event.Str("title", msg.Title).Msg(msg.Message)
}

// Cue logs the cue name.
func (n *LogNotifier) Cue(name string) {
	n.logger.Debug().Str("cue", name).Msg("Audio cue")
}

// Last returns the most recent notification, if any.
func (n *LogNotifier) Last() (Notification, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.last == nil {
		return Notification{}, false
	}
	return *n.last, true
}

// Nop discards notifications and cues.
type Nop struct{}

func (Nop) Notify(Notification) {}
func (Nop) Cue(string)          {}

// Recorder keeps every notification and cue; useful in tests.
type Recorder struct {
	mu            sync.Mutex
	notifications []Notification
	cues          []string
}

func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, n)
}

func (r *Recorder) Cue(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cues = append(r.cues, name)
}

// Notifications returns a copy of the recorded notifications.
func (r *Recorder) Notifications() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.notifications...)
}

// Cues returns a copy of the recorded cue names.
func (r *Recorder) Cues() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.cues...)
}

// Count returns how many times cue was played.
func (r *Recorder) Count(cue string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.cues {
		if c == cue {
			n++
		}
	}
	return n
}
