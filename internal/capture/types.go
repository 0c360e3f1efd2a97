package capture

import "github.com/goodtune/photokiosk/internal/domain"

// State is the phase of the capture ritual.
type State int

const (
	StateIdle State = iota
	StateWarmingUp
	StateCountingDown
	StateTriggering
	StatePausing
	StateFailed
	StateCompleted
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWarmingUp:
		return "warming_up"
	case StateCountingDown:
		return "counting_down"
	case StateTriggering:
		return "triggering"
	case StatePausing:
		return "pausing"
	case StateFailed:
		return "failed"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// EventType identifies a sequencer event.
type EventType string

const (
	EventCountdown     EventType = "countdown"
	EventShotCaptured  EventType = "shot_captured"
	EventCaptureFailed EventType = "capture_failed"
	EventCompleted     EventType = "completed"
)

// Event reports sequencer progress.
type Event struct {
	Type      EventType
	Shot      int
	Countdown int
	Photo     domain.PhotoRef
	Photos    []domain.PhotoRef
	Err       error
}

// Diagnostics describes the sequencer for operator troubleshooting.
type Diagnostics struct {
	State       State  `json:"state"`
	Shot        int    `json:"shot"`
	PhotoCount  int    `json:"photo_count"`
	Captured    int    `json:"captured"`
	Failures    int    `json:"failures"`
	CameraReady bool   `json:"camera_ready"`
	LastError   string `json:"last_error,omitempty"`
}
