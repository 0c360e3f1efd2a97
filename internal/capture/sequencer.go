// Package capture runs the countdown-and-shutter ritual for a multi-shot
// photo session.
package capture

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/goodtune/photokiosk/internal/domain"
	"github.com/goodtune/photokiosk/internal/metrics"
	"github.com/goodtune/photokiosk/internal/notify"
	"github.com/goodtune/photokiosk/internal/timeline"
	"github.com/rs/zerolog"
)

// Camera produces still photos.
type Camera interface {
	Start(ctx context.Context) error
	CapturePhoto(ctx context.Context, name string) (string, error)
}

// Config holds the timing of the capture ritual.
type Config struct {
	WarmUp         time.Duration
	CountdownFrom  int
	TickInterval   time.Duration
	InterShotPause time.Duration
}

// DefaultConfig returns a 3s warm-up, a 3-2-1 countdown at one second
// per tick and a 1.5s pause between shots.
func DefaultConfig() Config {
	return Config{
		WarmUp:         3 * time.Second,
		CountdownFrom:  3,
		TickInterval:   time.Second,
		InterShotPause: 1500 * time.Millisecond,
	}
}

// Sequencer drives one capture pass. It is confined to its timeline:
// every method must be called on it, and the listener is invoked on it.
// A Sequencer cannot be restarted once started; create a new one for a
// retake.
type Sequencer struct {
	tl       *timeline.Timeline
	camera   Camera
	audio    notify.Audio
	cfg      Config
	logger   zerolog.Logger
	listener func(Event)
	discard  func(path string)

	ctx         context.Context
	state       State
	photoCount  int
	shot        int
	countdown   int
	photos      []domain.PhotoRef
	cameraReady bool
	failures    int
	lastErr     error

	pending    *timeline.Handle
	generation uint64
}

// NewSequencer creates an idle sequencer.
func NewSequencer(tl *timeline.Timeline, camera Camera, audio notify.Audio, cfg Config, logger zerolog.Logger) *Sequencer {
	if audio == nil {
		audio = notify.Nop{}
	}
	if cfg.CountdownFrom < 1 {
		cfg.CountdownFrom = 1
	}
	return &Sequencer{
		tl:     tl,
		camera: camera,
		audio:  audio,
		cfg:    cfg,
		logger: logger.With().Str("component", "capture").Logger(),
		state:  StateIdle,
	}
}

// SetListener sets the receiver of sequencer events.
func (s *Sequencer) SetListener(l func(Event)) {
	s.listener = l
}

// SetDiscard sets the receiver of photos the camera delivers after the
// pass was cancelled. Nobody else will ever see those files.
func (s *Sequencer) SetDiscard(f func(path string)) {
	s.discard = f
}

// Start starts the camera, waits out the warm-up and begins the first
// countdown. ctx bounds every camera call of this pass.
func (s *Sequencer) Start(ctx context.Context, photoCount int) error {
	if photoCount <= 0 {
		return &domain.ValidationError{Field: "photo_count", Reason: "must be positive"}
	}
	if s.state != StateIdle {
		return &domain.InvalidStateError{Op: "start capture", Stage: domain.StageCapturing}
	}

	s.ctx = ctx
	s.photoCount = photoCount
	s.photos = make([]domain.PhotoRef, 0, photoCount)

	s.logger.Info().Int("photo_count", photoCount).Msg("Starting capture sequence")
	s.startCamera()
	return nil
}

// Retry re-runs the shot that failed, restarting the camera first if it
// never came up. No shot is retried automatically.
func (s *Sequencer) Retry() error {
	if s.state != StateFailed {
		return &domain.InvalidStateError{Op: "retry capture", Stage: domain.StageCapturing}
	}

	s.logger.Info().Int("shot", s.shot).Msg("Retrying capture")
	s.lastErr = nil
	if !s.cameraReady {
		s.startCamera()
		return nil
	}
	s.beginCountdown()
	return nil
}

// Cancel stops pending ticks and drops any in-flight shutter result.
func (s *Sequencer) Cancel() {
	if s.state == StateCancelled || s.state == StateCompleted {
		return
	}
	s.generation++
	s.pending.Stop()
	s.pending = nil
	s.state = StateCancelled
	s.logger.Debug().Int("shot", s.shot).Msg("Capture sequence cancelled")
}

// State returns the current sequencer state.
func (s *Sequencer) State() State {
	return s.state
}

// Countdown returns the number currently displayed during a countdown.
func (s *Sequencer) Countdown() int {
	if s.state != StateCountingDown {
		return 0
	}
	return s.countdown
}

// Err returns the failure that stopped the sequence, if any.
func (s *Sequencer) Err() error {
	return s.lastErr
}

// Photos returns the captured photos in shot order.
func (s *Sequencer) Photos() []domain.PhotoRef {
	return append([]domain.PhotoRef(nil), s.photos...)
}

// Shots iterates over the shots captured so far. Each range starts from
// the first shot.
func (s *Sequencer) Shots() iter.Seq[domain.PhotoRef] {
	photos := s.Photos()
	return func(yield func(domain.PhotoRef) bool) {
		for _, p := range photos {
			if !yield(p) {
				return
			}
		}
	}
}

// Diagnostics returns a snapshot for operator troubleshooting.
func (s *Sequencer) Diagnostics() Diagnostics {
	d := Diagnostics{
		State:       s.state,
		Shot:        s.shot,
		PhotoCount:  s.photoCount,
		Captured:    len(s.photos),
		Failures:    s.failures,
		CameraReady: s.cameraReady,
	}
	if s.lastErr != nil {
		d.LastError = s.lastErr.Error()
	}
	return d
}

func (s *Sequencer) startCamera() {
	s.state = StateWarmingUp
	gen := s.generation

	timeline.Suspend(s.tl, s.ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.camera.Start(ctx)
	}, func(_ struct{}, err error) {
		if gen != s.generation {
			return
		}
		if err != nil {
			s.fail(fmt.Errorf("camera start: %w", err))
			return
		}
		s.cameraReady = true
		s.schedule(s.cfg.WarmUp, s.beginCountdown)
	})
}

func (s *Sequencer) beginCountdown() {
	s.state = StateCountingDown
	s.countdown = s.cfg.CountdownFrom
	s.tick()
}

func (s *Sequencer) tick() {
	s.audio.Cue(notify.CueCountdownBeep)
	s.emit(Event{Type: EventCountdown, Shot: s.shot, Countdown: s.countdown})

	s.schedule(s.cfg.TickInterval, func() {
		s.countdown--
		if s.countdown > 0 {
			s.tick()
			return
		}
		s.trigger()
	})
}

func (s *Sequencer) trigger() {
	s.state = StateTriggering
	s.audio.Cue(notify.CueShutter)

	gen := s.generation
	shot := s.shot
	name := fmt.Sprintf("shot-%02d", shot+1)

	timeline.Suspend(s.tl, s.ctx, func(ctx context.Context) (string, error) {
		return s.camera.CapturePhoto(ctx, name)
	}, func(path string, err error) {
		if gen != s.generation {
			s.logger.Debug().Int("shot", shot).Str("path", path).Msg("Dropping stale capture result")
			if err == nil && path != "" && s.discard != nil {
				s.discard(path)
			}
			return
		}
		if err == nil && path == "" {
			err = fmt.Errorf("camera returned no image")
		}
		if err != nil {
			metrics.ShotsTotal.WithLabelValues("failed").Inc()
			s.fail(err)
			return
		}
		s.captured(path)
	})
}

func (s *Sequencer) captured(path string) {
	metrics.ShotsTotal.WithLabelValues("captured").Inc()

	photo := domain.PhotoRef{Index: s.shot, Path: path}
	s.photos = append(s.photos, photo)
	s.shot++

	s.logger.Info().Int("shot", photo.Index).Str("path", path).Msg("Shot captured")
	s.emit(Event{Type: EventShotCaptured, Shot: photo.Index, Photo: photo})

	if s.shot == s.photoCount {
		s.state = StateCompleted
		s.audio.Cue(notify.CueSuccess)
		s.logger.Info().Int("photo_count", s.photoCount).Msg("Capture sequence completed")
		s.emit(Event{Type: EventCompleted, Shot: s.shot, Photos: s.Photos()})
		return
	}

	s.state = StatePausing
	s.schedule(s.cfg.InterShotPause, s.beginCountdown)
}

func (s *Sequencer) fail(err error) {
	s.state = StateFailed
	s.failures++
	s.lastErr = &domain.CaptureFailureError{Shot: s.shot, Err: err}
	s.audio.Cue(notify.CueError)

	s.logger.Warn().Err(err).Int("shot", s.shot).Msg("Capture failed")
	s.emit(Event{Type: EventCaptureFailed, Shot: s.shot, Err: s.lastErr})
}

func (s *Sequencer) schedule(d time.Duration, f func()) {
	s.pending.Stop()
	s.pending = s.tl.AfterFunc(d, f)
}

func (s *Sequencer) emit(e Event) {
	if s.listener != nil {
		s.listener(e)
	}
}
