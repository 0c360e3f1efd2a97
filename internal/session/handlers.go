package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goodtune/photokiosk/internal/capture"
	"github.com/goodtune/photokiosk/internal/domain"
	"github.com/goodtune/photokiosk/internal/metrics"
	"github.com/goodtune/photokiosk/internal/notify"
	"github.com/goodtune/photokiosk/internal/timeline"
	"github.com/goodtune/photokiosk/internal/upsell"
)

func (m *Machine) startTimer(d time.Duration, onExpire func()) *timeline.StageTimer {
	m.stopTimer()
	timer := timeline.NewStageTimer(m.tl, d)
	timer.Start(onExpire)
	return timer
}

func (m *Machine) stopTimer() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Machine) startSequencer() error {
	if m.sequencer != nil {
		m.sequencer.Cancel()
	}

	m.lastErr = nil
	m.sequencer = capture.NewSequencer(m.tl, m.deps.Camera, m.deps.Audio, m.cfg.Capture, m.base)
	m.sequencer.SetListener(m.onCaptureEvent)
	m.sequencer.SetDiscard(m.releaseLatePhoto)
	return m.sequencer.Start(m.ctx, m.session.RequiredPhotos())
}

func (m *Machine) onCaptureEvent(e capture.Event) {
	if m.stage != domain.StageCapturing {
		return
	}

	switch e.Type {
	case capture.EventShotCaptured:
		m.session.CapturedPhotos = append(m.session.CapturedPhotos, e.Photo)

	case capture.EventCaptureFailed:
		m.lastErr = e.Err
		if m.sequencer.Diagnostics().CameraReady {
			m.deps.Notifier.Notify(notify.Notification{
				Title:    "Photo not taken",
				Message:  fmt.Sprintf("Photo %d could not be taken. Tap retry to try again.", e.Shot+1),
				Severity: notify.SeverityWarning,
			})
		} else {
			m.internalError("Camera unavailable", e.Err)
		}

	case capture.EventCompleted:
		if len(e.Photos) != m.session.RequiredPhotos() {
			m.internalError("Capture completed with wrong photo count",
				fmt.Errorf("captured %d photos, template needs %d", len(e.Photos), m.session.RequiredPhotos()))
			return
		}
		m.session.CapturedPhotos = e.Photos
		m.transition(domain.StageComposing)
		m.startCompose()
	}

	ev := e
	m.emit(Event{Type: EventCapture, SessionID: m.session.ID, From: m.stage, To: m.stage, Capture: &ev})
}

func (m *Machine) startCompose() {
	m.composeGen++
	m.composing = true
	m.lastErr = nil

	gen := m.composeGen
	template := *m.session.Template
	paths := m.session.PhotoPaths()

	m.logger.Info().Str("session_id", m.session.ID).Str("template", template.ID).Msg("Composing photos")

	timeline.Suspend(m.tl, m.ctx, func(ctx context.Context) (domain.ComposeResult, error) {
		return m.deps.Compositor.ComposePhotos(ctx, template, paths)
	}, func(result domain.ComposeResult, err error) {
		if gen != m.composeGen || m.stage != domain.StageComposing {
			m.logger.Debug().Msg("Dropping stale composition result")
			return
		}
		m.composing = false
		_ = m.onComposed(result, err)
	})
}

func (m *Machine) onComposed(result domain.ComposeResult, err error) error {
	if err == nil && (!result.Success || result.OutputPath == "") {
		err = &domain.CompositionFailureError{Message: result.Message}
	}
	if err != nil {
		if !errors.Is(err, domain.ErrCompositionFailure) {
			err = &domain.CompositionFailureError{Err: err}
		}
		metrics.CompositionsTotal.WithLabelValues("failed").Inc()
		m.lastErr = err
		m.deps.Audio.Cue(notify.CueError)
		m.internalError("Composition failed", err)
		return err
	}

	metrics.CompositionsTotal.WithLabelValues("succeeded").Inc()
	m.session.ComposedImagePath = result.OutputPath
	m.session.PreviewImage = result.PreviewImage
	if m.session.PreviewImage == "" {
		m.session.PreviewImage = result.OutputPath
	}

	m.logger.Info().
		Str("session_id", m.session.ID).
		Str("path", result.OutputPath).
		Msg("Photos composed")

	m.transition(domain.StagePreviewPending)
	m.timer = m.startTimer(m.cfg.PreviewTimeout, m.previewExpired)
	return nil
}

func (m *Machine) onUpsellEvent(e upsell.Event) {
	ev := e
	m.emit(Event{Type: EventUpsell, SessionID: m.session.ID, From: m.stage, To: m.stage, Upsell: &ev})

	switch e.Type {
	case upsell.EventStageEntered:
		if e.Stage == upsell.StageCrossSell && m.stage == domain.StageUpsellExtraCopies {
			m.transition(domain.StageUpsellCrossSell)
		}
	case upsell.EventDone:
		m.transition(domain.StageFinalizing)
		m.timer = m.startTimer(m.cfg.FinalizeTimeout, m.finalizeExpired)
	}
}

func (m *Machine) selectionExpired() {
	if m.stage != domain.StageProductSelected && m.stage != domain.StageTemplateSelected {
		return
	}
	m.logger.Info().Str("session_id", m.session.ID).Msg("Selection timed out")
	m.abort(ReasonTimedOut)
}

func (m *Machine) previewExpired() {
	if m.stage != domain.StagePreviewPending {
		return
	}
	m.logger.Info().Str("session_id", m.session.ID).Msg("Preview timed out, approving")
	if err := m.approvePhotos(); err != nil {
		m.internalError("Failed to auto-approve preview", err)
	}
}

func (m *Machine) finalizeExpired() {
	if m.stage != domain.StageFinalizing {
		return
	}
	m.logger.Info().Str("session_id", m.session.ID).Msg("Finalize timed out")
	m.abort(ReasonTimedOut)
}
