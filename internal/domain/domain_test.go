package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestMoney_RoundUpWhole(t *testing.T) {
	tests := []struct {
		in   Money
		want Money
	}{
		{Cents(0), Cents(0)},
		{Cents(1), Units(1)},
		{Cents(500), Units(5)},
		{Cents(720), Units(8)},
		{Cents(799), Units(8)},
		{Cents(801), Units(9)},
		{Cents(-150), Cents(-100)},
	}

	for _, tt := range tests {
		t.Run(tt.in.String(), func(t *testing.T) {
			if got := tt.in.RoundUpWhole(); got != tt.want {
				t.Errorf("RoundUpWhole(%s) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestMoney_Formatting(t *testing.T) {
	if got := Cents(705).String(); got != "7.05" {
		t.Errorf("String() = %q, want %q", got, "7.05")
	}
	if got := Units(5).Format("$"); got != "$5.00" {
		t.Errorf("Format() = %q, want %q", got, "$5.00")
	}
	if got := Cents(-250).Format("$"); got != "-$2.50" {
		t.Errorf("Format() = %q, want %q", got, "-$2.50")
	}
	if got := FromFloat(1.35); got != Cents(135) {
		t.Errorf("FromFloat(1.35) = %d, want 135", got)
	}
}

func TestSession_Total(t *testing.T) {
	s := &Session{
		Product:     Product{Type: "strip", Price: Units(5)},
		ExtraCopies: ExtraCopies{Count: 1, Price: Units(5)},
		CrossSell:   CrossSell{Accepted: false, Price: Units(7)},
	}
	if got := s.Total(); got != Units(10) {
		t.Errorf("Total() = %s, want 10.00", got)
	}

	s.CrossSell.Accepted = true
	if got := s.Total(); got != Units(17) {
		t.Errorf("Total() with cross-sell = %s, want 17.00", got)
	}
}

func TestSession_CloneIsDeep(t *testing.T) {
	s := &Session{
		Template:       &Template{ID: "t1", PhotoCount: 2, Slots: []Slot{{Width: 1}}},
		CapturedPhotos: []PhotoRef{{Index: 0, Path: "a.jpg"}},
	}
	c := s.Clone()
	c.Template.PhotoCount = 9
	c.Template.Slots[0].Width = 9
	c.CapturedPhotos[0].Path = "changed"

	if s.Template.PhotoCount != 2 || s.Template.Slots[0].Width != 1 {
		t.Error("Clone() shares template with original")
	}
	if s.CapturedPhotos[0].Path != "a.jpg" {
		t.Error("Clone() shares captured photos with original")
	}
}

func TestStage_Order(t *testing.T) {
	if !StageCapturing.CaptureStarted() || StageTemplateSelected.CaptureStarted() {
		t.Error("CaptureStarted() boundary is wrong")
	}
	if !StageCompleted.IsTerminal() || !StageAborted.IsTerminal() {
		t.Error("Completed and Aborted must be terminal")
	}
	if StageIdle.IsLive() || !StageFinalizing.IsLive() {
		t.Error("IsLive() is wrong")
	}
}

func TestErrors_MatchSentinels(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
	}{
		{"validation", &ValidationError{Field: "template", Reason: "zero width"}, ErrValidation},
		{"capture", &CaptureFailureError{Shot: 1}, ErrCaptureFailure},
		{"composition", &CompositionFailureError{Message: "disk full"}, ErrCompositionFailure},
		{"credit", &InsufficientCreditError{Required: Units(10), Balance: Units(9)}, ErrInsufficientCredit},
		{"state", &InvalidStateError{Op: "SelectProduct", Stage: StageCapturing}, ErrInvalidState},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("stage boundary: %w", tt.err)
			if !errors.Is(wrapped, tt.target) {
				t.Errorf("errors.Is(%v, %v) = false", wrapped, tt.target)
			}
		})
	}

	credit := &InsufficientCreditError{Required: Units(10), Balance: Units(9)}
	if credit.Shortfall() != Units(1) {
		t.Errorf("Shortfall() = %s, want 1.00", credit.Shortfall())
	}
}
