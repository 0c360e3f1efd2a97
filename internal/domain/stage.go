package domain

// Stage is a named phase of the session workflow.
type Stage string

const (
	StageIdle              Stage = "IDLE"
	StageProductSelected   Stage = "PRODUCT_SELECTED"
	StageTemplateSelected  Stage = "TEMPLATE_SELECTED"
	StageCapturing         Stage = "CAPTURING"
	StageComposing         Stage = "COMPOSING"
	StagePreviewPending    Stage = "PREVIEW_PENDING"
	StageUpsellExtraCopies Stage = "UPSELL_EXTRA_COPIES"
	StageUpsellCrossSell   Stage = "UPSELL_CROSS_SELL"
	StageFinalizing        Stage = "FINALIZING"
	StageCompleted         Stage = "COMPLETED"
	StageAborted           Stage = "ABORTED"
)

// stageOrder is the canonical position of each stage in a session.
var stageOrder = map[Stage]int{
	StageIdle:              0,
	StageProductSelected:   1,
	StageTemplateSelected:  2,
	StageCapturing:         3,
	StageComposing:         4,
	StagePreviewPending:    5,
	StageUpsellExtraCopies: 6,
	StageUpsellCrossSell:   7,
	StageFinalizing:        8,
	StageCompleted:         9,
	StageAborted:           9,
}

// Order returns the canonical position of the stage, or -1 if unknown.
func (s Stage) Order() int {
	if o, ok := stageOrder[s]; ok {
		return o
	}
	return -1
}

// IsTerminal reports whether the session has ended.
func (s Stage) IsTerminal() bool {
	return s == StageCompleted || s == StageAborted
}

// IsLive reports whether a session exists and has not ended.
func (s Stage) IsLive() bool {
	return s != StageIdle && !s.IsTerminal()
}

// CaptureStarted reports whether product and template are locked.
func (s Stage) CaptureStarted() bool {
	return s.Order() >= StageCapturing.Order()
}

// String representation (for logging)
func (s Stage) String() string {
	return string(s)
}
