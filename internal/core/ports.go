package core

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Detector is a single scanning layer over a canonical email. Detectors
// are pure functions of their input: no I/O, deterministic output.
// New detectors are additive; the scan service runs every registered
// detector and preserves registration order in the flag list.
type Detector interface {
	// Name identifies the detector in ScanResult.Detectors and on the
	// flags it produces.
	Name() string

	// Detect returns the findings for one email, in fixed rule order.
	Detect(email *CanonicalEmail) []ScanFlag
}

// Classifier is the semantic classification capability. It is the only
// pipeline step allowed to suspend on an external service and must
// honor the context deadline.
type Classifier interface {
	Classify(ctx context.Context, text string) (*ClassifierResult, error)
}

// Store persists scan results and quarantine items. Writes are
// all-or-nothing per entity.
type Store interface {
	SaveScanResult(ctx context.Context, result *ScanResult) error
	GetScanResult(ctx context.Context, emailID uuid.UUID) (*ScanResult, error)

	// SaveQuarantineItem creates an item; it returns ErrAlreadyExists
	// when an item with the same id was already created.
	SaveQuarantineItem(ctx context.Context, item *QuarantineItem) error
	GetQuarantineItem(ctx context.Context, id uuid.UUID) (*QuarantineItem, error)
	UpdateQuarantineItem(ctx context.Context, item *QuarantineItem) error

	// ListPendingBefore returns pending items whose expiry deadline is
	// at or before the given time. Used by the expiry sweep.
	ListPendingBefore(ctx context.Context, deadline time.Time) ([]*QuarantineItem, error)
}

// EventSink receives lifecycle events for external collaborators.
type EventSink interface {
	Emit(ctx context.Context, ev Event)
}
