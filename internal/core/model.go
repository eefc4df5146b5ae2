package core

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// AuthState is the outcome of a single sender-authentication check.
type AuthState string

const (
	AuthPass     AuthState = "pass"
	AuthFail     AuthState = "fail"
	AuthSoftfail AuthState = "softfail"
	AuthNeutral  AuthState = "neutral"
	AuthNone     AuthState = "none"
)

// ParseAuthState normalizes an authentication result string, defaulting
// to AuthNone for anything unrecognized.
func ParseAuthState(s string) AuthState {
	switch AuthState(strings.ToLower(strings.TrimSpace(s))) {
	case AuthPass:
		return AuthPass
	case AuthFail:
		return AuthFail
	case AuthSoftfail:
		return AuthSoftfail
	case AuthNeutral:
		return AuthNeutral
	default:
		return AuthNone
	}
}

// AuthResults holds the SPF/DKIM/DMARC outcomes reported by the
// upstream transport.
type AuthResults struct {
	SPF   AuthState
	DKIM  AuthState
	DMARC AuthState
}

// AllPass reports whether every authentication mechanism passed.
func (a AuthResults) AllPass() bool {
	return a.SPF == AuthPass && a.DKIM == AuthPass && a.DMARC == AuthPass
}

// Attachment is an opaque reference to attachment content held in
// external object storage. Only metadata travels through the pipeline.
type Attachment struct {
	ID          string
	Filename    string
	ContentType string
	Size        int64
}

// CanonicalEmail is the normalized, immutable representation of an
// inbound message. The ID is assigned exactly once at parse time and
// never mutated.
type CanonicalEmail struct {
	ID          uuid.UUID
	Sender      string
	SenderName  string
	Recipients  []string
	Subject     string
	TextBody    string
	HTMLBody    string
	Headers     map[string][]string
	Auth        AuthResults
	ReceivedAt  time.Time
	Attachments []Attachment
}

// SenderDomain returns the lowercased domain part of the sender
// address, or "" when the address has no domain.
func (e *CanonicalEmail) SenderDomain() string {
	at := strings.LastIndex(e.Sender, "@")
	if at < 0 || at == len(e.Sender)-1 {
		return ""
	}
	return strings.ToLower(e.Sender[at+1:])
}

// Severity classifies how strong a single detector finding is.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// FlagKind enumerates the finding categories detectors may produce.
type FlagKind string

const (
	FlagInstructionOverride FlagKind = "instruction_override"
	FlagDataExfilAttempt    FlagKind = "data_exfil_attempt"
	FlagUrgencyManipulation FlagKind = "urgency_manipulation"
	FlagSuspiciousURL       FlagKind = "suspicious_url"
	FlagMaliciousAttachment FlagKind = "malicious_attachment"
	FlagSpoofedSender       FlagKind = "spoofed_sender"
	FlagHiddenText          FlagKind = "hidden_text"
	FlagHomographAttack     FlagKind = "homograph_attack"
	FlagSemanticInjection   FlagKind = "semantic_injection"
)

// ScanFlag is a single detector finding. Flags are append-only within
// one scan; their order is detector registration order, then rule
// evaluation order within a detector.
type ScanFlag struct {
	Kind     FlagKind
	Severity Severity
	Detail   string
	Evidence string
	Detector string
}

// Verdict is the coarse classification derived from the risk score.
type Verdict string

const (
	VerdictClean      Verdict = "clean"
	VerdictSuspicious Verdict = "suspicious"
	VerdictMalicious  Verdict = "malicious"
)

// RiskLevel mirrors the verdict tiers with an extra critical tier.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// ClassifierResult is the judgment returned by the semantic classifier
// capability.
type ClassifierResult struct {
	InjectionDetected      bool    `json:"injection_detected"`
	SocialEngineeringScore float64 `json:"social_engineering_score"`
	Summary                string  `json:"summary"`
	Model                  string  `json:"model,omitempty"`
}

// ScanResult is the single, complete outcome of scanning one email.
// It is created once by the risk aggregation step and never altered
// after completion.
type ScanResult struct {
	EmailID       uuid.UUID
	Flags         []ScanFlag
	Detectors     []string
	Score         float64
	Level         RiskLevel
	Verdict       Verdict
	Classifier    *ClassifierResult
	SanitizedText string
	StartedAt     time.Time
	CompletedAt   time.Time
}

// QuarantineStatus is the lifecycle state of a held message. Pending
// is the only state with outgoing transitions.
type QuarantineStatus string

const (
	StatusPending  QuarantineStatus = "pending"
	StatusApproved QuarantineStatus = "approved"
	StatusRejected QuarantineStatus = "rejected"
	StatusExpired  QuarantineStatus = "expired"
)

// Terminal reports whether the status admits no further transitions.
func (s QuarantineStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusExpired
}

// QuarantineAction records a side action taken while resolving an item.
type QuarantineAction string

const (
	ActionSenderBlocked     QuarantineAction = "sender_blocked"
	ActionSenderAllowlisted QuarantineAction = "sender_allowlisted"
	ActionSpamReported      QuarantineAction = "spam_reported"
	ActionReleased          QuarantineAction = "released"
	ActionDeleted           QuarantineAction = "deleted"
)

// Resolution records who moved an item out of pending and why.
type Resolution struct {
	Resolver   string
	Reason     string
	ResolvedAt time.Time
}

// QuarantineItem is the held state of a message awaiting human
// resolution. Exactly one item exists per quarantined email.
type QuarantineItem struct {
	ID         uuid.UUID
	EmailID    uuid.UUID
	Status     QuarantineStatus
	Resolution *Resolution
	Actions    []QuarantineAction
	ExpiresAt  time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Lifecycle event names emitted to the event sink.
const (
	EventEmailClean         = "email.clean"
	EventEmailQuarantined   = "email.quarantined"
	EventQuarantineApproved = "quarantine.approved"
	EventQuarantineRejected = "quarantine.rejected"
	EventQuarantineExpired  = "quarantine.expired"
)

// Event is a lifecycle notification carrying the affected entity id.
type Event struct {
	Name     string
	EntityID uuid.UUID
	At       time.Time
}
