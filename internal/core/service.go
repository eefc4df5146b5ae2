package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/k3a/html2text"
	"go.uber.org/zap"
)

// SenderAllowlist answers whether a sender is trusted enough to skip
// the semantic classifier. Deterministic detectors always run.
type SenderAllowlist interface {
	IsTrusted(sender string) bool
}

// Sanitizer is an optional capability of a detector: producing a
// cleaned text rendering of the email with hidden content stripped.
type Sanitizer interface {
	Sanitize(email *CanonicalEmail) string
}

// ScanService runs the decision pipeline for one email: detectors in
// parallel, conditional semantic classification, risk aggregation and
// persistence. It enforces at most one in-flight scan per email id;
// concurrent duplicates coalesce onto the first scan's result.
type ScanService struct {
	detectors  []Detector
	aggregator *Aggregator
	classifier Classifier
	allowlist  SenderAllowlist
	store      Store
	logger     *zap.Logger

	classifierThreshold float64
	classifierTimeout   time.Duration

	mu       sync.Mutex
	inflight map[uuid.UUID]*inflightScan
}

type inflightScan struct {
	done   chan struct{}
	result *ScanResult
	err    error
}

// NewScanService creates the scan pipeline. Detectors run in the order
// given; their flags keep that order in the result.
func NewScanService(
	detectors []Detector,
	aggregator *Aggregator,
	classifier Classifier,
	allowlist SenderAllowlist,
	store Store,
	logger *zap.Logger,
	classifierThreshold float64,
	classifierTimeout time.Duration,
) *ScanService {
	return &ScanService{
		detectors:           detectors,
		aggregator:          aggregator,
		classifier:          classifier,
		allowlist:           allowlist,
		store:               store,
		logger:              logger,
		classifierThreshold: classifierThreshold,
		classifierTimeout:   classifierTimeout,
		inflight:            make(map[uuid.UUID]*inflightScan),
	}
}

// Scan produces the single ScanResult for an email. A rescan of an
// already scanned id returns the stored result; a scan racing an
// in-flight scan of the same id blocks and returns that scan's result.
func (s *ScanService) Scan(ctx context.Context, email *CanonicalEmail) (*ScanResult, error) {
	if existing, err := s.store.GetScanResult(ctx, email.ID); err == nil {
		s.logger.Debug("Returning stored scan result",
			zap.String("email_id", email.ID.String()))
		return existing, nil
	}

	s.mu.Lock()
	if fl, ok := s.inflight[email.ID]; ok {
		s.mu.Unlock()
		select {
		case <-fl.done:
			return fl.result, fl.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	fl := &inflightScan{done: make(chan struct{})}
	s.inflight[email.ID] = fl
	s.mu.Unlock()

	result, err := s.scan(ctx, email)

	fl.result, fl.err = result, err
	s.mu.Lock()
	delete(s.inflight, email.ID)
	s.mu.Unlock()
	close(fl.done)

	return result, err
}

func (s *ScanService) scan(ctx context.Context, email *CanonicalEmail) (*ScanResult, error) {
	startedAt := time.Now()

	// Detectors are independent pure functions; run them concurrently
	// but keep flag order by detector registration.
	flagSets := make([][]ScanFlag, len(s.detectors))
	var wg sync.WaitGroup
	for i, d := range s.detectors {
		wg.Add(1)
		go func(i int, d Detector) {
			defer wg.Done()
			flagSets[i] = d.Detect(email)
		}(i, d)
	}
	wg.Wait()

	var flags []ScanFlag
	detectors := make([]string, 0, len(s.detectors)+1)
	var sanitized string
	for i, d := range s.detectors {
		flags = append(flags, flagSets[i]...)
		detectors = append(detectors, d.Name())
		if sn, ok := d.(Sanitizer); ok && sanitized == "" {
			sanitized = sn.Sanitize(email)
		}
	}

	// The classifier is invoked only above the trigger threshold, and
	// never for trusted senders. On timeout or unavailability the scan
	// proceeds without its signal (fail-open): quarantining everything
	// whenever the capability degrades would be worse than relying on
	// the deterministic layers alone.
	var cls *ClassifierResult
	partial := s.aggregator.Score(flags)
	if s.classifier != nil && partial >= s.classifierThreshold && !s.isTrusted(email.Sender) {
		cctx, cancel := context.WithTimeout(ctx, s.classifierTimeout)
		cr, err := s.classifier.Classify(cctx, classifierText(email, sanitized))
		cancel()
		if err != nil {
			s.logger.Warn("Semantic classifier unavailable, proceeding without it",
				zap.String("email_id", email.ID.String()),
				zap.Error(err))
		} else {
			cls = cr
			detectors = append(detectors, "semantic")
			if cr.InjectionDetected {
				flags = append(flags, ScanFlag{
					Kind:     FlagSemanticInjection,
					Severity: SeverityHigh,
					Detail:   cr.Summary,
					Detector: "semantic",
				})
			}
		}
	}

	score, level, verdict := s.aggregator.Evaluate(flags)
	result := &ScanResult{
		EmailID:       email.ID,
		Flags:         flags,
		Detectors:     detectors,
		Score:         score,
		Level:         level,
		Verdict:       verdict,
		Classifier:    cls,
		SanitizedText: sanitized,
		StartedAt:     startedAt,
		CompletedAt:   time.Now(),
	}

	if err := s.store.SaveScanResult(ctx, result); err != nil {
		return nil, fmt.Errorf("failed to save scan result: %w", err)
	}

	s.logger.Info("Email scanned",
		zap.String("email_id", email.ID.String()),
		zap.String("verdict", string(verdict)),
		zap.Float64("score", score),
		zap.Int("flags", len(flags)))

	return result, nil
}

func (s *ScanService) isTrusted(sender string) bool {
	return s.allowlist != nil && s.allowlist.IsTrusted(sender)
}

// classifierText builds the text handed to the semantic classifier.
// HTML-only messages fall back to the sanitized rendering, then to a
// plain flattening of the HTML body, so the classifier always sees
// the content the detectors fired on.
func classifierText(email *CanonicalEmail, sanitized string) string {
	body := email.TextBody
	if body == "" {
		body = sanitized
	}
	if body == "" && email.HTMLBody != "" {
		body = html2text.HTML2Text(email.HTMLBody)
	}

	var b strings.Builder
	b.WriteString("Subject: ")
	b.WriteString(email.Subject)
	b.WriteString("\n\n")
	b.WriteString(body)
	return b.String()
}
