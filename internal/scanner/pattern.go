package scanner

import (
	"fmt"

	"github.com/k3a/html2text"
	"golang.org/x/text/unicode/norm"

	"github.com/armourmail/armourmail/internal/allowlist"
	"github.com/armourmail/armourmail/internal/core"
)

// PatternScanner is the fast heuristic layer: a fixed rule set over
// subject, text body and the HTML body stripped to text, plus URL,
// attachment and sender-spoofing checks. Stateless and deterministic.
type PatternScanner struct {
	allow *allowlist.Checker
}

// NewPatternScanner creates the pattern layer. The allowlist checker
// supplies the known-brand table for the spoofed sender rule; it may
// be nil, which disables that rule.
func NewPatternScanner(allow *allowlist.Checker) *PatternScanner {
	return &PatternScanner{allow: allow}
}

func (s *PatternScanner) Name() string { return "pattern" }

// Detect runs every rule over every text view. Flags come out in rule
// registration order, then URL findings, attachment findings and the
// spoofing check, so results are reproducible.
func (s *PatternScanner) Detect(email *core.CanonicalEmail) []core.ScanFlag {
	views := []struct {
		label string
		text  string
	}{
		{"subject", normalize(email.Subject)},
		{"body", normalize(email.TextBody)},
		{"html", normalize(html2text.HTML2Text(email.HTMLBody))},
	}

	var flags []core.ScanFlag
	for _, r := range textRules {
		for _, v := range views {
			if v.text == "" {
				continue
			}
			match := r.re.FindString(v.text)
			if match == "" {
				continue
			}
			flags = append(flags, core.ScanFlag{
				Kind:     r.kind,
				Severity: r.severity,
				Detail:   r.detail,
				Evidence: fmt.Sprintf("%s: %s", v.label, clip(match)),
				Detector: s.Name(),
			})
			break // one flag per rule, first matching view
		}
	}

	for _, u := range extractURLs(views[0].text, views[1].text, email.HTMLBody) {
		reason, suspicious := suspicionReason(hostOf(u))
		if !suspicious {
			continue
		}
		flags = append(flags, core.ScanFlag{
			Kind:     core.FlagSuspiciousURL,
			Severity: core.SeverityMedium,
			Detail:   reason,
			Evidence: clip(u),
			Detector: s.Name(),
		})
	}

	for _, a := range email.Attachments {
		desc, bad := maliciousContentTypes[a.ContentType]
		if !bad {
			continue
		}
		flags = append(flags, core.ScanFlag{
			Kind:     core.FlagMaliciousAttachment,
			Severity: core.SeverityCritical,
			Detail:   desc,
			Evidence: fmt.Sprintf("%s (%s)", a.Filename, a.ContentType),
			Detector: s.Name(),
		})
	}

	// The spoofing rule only fires when authentication does not fully
	// pass; a fully authenticated sender legitimately owns its domain.
	if s.allow != nil && !email.Auth.AllPass() {
		if brand, spoofed := s.allow.ImpersonatedBrand(email.SenderName, email.Sender); spoofed {
			flags = append(flags, core.ScanFlag{
				Kind:     core.FlagSpoofedSender,
				Severity: core.SeverityHigh,
				Detail:   fmt.Sprintf("display name claims %q but sender domain is unrelated", brand),
				Evidence: fmt.Sprintf("%s <%s>", email.SenderName, email.Sender),
				Detector: s.Name(),
			})
		}
	}

	return flags
}

// normalize applies NFKC so fullwidth and compatibility characters
// cannot dodge the rule set.
func normalize(s string) string {
	return norm.NFKC.String(s)
}
