package scanner

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/k3a/html2text"

	"github.com/armourmail/armourmail/internal/core"
)

var (
	// Invisible and zero-width code points used to smuggle text past a
	// human reader.
	zeroWidthRe = regexp.MustCompile(`[\x{200B}\x{200C}\x{200D}\x{2060}\x{2061}\x{2062}\x{2063}\x{2064}\x{FEFF}\x{00AD}\x{034F}\x{180E}]+`)

	// HTML elements styled to be invisible: zero/near-zero font size,
	// display/visibility hiding, zero opacity, white-on-white text.
	hiddenRegionRe = regexp.MustCompile(`(?is)<([a-z][a-z0-9]*)[^>]*style\s*=\s*["'][^"']*(display\s*:\s*none|visibility\s*:\s*hidden|font-size\s*:\s*0[^1-9]|opacity\s*:\s*0(\.0+)?\s*[;"']|color\s*:\s*(#fff\b|#ffffff\b|white\b))[^"']*["'][^>]*>(?P<inner>.*?)</`)

	commentRe = regexp.MustCompile(`(?s)<!--(.*?)-->`)
	tagRe     = regexp.MustCompile(`(?s)<[^>]*>`)
	spaceRe   = regexp.MustCompile(`\s+`)

	base64Re  = regexp.MustCompile(`[A-Za-z0-9+/]{24,}={0,2}`)
	percentRe = regexp.MustCompile(`(?:%[0-9A-Fa-f]{2}){8,}`)
)

// StructuralAnalyzer detects techniques that hide text from a human
// reader but not from a machine parser of the HTML body. Stateless,
// no network calls, deterministic for a given input.
type StructuralAnalyzer struct{}

func NewStructuralAnalyzer() *StructuralAnalyzer { return &StructuralAnalyzer{} }

func (s *StructuralAnalyzer) Name() string { return "structural" }

// Detect reports hidden-text and homograph findings in a fixed check
// order: zero-width characters, hidden-styled regions, HTML comments,
// encoded payloads, then mixed-script hostnames.
func (s *StructuralAnalyzer) Detect(email *core.CanonicalEmail) []core.ScanFlag {
	var flags []core.ScanFlag
	combined := email.TextBody + "\n" + email.HTMLBody

	if n := len(zeroWidthRe.FindAllString(combined, -1)); n > 0 {
		flags = append(flags, core.ScanFlag{
			Kind:     core.FlagHiddenText,
			Severity: core.SeverityHigh,
			Detail:   "zero-width or invisible characters in message text",
			Evidence: fmt.Sprintf("%d invisible character runs", n),
			Detector: s.Name(),
		})
	}

	innerIdx := hiddenRegionRe.SubexpIndex("inner")
	for _, m := range hiddenRegionRe.FindAllStringSubmatch(email.HTMLBody, -1) {
		inner := strings.TrimSpace(tagRe.ReplaceAllString(m[innerIdx], " "))
		if !looksLikeSentence(inner) {
			continue
		}
		flags = append(flags, core.ScanFlag{
			Kind:     core.FlagHiddenText,
			Severity: core.SeverityHigh,
			Detail:   "text hidden by CSS styling",
			Evidence: clip(inner),
			Detector: s.Name(),
		})
	}

	for _, m := range commentRe.FindAllStringSubmatch(email.HTMLBody, -1) {
		if rule, hit := matchInjection(m[1]); hit {
			flags = append(flags, core.ScanFlag{
				Kind:     core.FlagHiddenText,
				Severity: core.SeverityHigh,
				Detail:   fmt.Sprintf("HTML comment carries instructions (%s)", rule),
				Evidence: clip(strings.TrimSpace(m[1])),
				Detector: s.Name(),
			})
		}
	}

	flags = append(flags, s.encodedPayloads(combined)...)

	for _, u := range extractURLs(email.TextBody, email.HTMLBody) {
		if mixedScriptHost(hostOf(u)) {
			flags = append(flags, core.ScanFlag{
				Kind:     core.FlagHomographAttack,
				Severity: core.SeverityMedium,
				Detail:   "mixed-script hostname",
				Evidence: clip(u),
				Detector: s.Name(),
			})
		}
	}

	return flags
}

// encodedPayloads decodes Base64 and percent-encoded blocks and flags
// any that reveal natural language, carrying the decoded text as
// evidence.
func (s *StructuralAnalyzer) encodedPayloads(text string) []core.ScanFlag {
	var flags []core.ScanFlag

	for _, block := range base64Re.FindAllString(text, -1) {
		decoded, err := base64.StdEncoding.DecodeString(pad(block))
		if err != nil {
			continue
		}
		if plain := string(decoded); looksLikeSentence(plain) {
			flags = append(flags, core.ScanFlag{
				Kind:     core.FlagHiddenText,
				Severity: core.SeverityHigh,
				Detail:   "Base64 block decodes to natural language",
				Evidence: clip(plain),
				Detector: s.Name(),
			})
		}
	}

	for _, block := range percentRe.FindAllString(text, -1) {
		decoded, err := url.PathUnescape(block)
		if err != nil {
			continue
		}
		if looksLikeSentence(decoded) {
			flags = append(flags, core.ScanFlag{
				Kind:     core.FlagHiddenText,
				Severity: core.SeverityHigh,
				Detail:   "percent-encoded block decodes to natural language",
				Evidence: clip(decoded),
				Detector: s.Name(),
			})
		}
	}

	return flags
}

// Sanitize renders the message with hidden content stripped: comments
// removed, HTML flattened to text, invisible characters dropped and
// whitespace collapsed.
func (s *StructuralAnalyzer) Sanitize(email *core.CanonicalEmail) string {
	text := email.TextBody
	if email.HTMLBody != "" {
		stripped := commentRe.ReplaceAllString(email.HTMLBody, " ")
		if flat := strings.TrimSpace(html2text.HTML2Text(stripped)); flat != "" {
			if text == "" {
				text = flat
			} else {
				text = text + "\n" + flat
			}
		}
	}
	text = zeroWidthRe.ReplaceAllString(text, "")
	return strings.TrimSpace(spaceRe.ReplaceAllString(text, " "))
}

// looksLikeSentence is the naturalness test for revealed text: enough
// letters and word breaks, mostly printable.
func looksLikeSentence(s string) bool {
	if !utf8.ValidString(s) {
		return false
	}
	var letters, spaces, printable, total int
	for _, r := range s {
		total++
		if unicode.IsLetter(r) {
			letters++
		}
		if r == ' ' || r == '\n' || r == '\t' {
			spaces++
		}
		if unicode.IsPrint(r) || unicode.IsSpace(r) {
			printable++
		}
	}
	if total == 0 {
		return false
	}
	return letters >= 10 && spaces >= 2 && printable*100/total >= 85
}

// pad restores stripped Base64 padding so odd-length matches decode.
func pad(s string) string {
	if n := len(s) % 4; n != 0 {
		return s + strings.Repeat("=", 4-n)
	}
	return s
}
