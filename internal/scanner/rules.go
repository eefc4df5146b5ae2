// Package scanner implements the deterministic detection layers: the
// pattern scanner over message text and metadata, and the structural
// analyzer for obfuscation and hidden-instruction techniques.
//
// All regex rules are compiled once at package init. Rule evaluation
// order is the registration order below and is fixed: flag order in a
// scan is reproducible for identical input.
package scanner

import (
	"regexp"
	"unicode/utf8"

	"github.com/armourmail/armourmail/internal/core"
)

// textRule is one compiled pattern rule with its resulting flag shape.
type textRule struct {
	name     string
	kind     core.FlagKind
	severity core.Severity
	re       *regexp.Regexp
	detail   string
}

var textRules []textRule

func register(name string, kind core.FlagKind, severity core.Severity, pattern, detail string) {
	textRules = append(textRules, textRule{
		name:     name,
		kind:     kind,
		severity: severity,
		re:       regexp.MustCompile(pattern),
		detail:   detail,
	})
}

func init() {
	// Instruction override. High severity: these phrases exist to
	// redirect an agent reading the mail, not to inform a human.
	register("ignore_previous", core.FlagInstructionOverride, core.SeverityHigh,
		`(?i)\b(ignore|forget|disregard|override)\s+(all\s+)?(the\s+)?(previous|prior|above|earlier|preceding|your)\s+(instructions?|prompts?|rules?|guidelines?|context|directives?|training)`,
		"instruction override phrase")
	register("disregard_above", core.FlagInstructionOverride, core.SeverityHigh,
		`(?i)\b(ignore|disregard)\s+the\s+above\b`,
		"instruction override phrase")
	register("role_reassignment", core.FlagInstructionOverride, core.SeverityHigh,
		`(?i)\byou\s+are\s+now\s+(a|an|the|my)?\s*[a-z]`,
		"role reassignment phrase")
	register("act_as", core.FlagInstructionOverride, core.SeverityHigh,
		`(?i)\b(act|behave)\s+as\s+(if\s+you\s+were\s+)?(a|an|the|my)\s`,
		"role reassignment phrase")
	register("new_instructions", core.FlagInstructionOverride, core.SeverityHigh,
		`(?i)\b(new|updated|revised|real|actual|true)\s+(instructions?|system\s+prompt|task|purpose)\s*(:|\bare\b|\bis\b)`,
		"injected replacement instructions")
	register("system_prompt", core.FlagInstructionOverride, core.SeverityHigh,
		`(?i)(\bsystem\s*(prompt|message|instruction)s?\s*:|\[\s*(system|sys|admin|root)\s*\]|<\s*(system|sys|admin|root)\s*>)`,
		"system prompt marker")
	register("special_token", core.FlagInstructionOverride, core.SeverityHigh,
		`(?i)(<\|(im_start|im_end|endoftext|system|user|assistant)\|>|\[/?(INST|SYS)\])`,
		"model control token")

	// Data exfiltration intent.
	register("forward_all", core.FlagDataExfilAttempt, core.SeverityHigh,
		`(?i)\bforward\s+(all|every|any)\s+(of\s+)?(your\s+|the\s+)?(emails?|messages?|mail|correspondence|conversations?)\s+to\b`,
		"mail forwarding instruction")
	register("send_contents", core.FlagDataExfilAttempt, core.SeverityHigh,
		`(?i)\bsend\s+(me\s+)?(the\s+)?(contents?|a\s+copy|copies|full\s+text)\s+of\b`,
		"content extraction instruction")
	register("exfil_secrets", core.FlagDataExfilAttempt, core.SeverityHigh,
		`(?i)\b(send|share|reveal|export|paste|email)\s+(your\s+|the\s+|all\s+)?(passwords?|credentials?|api\s*keys?|secrets?|tokens?|private\s+keys?)\b`,
		"credential extraction instruction")

	// Urgency and pressure language.
	register("act_now", core.FlagUrgencyManipulation, core.SeverityMedium,
		`(?i)\bact\s+now\b`,
		"pressure language")
	register("verify_immediately", core.FlagUrgencyManipulation, core.SeverityMedium,
		`(?i)\b(verify|confirm|respond|update)\s+([a-z]+\s+){0,3}immediately\b`,
		"pressure language")
	register("account_threat", core.FlagUrgencyManipulation, core.SeverityMedium,
		`(?i)\b(account|access|service)\s+(will\s+be|has\s+been)\s+(suspended|closed|terminated|deactivated|locked)\b`,
		"account threat language")
	register("urgent_action", core.FlagUrgencyManipulation, core.SeverityMedium,
		`(?i)\b(urgent\s+action\s+required|final\s+(warning|notice)|within\s+24\s+hours)\b`,
		"pressure language")
}

// injectionRules are the rule indices used when deciding whether some
// revealed text (a decoded payload, a hidden region, an HTML comment)
// carries instructions rather than prose. Urgency phrasing alone does
// not count.
func matchInjection(text string) (string, bool) {
	for _, r := range textRules {
		if r.kind != core.FlagInstructionOverride && r.kind != core.FlagDataExfilAttempt {
			continue
		}
		if r.re.MatchString(text) {
			return r.name, true
		}
	}
	return "", false
}

// maliciousContentTypes are attachment content types that can carry
// executable code or macros. Any one of them is a critical finding.
var maliciousContentTypes = map[string]string{
	"application/x-msdownload":                      "Windows executable",
	"application/x-dosexec":                         "DOS/Windows executable",
	"application/x-executable":                      "executable binary",
	"application/x-msdos-program":                   "MS-DOS program",
	"application/vnd.microsoft.portable-executable": "portable executable",
	"application/x-elf":                             "ELF binary",
	"application/x-sh":                              "shell script",
	"application/x-bat":                             "batch script",
	"application/hta":                               "HTML application",
	"application/x-ms-shortcut":                     "Windows shortcut",
	"application/vnd.ms-word.document.macroenabled.12":       "macro-enabled Word document",
	"application/vnd.ms-word.template.macroenabled.12":       "macro-enabled Word template",
	"application/vnd.ms-excel.sheet.macroenabled.12":         "macro-enabled Excel sheet",
	"application/vnd.ms-excel.sheet.binary.macroenabled.12":  "macro-enabled Excel binary sheet",
	"application/vnd.ms-powerpoint.presentation.macroenabled.12": "macro-enabled PowerPoint presentation",
}

const evidenceLimit = 120

// clip truncates evidence snippets so flags stay log-sized, backing
// off to a rune boundary so the cut never produces invalid UTF-8.
func clip(s string) string {
	if len(s) <= evidenceLimit {
		return s
	}
	cut := s[:evidenceLimit]
	for len(cut) > 0 && !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	return cut + "..."
}
