package scanner

import (
	"net"
	"net/url"
	"regexp"
	"strings"
	"unicode"
)

var urlRe = regexp.MustCompile(`https?://[^\s<>"'\)\]]+`)

// extractURLs pulls http(s) URLs out of the given texts, deduplicated
// in first-seen order so repeated links flag once.
func extractURLs(texts ...string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, t := range texts {
		for _, u := range urlRe.FindAllString(t, -1) {
			u = strings.TrimRight(u, ".,;:!?")
			if _, ok := seen[u]; ok {
				continue
			}
			seen[u] = struct{}{}
			out = append(out, u)
		}
	}
	return out
}

func hostOf(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return parsed.Hostname()
}

// suspicionReason applies the newly-registered-looking URL heuristics:
// IP-literal hosts, excessive subdomain depth and punycode labels.
func suspicionReason(host string) (string, bool) {
	if host == "" {
		return "", false
	}
	if net.ParseIP(host) != nil {
		return "IP-literal host", true
	}
	labels := strings.Split(host, ".")
	if len(labels) >= 5 {
		return "excessive subdomain depth", true
	}
	for _, label := range labels {
		if strings.HasPrefix(strings.ToLower(label), "xn--") {
			return "punycode hostname", true
		}
	}
	return "", false
}

// mixedScriptHost reports whether a hostname mixes Latin letters with
// Cyrillic or Greek lookalikes, the classic homograph construction.
func mixedScriptHost(host string) bool {
	var latin, confusable bool
	for _, r := range host {
		switch {
		case unicode.Is(unicode.Latin, r):
			latin = true
		case unicode.Is(unicode.Cyrillic, r), unicode.Is(unicode.Greek, r):
			confusable = true
		}
	}
	return latin && confusable
}
