// Package allowlist tracks trusted sender domains and the known-brand
// table consulted by the sender spoofing rule.
package allowlist

import (
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Brand associates a display name the sender may claim with the
// domains legitimately allowed to claim it.
type Brand struct {
	Name    string
	Domains []string
}

// Checker answers trust and brand-impersonation questions about
// senders. Domains may be added at runtime when a reviewer approves a
// quarantined item with the allowlist option.
type Checker struct {
	mu      sync.RWMutex
	domains map[string]struct{}
	brands  []Brand
	logger  *zap.Logger
}

// NewChecker creates a checker from configured trusted domains and the
// known-brand table. Domains are normalized to lowercase.
func NewChecker(domains []string, brands map[string][]string, logger *zap.Logger) *Checker {
	c := &Checker{
		domains: make(map[string]struct{}, len(domains)),
		logger:  logger,
	}
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			c.domains[d] = struct{}{}
		}
	}
	for name, brandDomains := range brands {
		normalized := make([]string, 0, len(brandDomains))
		for _, d := range brandDomains {
			normalized = append(normalized, strings.ToLower(strings.TrimSpace(d)))
		}
		c.brands = append(c.brands, Brand{Name: strings.ToLower(name), Domains: normalized})
	}
	if logger != nil && len(c.domains) > 0 {
		logger.Info("Initialized sender allowlist", zap.Int("domains", len(c.domains)))
	}
	return c
}

// IsTrusted reports whether the sender's domain is allowlisted.
func (c *Checker) IsTrusted(sender string) bool {
	domain := domainOf(sender)
	if domain == "" {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.domains[domain]
	return ok
}

// Add allowlists the sender's domain at runtime.
func (c *Checker) Add(sender string) {
	domain := domainOf(sender)
	if domain == "" {
		return
	}
	c.mu.Lock()
	c.domains[domain] = struct{}{}
	c.mu.Unlock()
	if c.logger != nil {
		c.logger.Info("Sender domain allowlisted", zap.String("domain", domain))
	}
}

// ImpersonatedBrand returns the brand a display name claims when the
// sender's domain is not among that brand's legitimate domains.
// The bool result is false when no brand is claimed or the claim is
// legitimate.
func (c *Checker) ImpersonatedBrand(displayName, sender string) (string, bool) {
	name := strings.ToLower(displayName)
	if name == "" {
		return "", false
	}
	domain := domainOf(sender)
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, b := range c.brands {
		if !strings.Contains(name, b.Name) {
			continue
		}
		legitimate := false
		for _, d := range b.Domains {
			if domain == d || strings.HasSuffix(domain, "."+d) {
				legitimate = true
				break
			}
		}
		if !legitimate {
			return b.Name, true
		}
	}
	return "", false
}

func domainOf(sender string) string {
	at := strings.LastIndex(sender, "@")
	if at < 0 || at == len(sender)-1 {
		return ""
	}
	return strings.ToLower(sender[at+1:])
}
