// Package router dispatches completed scan results to the clean path
// or the quarantine path and emits the corresponding lifecycle events.
package router

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/armourmail/armourmail/internal/core"
	"github.com/armourmail/armourmail/internal/quarantine"
)

// Router routes exactly once per email id: the quarantine item id is
// derived from the email id, so a second route of the same email finds
// the existing item instead of creating a duplicate.
type Router struct {
	clean      chan<- *core.CanonicalEmail
	quarantine *quarantine.Manager
	events     core.EventSink
	logger     *zap.Logger
}

// NewRouter creates a router delivering clean emails to the given
// channel.
func NewRouter(clean chan<- *core.CanonicalEmail, q *quarantine.Manager, events core.EventSink, logger *zap.Logger) *Router {
	return &Router{clean: clean, quarantine: q, events: events, logger: logger}
}

// Route hands a clean email to the clean output channel, or creates
// the pending quarantine item for anything suspicious or malicious.
// The returned item is nil for the clean path.
func (r *Router) Route(ctx context.Context, email *core.CanonicalEmail, result *core.ScanResult) (*core.QuarantineItem, error) {
	if email.ID != result.EmailID {
		return nil, fmt.Errorf("scan result for email %s routed with email %s", result.EmailID, email.ID)
	}

	if result.Verdict == core.VerdictClean {
		select {
		case r.clean <- email:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		r.emit(ctx, core.EventEmailClean, result)
		r.logger.Debug("Email routed clean", zap.String("email_id", email.ID.String()))
		return nil, nil
	}

	item, created, err := r.quarantine.Quarantine(ctx, email)
	if err != nil {
		return nil, err
	}
	// A re-route of an already quarantined email reuses the item and
	// must not re-announce it.
	if created {
		r.emit(ctx, core.EventEmailQuarantined, result)
	}
	return item, nil
}

func (r *Router) emit(ctx context.Context, name string, result *core.ScanResult) {
	if r.events == nil {
		return
	}
	r.events.Emit(ctx, core.Event{Name: name, EntityID: result.EmailID, At: result.CompletedAt})
}
