// Package quarantine owns the lifecycle of held messages: pending
// items, their resolution by a reviewer, and automatic expiry. All
// QuarantineItem mutation goes through the Manager.
package quarantine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/armourmail/armourmail/internal/core"
)

// ApproveOptions carries the optional side actions of an approval.
// AllowlistSender, when non-empty, is the sender address to trust
// going forward.
type ApproveOptions struct {
	AllowlistSender string
}

// RejectOptions carries the optional side actions of a rejection.
type RejectOptions struct {
	BlockSender bool
	ReportSpam  bool
}

// Allowlister receives senders a reviewer chose to trust on approval.
type Allowlister interface {
	Add(sender string)
}

// Manager enforces the quarantine transition table. Transitions are
// serialized per item id so a human resolution and the expiry sweep
// can never both win.
type Manager struct {
	store     core.Store
	events    core.EventSink
	allowlist Allowlister
	logger    *zap.Logger
	expiry    time.Duration

	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

// NewManager creates the quarantine manager. expiry is the offset from
// quarantine time at which unresolved items expire.
func NewManager(store core.Store, events core.EventSink, allowlist Allowlister, logger *zap.Logger, expiry time.Duration) *Manager {
	return &Manager{
		store:     store,
		events:    events,
		allowlist: allowlist,
		logger:    logger,
		expiry:    expiry,
		locks:     make(map[uuid.UUID]*sync.Mutex),
	}
}

// lockFor returns the per-item mutex, creating it on first use. A map
// of mutexes rather than one global lock keeps cross-item operations
// parallel.
func (m *Manager) lockFor(id uuid.UUID) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[id]
	if !ok {
		l = &sync.Mutex{}
		m.locks[id] = l
	}
	return l
}

// releaseLock drops the per-item mutex once the item is terminal, so
// the map does not grow for the lifetime of the daemon. A terminal
// item admits no further transitions, only no-op reads.
func (m *Manager) releaseLock(id uuid.UUID) {
	m.mu.Lock()
	delete(m.locks, id)
	m.mu.Unlock()
}

// Quarantine creates the pending item for an email that did not pass
// cleanly. The item id derives from the email id, so a repeated call
// for the same email finds the existing item instead of creating a
// second one. The bool result reports whether this call created the
// item.
func (m *Manager) Quarantine(ctx context.Context, email *core.CanonicalEmail) (*core.QuarantineItem, bool, error) {
	id := ItemID(email.ID)
	now := time.Now()
	item := &core.QuarantineItem{
		ID:        id,
		EmailID:   email.ID,
		Status:    core.StatusPending,
		ExpiresAt: now.Add(m.expiry),
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := m.store.SaveQuarantineItem(ctx, item)
	if err == core.ErrAlreadyExists {
		existing, err := m.store.GetQuarantineItem(ctx, id)
		return existing, false, err
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to create quarantine item: %w", err)
	}

	m.logger.Info("Email quarantined",
		zap.String("item_id", id.String()),
		zap.String("email_id", email.ID.String()),
		zap.Time("expires_at", item.ExpiresAt))
	return item, true, nil
}

// Approve resolves a pending item as safe. Approving an already
// approved item is a no-op returning the original resolution; any
// other terminal state fails with ErrInvalidTransition.
func (m *Manager) Approve(ctx context.Context, itemID uuid.UUID, resolver, reason string, opts ApproveOptions) (*core.QuarantineItem, error) {
	actions := []core.QuarantineAction{core.ActionReleased}
	if opts.AllowlistSender != "" {
		actions = append(actions, core.ActionSenderAllowlisted)
	}

	item, err := m.transition(ctx, itemID, core.StatusApproved, resolver, reason, actions)
	if err != nil {
		return nil, err
	}

	if opts.AllowlistSender != "" && m.allowlist != nil {
		m.allowlist.Add(opts.AllowlistSender)
	}
	return item, nil
}

// Reject resolves a pending item as hostile, optionally recording
// sender blocking and spam reporting. Idempotent like Approve.
func (m *Manager) Reject(ctx context.Context, itemID uuid.UUID, resolver, reason string, opts RejectOptions) (*core.QuarantineItem, error) {
	actions := []core.QuarantineAction{core.ActionDeleted}
	if opts.BlockSender {
		actions = append(actions, core.ActionSenderBlocked)
	}
	if opts.ReportSpam {
		actions = append(actions, core.ActionSpamReported)
	}
	return m.transition(ctx, itemID, core.StatusRejected, resolver, reason, actions)
}

// transition is the single mutation entry point enforcing the table:
// pending is the only state with outgoing edges, terminal states only
// accept a repeat of themselves (as a no-op).
func (m *Manager) transition(ctx context.Context, itemID uuid.UUID, target core.QuarantineStatus, resolver, reason string, actions []core.QuarantineAction) (*core.QuarantineItem, error) {
	lock := m.lockFor(itemID)
	lock.Lock()
	defer lock.Unlock()

	item, err := m.store.GetQuarantineItem(ctx, itemID)
	if err != nil {
		return nil, err
	}

	switch item.Status {
	case core.StatusPending:
		now := time.Now()
		item.Status = target
		item.Resolution = &core.Resolution{Resolver: resolver, Reason: reason, ResolvedAt: now}
		item.Actions = append(item.Actions, actions...)
		item.UpdatedAt = now
		if err := m.store.UpdateQuarantineItem(ctx, item); err != nil {
			return nil, fmt.Errorf("failed to update quarantine item: %w", err)
		}
		m.emit(ctx, target, item)
		m.logger.Info("Quarantine item resolved",
			zap.String("item_id", itemID.String()),
			zap.String("status", string(target)),
			zap.String("resolver", resolver))
		m.releaseLock(itemID)
		return item, nil
	case target:
		// Retried resolution toward the same state: return the
		// original outcome unchanged.
		m.releaseLock(itemID)
		return item, nil
	default:
		m.releaseLock(itemID)
		return nil, fmt.Errorf("%w: %s item cannot become %s",
			core.ErrInvalidTransition, item.Status, target)
	}
}

// SweepExpired transitions every pending item whose deadline has
// passed to expired. The pending check is re-done under the item lock
// so a concurrent approval always produces exactly one winner.
func (m *Manager) SweepExpired(ctx context.Context, now time.Time) ([]*core.QuarantineItem, error) {
	pending, err := m.store.ListPendingBefore(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending items: %w", err)
	}

	var expired []*core.QuarantineItem
	for _, candidate := range pending {
		lock := m.lockFor(candidate.ID)
		lock.Lock()

		item, err := m.store.GetQuarantineItem(ctx, candidate.ID)
		if err != nil {
			lock.Unlock()
			m.logger.Warn("Sweep could not reload item",
				zap.String("item_id", candidate.ID.String()), zap.Error(err))
			continue
		}
		if item.Status != core.StatusPending || now.Before(item.ExpiresAt) {
			lock.Unlock()
			continue
		}

		item.Status = core.StatusExpired
		item.UpdatedAt = now
		err = m.store.UpdateQuarantineItem(ctx, item)
		lock.Unlock()
		if err != nil {
			m.logger.Error("Sweep failed to expire item",
				zap.String("item_id", item.ID.String()), zap.Error(err))
			continue
		}
		m.releaseLock(item.ID)

		m.emit(ctx, core.StatusExpired, item)
		expired = append(expired, item)
	}

	if len(expired) > 0 {
		m.logger.Info("Expired quarantine items", zap.Int("count", len(expired)))
	}
	return expired, nil
}

func (m *Manager) emit(ctx context.Context, status core.QuarantineStatus, item *core.QuarantineItem) {
	if m.events == nil {
		return
	}
	var name string
	switch status {
	case core.StatusApproved:
		name = core.EventQuarantineApproved
	case core.StatusRejected:
		name = core.EventQuarantineRejected
	case core.StatusExpired:
		name = core.EventQuarantineExpired
	default:
		return
	}
	m.events.Emit(ctx, core.Event{Name: name, EntityID: item.ID, At: item.UpdatedAt})
}

// ItemID derives the quarantine item id from the email id. The
// one-to-one mapping is what makes duplicate quarantining impossible.
func ItemID(emailID uuid.UUID) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("armourmail:quarantine:"+emailID.String()))
}
