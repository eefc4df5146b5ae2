package router

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/armourmail/armourmail/internal/adapters/storage"
	"github.com/armourmail/armourmail/internal/core"
	"github.com/armourmail/armourmail/internal/quarantine"
)

type recordingSink struct {
	mu     sync.Mutex
	events []core.Event
}

func (s *recordingSink) Emit(_ context.Context, e core.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *recordingSink) names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Name)
	}
	return out
}

func newTestRouter(t *testing.T) (*Router, chan *core.CanonicalEmail, *recordingSink) {
	t.Helper()
	sink := &recordingSink{}
	store := storage.NewMemoryStore(zap.NewNop())
	manager := quarantine.NewManager(store, sink, nil, zap.NewNop(), 168*time.Hour)
	clean := make(chan *core.CanonicalEmail, 1)
	return NewRouter(clean, manager, sink, zap.NewNop()), clean, sink
}

func resultFor(email *core.CanonicalEmail, verdict core.Verdict) *core.ScanResult {
	return &core.ScanResult{
		EmailID:     email.ID,
		Verdict:     verdict,
		CompletedAt: time.Now(),
	}
}

func TestRouteClean(t *testing.T) {
	r, clean, sink := newTestRouter(t)
	email := &core.CanonicalEmail{ID: uuid.New(), Sender: "friend@example.com"}

	item, err := r.Route(context.Background(), email, resultFor(email, core.VerdictClean))
	require.NoError(t, err)
	assert.Nil(t, item)

	select {
	case delivered := <-clean:
		assert.Equal(t, email.ID, delivered.ID)
	default:
		t.Fatal("clean email was not delivered")
	}
	assert.Contains(t, sink.names(), core.EventEmailClean)
}

func TestRouteSuspiciousQuarantines(t *testing.T) {
	r, clean, sink := newTestRouter(t)
	email := &core.CanonicalEmail{ID: uuid.New(), Sender: "stranger@example.com"}

	item, err := r.Route(context.Background(), email, resultFor(email, core.VerdictSuspicious))
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, core.StatusPending, item.Status)

	select {
	case <-clean:
		t.Fatal("suspicious email must not reach the clean channel")
	default:
	}
	assert.Contains(t, sink.names(), core.EventEmailQuarantined)
}

func TestRouteMaliciousQuarantines(t *testing.T) {
	r, _, _ := newTestRouter(t)
	email := &core.CanonicalEmail{ID: uuid.New(), Sender: "attacker@evil.example"}

	item, err := r.Route(context.Background(), email, resultFor(email, core.VerdictMalicious))
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, quarantine.ItemID(email.ID), item.ID)
}

func TestRouteTwiceReusesQuarantineItem(t *testing.T) {
	r, _, sink := newTestRouter(t)
	email := &core.CanonicalEmail{ID: uuid.New(), Sender: "attacker@evil.example"}
	result := resultFor(email, core.VerdictMalicious)

	first, err := r.Route(context.Background(), email, result)
	require.NoError(t, err)
	second, err := r.Route(context.Background(), email, result)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)

	// The lifecycle event is once-per-id like the item itself.
	count := 0
	for _, name := range sink.names() {
		if name == core.EventEmailQuarantined {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestRouteRejectsMismatchedResult(t *testing.T) {
	r, _, _ := newTestRouter(t)
	email := &core.CanonicalEmail{ID: uuid.New()}
	other := &core.CanonicalEmail{ID: uuid.New()}

	_, err := r.Route(context.Background(), email, resultFor(other, core.VerdictClean))
	assert.Error(t, err)
}

func TestRouteCleanHonorsContext(t *testing.T) {
	sink := &recordingSink{}
	store := storage.NewMemoryStore(zap.NewNop())
	manager := quarantine.NewManager(store, sink, nil, zap.NewNop(), 168*time.Hour)
	blocked := make(chan *core.CanonicalEmail) // unbuffered, no reader
	r := NewRouter(blocked, manager, sink, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	email := &core.CanonicalEmail{ID: uuid.New()}
	_, err := r.Route(ctx, email, resultFor(email, core.VerdictClean))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
