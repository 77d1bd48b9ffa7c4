package automation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	kpidomain "arborlead-service/internal/domain/kpi"
	"arborlead-service/internal/domain/lead"
	kpisvc "arborlead-service/internal/service/kpi"
)

type stubLeadRepo struct {
	lead.Repository

	mu         sync.Mutex
	expired    []int64
	lastCutoff time.Time
	err        error
}

func (s *stubLeadRepo) ExpireOlderThan(_ context.Context, cutoff time.Time) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastCutoff = cutoff
	return s.expired, s.err
}

type eventLog struct {
	mu     sync.Mutex
	events []kpisvc.EventContext
	types  []kpidomain.EventType
}

func (e *eventLog) LogEvent(_ context.Context, eventType kpidomain.EventType, ec kpisvc.EventContext) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.types = append(e.types, eventType)
	e.events = append(e.events, ec)
}

func TestExpireOldLeads(t *testing.T) {
	repo := &stubLeadRepo{expired: []int64{3, 7, 11}}
	events := &eventLog{}
	svc := NewAutomationService(repo, nil, nil, events, 48*time.Hour, zap.NewNop())

	before := time.Now().UTC().Add(-48 * time.Hour)
	require.NoError(t, svc.ExpireOldLeads(context.Background()))
	after := time.Now().UTC().Add(-48 * time.Hour)

	// Cutoff is now minus the expiry window.
	assert.False(t, repo.lastCutoff.Before(before))
	assert.False(t, repo.lastCutoff.After(after))

	require.Len(t, events.events, 3)
	var ids []int64
	for i, ec := range events.events {
		assert.Equal(t, kpidomain.EventLeadExpired, events.types[i])
		ids = append(ids, ec.LeadID)
	}
	assert.ElementsMatch(t, []int64{3, 7, 11}, ids)
}

func TestExpireOldLeadsNothingStale(t *testing.T) {
	repo := &stubLeadRepo{}
	events := &eventLog{}
	svc := NewAutomationService(repo, nil, nil, events, 48*time.Hour, zap.NewNop())

	require.NoError(t, svc.ExpireOldLeads(context.Background()))
	assert.Empty(t, events.events)
}

func TestExpireOldLeadsPropagatesError(t *testing.T) {
	repo := &stubLeadRepo{err: context.DeadlineExceeded}
	svc := NewAutomationService(repo, nil, nil, &eventLog{}, 48*time.Hour, zap.NewNop())

	err := svc.ExpireOldLeads(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
