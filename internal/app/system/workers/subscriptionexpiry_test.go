package workers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dalemusser/coursehub/internal/app/system/metrics"
	"github.com/dalemusser/coursehub/internal/domain/models"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type fakeSubs struct {
	mu       sync.Mutex
	subs     []models.Subscription
	failing  map[primitive.ObjectID]bool
	listErr  error
	deactive int
}

func (f *fakeSubs) ListExpired(_ context.Context, now time.Time, limit int64) ([]models.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []models.Subscription
	for _, s := range f.subs {
		if s.IsActive && !s.EndDate.After(now) && int64(len(out)) < limit {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSubs) Deactivate(_ context.Context, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing[id] {
		return errors.New("write failed")
	}
	for i := range f.subs {
		if f.subs[i].ID == id {
			f.subs[i].IsActive = false
			f.deactive++
		}
	}
	return nil
}

type recAudit struct{ n int }

func (r *recAudit) SubscriptionExpired(context.Context, models.Subscription) { r.n++ }

func sub(end time.Time) models.Subscription {
	return models.Subscription{ID: primitive.NewObjectID(), IsActive: true, EndDate: end}
}

func TestSubscriptionExpiry_Sweep(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	src := &fakeSubs{subs: []models.Subscription{
		sub(now.Add(-time.Hour)),
		sub(now),
		sub(now.Add(time.Hour)),
	}}
	aud := &recAudit{}
	m := metrics.New("test")

	w := NewSubscriptionExpiry(src, aud, m, zap.NewNop(), time.Minute)
	w.now = func() time.Time { return now }

	n, err := w.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if n != 2 || src.deactive != 2 || aud.n != 2 {
		t.Errorf("deactivated=%d store=%d audited=%d, want 2", n, src.deactive, aud.n)
	}
	if !src.subs[2].IsActive {
		t.Error("future subscription must stay active")
	}
	if got := testutil.ToFloat64(m.SubscriptionsExpired); got != 2 {
		t.Errorf("expired metric = %v, want 2", got)
	}

	// Second sweep finds nothing.
	n, _ = w.Sweep(context.Background())
	if n != 0 {
		t.Errorf("second sweep = %d, want 0", n)
	}
}

func TestSubscriptionExpiry_FailuresDoNotLoop(t *testing.T) {
	now := time.Now().UTC()
	bad := sub(now.Add(-time.Minute))
	src := &fakeSubs{
		subs:    []models.Subscription{bad, sub(now.Add(-time.Minute))},
		failing: map[primitive.ObjectID]bool{bad.ID: true},
	}

	w := NewSubscriptionExpiry(src, nil, nil, zap.NewNop(), time.Minute)
	n, err := w.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if n != 1 {
		t.Errorf("deactivated = %d, want 1", n)
	}
}

func TestSubscriptionExpiry_ListError(t *testing.T) {
	src := &fakeSubs{listErr: errors.New("down")}
	w := NewSubscriptionExpiry(src, nil, nil, zap.NewNop(), time.Minute)
	if _, err := w.Sweep(context.Background()); err == nil {
		t.Error("expected list error")
	}
}

func TestSubscriptionExpiry_StartStop(t *testing.T) {
	src := &fakeSubs{subs: []models.Subscription{sub(time.Now().Add(-time.Hour))}}
	w := NewSubscriptionExpiry(src, nil, nil, zap.NewNop(), 10*time.Millisecond)
	w.Start()

	deadline := time.Now().Add(2 * time.Second)
	for {
		src.mu.Lock()
		done := src.deactive
		src.mu.Unlock()
		if done == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("worker did not sweep in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
	w.Stop()
}
