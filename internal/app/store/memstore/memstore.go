// Package memstore keeps balances, courses, groups and subscriptions in
// process memory and implements every enrollment port on top of them.
//
// Transactions run one at a time and roll back by restoring a snapshot
// taken when they began. Writes made outside Run are not isolated from a
// running transaction and can be undone by its rollback, so callers that
// mutate concurrently with Pay should go through Run as well.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dalemusser/coursehub/internal/app/enrollment"
	"github.com/dalemusser/coursehub/internal/app/system/txn"
	"github.com/dalemusser/coursehub/internal/domain/models"
	"github.com/dalemusser/coursehub/internal/domain/money"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrNoBalance           = fmt.Errorf("memstore: no balance row: %w", enrollment.ErrUserNotFound)
	ErrInsufficientFunds   = fmt.Errorf("memstore: balance too low: %w", enrollment.ErrInsufficientFunds)
	ErrCourseNotFound      = fmt.Errorf("memstore: %w", enrollment.ErrCourseNotFound)
	ErrAlreadyEnrolled     = fmt.Errorf("memstore: %w", enrollment.ErrAlreadyEnrolled)
	ErrSubscriptionMissing = fmt.Errorf("memstore: subscription missing or inactive: %w", enrollment.ErrInvariantViolation)
	ErrGroupMismatch       = fmt.Errorf("memstore: group belongs to another course: %w", enrollment.ErrInvariantViolation)
	ErrDuplicateGroup      = fmt.Errorf("memstore: duplicate group number: %w", enrollment.ErrInvariantViolation)
)

var (
	_ enrollment.Ledger    = (*Store)(nil)
	_ enrollment.Registry  = (*Store)(nil)
	_ enrollment.GroupPool = (*Store)(nil)
	_ enrollment.Catalog   = (*Store)(nil)
	_ enrollment.TxRunner  = (*Store)(nil)
	_ enrollment.TxRunner  = NoTx{}
)

type state struct {
	balances map[primitive.ObjectID]money.Amount
	courses  map[primitive.ObjectID]models.Course
	groups   map[primitive.ObjectID]models.Group
	subs     map[primitive.ObjectID]models.Subscription
}

func newState() state {
	return state{
		balances: make(map[primitive.ObjectID]money.Amount),
		courses:  make(map[primitive.ObjectID]models.Course),
		groups:   make(map[primitive.ObjectID]models.Group),
		subs:     make(map[primitive.ObjectID]models.Subscription),
	}
}

func (s state) clone() state {
	c := newState()
	for k, v := range s.balances {
		c.balances[k] = v
	}
	for k, v := range s.courses {
		c.courses[k] = v
	}
	for k, v := range s.groups {
		c.groups[k] = v
	}
	for k, v := range s.subs {
		c.subs[k] = v
	}
	return c
}

// Store is the in-memory backend.
type Store struct {
	mu   sync.Mutex
	data state

	tx sync.Mutex
}

// New returns an empty store.
func New() *Store {
	return &Store{data: newState()}
}

// ---- setup helpers ----

// OpenAccount creates the balance row of a user with an initial credit.
func (s *Store) OpenAccount(userID primitive.ObjectID, initial money.Amount) error {
	if err := initial.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data.balances[userID]; ok {
		return fmt.Errorf("memstore: balance for %s already exists", userID.Hex())
	}
	s.data.balances[userID] = initial
	return nil
}

// PutCourse inserts or replaces a course. A zero ID is filled in.
func (s *Store) PutCourse(c models.Course) models.Course {
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.courses[c.ID] = c
	return c
}

// ---- TxRunner ----

// Run executes fn alone and restores the previous state if it fails.
func (s *Store) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	s.tx.Lock()
	defer s.tx.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	snap := s.data.clone()
	s.mu.Unlock()

	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.data = snap
		s.mu.Unlock()
		return err
	}
	return nil
}

// NoTx runs fn directly, without isolation or rollback. It stands in for a
// database that cannot run transactions.
type NoTx struct{}

func (NoTx) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(txn.WithoutRollback(ctx))
}

// ---- Ledger ----

func (s *Store) Balance(_ context.Context, userID primitive.ObjectID) (money.Amount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.data.balances[userID]
	if !ok {
		return money.Zero, ErrNoBalance
	}
	return b, nil
}

// Debit subtracts amount only if the balance covers it.
func (s *Store) Debit(_ context.Context, userID primitive.ObjectID, amount money.Amount) (money.Amount, error) {
	if err := amount.Validate(); err != nil {
		return money.Zero, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.data.balances[userID]
	if !ok {
		return money.Zero, ErrNoBalance
	}
	if b.LessThan(amount) {
		return b, ErrInsufficientFunds
	}
	b = b.Sub(amount)
	s.data.balances[userID] = b
	return b, nil
}

func (s *Store) Credit(_ context.Context, userID primitive.ObjectID, amount money.Amount) (money.Amount, error) {
	if err := amount.Validate(); err != nil {
		return money.Zero, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.data.balances[userID]
	if !ok {
		return money.Zero, ErrNoBalance
	}
	b = b.Add(amount)
	s.data.balances[userID] = b
	return b, nil
}

// ---- Catalog ----

func (s *Store) Claim(_ context.Context, courseID primitive.ObjectID) (models.Course, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.data.courses[courseID]
	if !ok {
		return models.Course{}, ErrCourseNotFound
	}
	c.PlacementVersion++
	s.data.courses[courseID] = c
	return c, nil
}

// ---- Registry ----

func (s *Store) Enroll(_ context.Context, sub models.Subscription) (models.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, x := range s.data.subs {
		if x.IsActive && x.UserID == sub.UserID && x.CourseID == sub.CourseID {
			return models.Subscription{}, ErrAlreadyEnrolled
		}
	}
	if sub.ID.IsZero() {
		sub.ID = primitive.NewObjectID()
	}
	if sub.StartDate.IsZero() {
		sub.StartDate = time.Now()
	}
	sub.IsActive = true
	sub.GroupID = nil
	sub.DeactivatedAt = nil
	s.data.subs[sub.ID] = sub
	return sub, nil
}

func (s *Store) AssignGroup(_ context.Context, subID primitive.ObjectID, g models.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.data.subs[subID]
	if !ok || !sub.IsActive {
		return ErrSubscriptionMissing
	}
	stored, ok := s.data.groups[g.ID]
	if !ok || stored.CourseID != sub.CourseID {
		return ErrGroupMismatch
	}
	gid := g.ID
	sub.GroupID = &gid
	s.data.subs[subID] = sub
	return nil
}

// Deactivate marks a subscription inactive. Deactivating an inactive
// subscription is a no-op.
func (s *Store) Deactivate(_ context.Context, subID primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.data.subs[subID]
	if !ok {
		return ErrSubscriptionMissing
	}
	if !sub.IsActive {
		return nil
	}
	now := time.Now()
	sub.IsActive = false
	sub.DeactivatedAt = &now
	s.data.subs[subID] = sub
	return nil
}

func (s *Store) CountActiveByGroup(_ context.Context, courseID primitive.ObjectID) (map[primitive.ObjectID]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[primitive.ObjectID]int)
	for _, x := range s.data.subs {
		if x.IsActive && x.CourseID == courseID && x.GroupID != nil {
			out[*x.GroupID]++
		}
	}
	return out, nil
}

// Subscriptions returns every subscription of a user, oldest first.
func (s *Store) Subscriptions(userID primitive.ObjectID) []models.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Subscription
	for _, x := range s.data.subs {
		if x.UserID == userID {
			out = append(out, x)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out
}

// ---- GroupPool ----

func (s *Store) ListByCourse(_ context.Context, courseID primitive.ObjectID) ([]models.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Group
	for _, g := range s.data.groups {
		if g.CourseID == courseID {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (s *Store) Create(_ context.Context, g models.Group) (models.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, x := range s.data.groups {
		if x.CourseID == g.CourseID && x.Number == g.Number {
			return models.Group{}, ErrDuplicateGroup
		}
	}
	if g.ID.IsZero() {
		g.ID = primitive.NewObjectID()
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now()
	}
	s.data.groups[g.ID] = g
	return g, nil
}

// ActiveByCourse returns the active subscriptions of a course.
func (s *Store) ActiveByCourse(courseID primitive.ObjectID) []models.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Subscription
	for _, x := range s.data.subs {
		if x.IsActive && x.CourseID == courseID {
			out = append(out, x)
		}
	}
	return out
}
