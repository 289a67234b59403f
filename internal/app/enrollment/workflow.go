// internal/app/enrollment/workflow.go
package enrollment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/coursehub/internal/app/system/keylock"
	"github.com/dalemusser/coursehub/internal/app/system/metrics"
	"github.com/dalemusser/coursehub/internal/app/system/txn"
	"github.com/dalemusser/coursehub/internal/domain/models"
	"github.com/dalemusser/coursehub/internal/domain/money"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Config tunes the workflow.
type Config struct {
	MinGroups     int
	GroupCapacity int

	// SubscriptionLength sets end_date = start_date + length.
	SubscriptionLength time.Duration

	// LockTTL bounds how long a crashed holder can keep the enrollment and
	// course locks.
	LockTTL time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		MinGroups:          DefaultMinGroups,
		GroupCapacity:      DefaultGroupCapacity,
		SubscriptionLength: 365 * 24 * time.Hour,
		LockTTL:            30 * time.Second,
	}
}

// Deps are the collaborators of a Service. Auditor and Metrics are optional.
type Deps struct {
	Ledger   Ledger
	Registry Registry
	Groups   GroupPool
	Catalog  Catalog
	Tx       TxRunner
	Locker   keylock.Locker
	Auditor  Auditor
	Metrics  *metrics.Metrics
	Log      *zap.Logger
}

// Result is what a successful Pay returns.
type Result struct {
	PaymentID    string
	Subscription models.Subscription
	Group        models.Group
	Balance      money.Amount // balance after the debit
}

// Service runs the pay workflow: debit, enroll, place.
type Service struct {
	d      Deps
	cfg    Config
	placer *Placer
	now    func() time.Time
}

// NewService wires a Service. Zero config fields fall back to DefaultConfig.
func NewService(d Deps, cfg Config) *Service {
	def := DefaultConfig()
	if cfg.MinGroups <= 0 {
		cfg.MinGroups = def.MinGroups
	}
	if cfg.GroupCapacity <= 0 {
		cfg.GroupCapacity = def.GroupCapacity
	}
	if cfg.SubscriptionLength <= 0 {
		cfg.SubscriptionLength = def.SubscriptionLength
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = def.LockTTL
	}
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Locker == nil {
		d.Locker = keylock.NewMemoryLocker()
	}
	s := &Service{d: d, cfg: cfg, now: time.Now}
	s.placer = &Placer{
		Groups:    d.Groups,
		Registry:  d.Registry,
		MinGroups: cfg.MinGroups,
		Capacity:  cfg.GroupCapacity,
		now:       func() time.Time { return s.now() },
	}
	return s
}

// EnrollKey is the lock key serialising pay requests for one (user, course).
func EnrollKey(userID, courseID primitive.ObjectID) string {
	return "enroll:" + userID.Hex() + ":" + courseID.Hex()
}

// CourseKey is the lock key serialising placements into one course.
func CourseKey(courseID primitive.ObjectID) string {
	return "course:" + courseID.Hex()
}

// Pay charges userID the course price, creates an active subscription and
// places it in a group. Either all three effects are committed or none is.
//
// Failures are typed: ErrInsufficientFunds, ErrAlreadyEnrolled,
// ErrCourseNotFound, ErrUserNotFound or ErrInvariantViolation. Any other
// error is an infrastructure failure.
func (s *Service) Pay(ctx context.Context, userID, courseID primitive.ObjectID) (Result, error) {
	start := s.now()
	paymentID := uuid.NewString()

	log := s.d.Log.With(
		zap.String("payment_id", paymentID),
		zap.String("user_id", userID.Hex()),
		zap.String("course_id", courseID.Hex()),
	)

	res, price, created, err := s.run(ctx, log, userID, courseID, paymentID)

	outcome := Outcome(err)
	elapsed := s.now().Sub(start)
	s.d.Metrics.ObservePayment(outcome, elapsed)

	fields := []zap.Field{zap.String("outcome", outcome), zap.Duration("duration", elapsed)}
	switch KindOf(err) {
	case nil:
		if err != nil {
			log.Error("payment failed", append(fields, zap.Error(err))...)
		} else {
			log.Info("payment completed", append(fields,
				zap.String("subscription_id", res.Subscription.ID.Hex()),
				zap.String("group", res.Group.Name),
				zap.String("balance", res.Balance.String()),
			)...)
		}
	case ErrInvariantViolation:
		log.Error("payment aborted", append(fields, zap.Error(err))...)
	default:
		log.Info("payment rejected", append(fields, zap.Error(err))...)
	}

	if s.d.Auditor != nil {
		if err != nil {
			s.d.Auditor.PaymentRejected(ctx, userID, courseID, paymentID, outcome)
		} else {
			for _, c := range created {
				s.d.Auditor.GroupCreated(ctx, c.Group, c.Reason)
			}
			s.d.Auditor.PaymentCompleted(ctx, res, price)
		}
	}
	if err == nil {
		for _, c := range created {
			s.d.Metrics.GroupCreated(c.Reason)
		}
	}

	if err != nil {
		return Result{}, err
	}
	return res, nil
}

func (s *Service) run(ctx context.Context, log *zap.Logger, userID, courseID primitive.ObjectID, paymentID string) (Result, money.Amount, []CreatedGroup, error) {
	if userID.IsZero() {
		return Result{}, money.Zero, nil, newError("pay", ErrUserNotFound, nil)
	}
	if courseID.IsZero() {
		return Result{}, money.Zero, nil, newError("pay", ErrCourseNotFound, nil)
	}

	release, err := keylock.AcquireAll(ctx, s.d.Locker, s.cfg.LockTTL,
		EnrollKey(userID, courseID), CourseKey(courseID))
	if err != nil {
		return Result{}, money.Zero, nil, fmt.Errorf("pay: %w", err)
	}
	defer release()

	var (
		res     Result
		price   money.Amount
		created []CreatedGroup
	)
	err = s.d.Tx.Run(ctx, func(ctx context.Context) error {
		// The runner may retry; every attempt starts from scratch.
		res, price, created = Result{}, money.Zero, nil
		a := &attempt{s: s, log: log, userID: userID, courseID: courseID, paymentID: paymentID}
		r, p, c, err := a.do(ctx)
		if err != nil {
			if txn.NoRollback(ctx) {
				a.compensate(ctx)
			}
			return err
		}
		res, price, created = r, p, c
		return nil
	})
	if err != nil {
		return Result{}, money.Zero, nil, err
	}
	return res, price, created, nil
}

// attempt is one pass through Start -> Debited -> Enrolled -> Placed.
// It records an undo step for every effect it commits. The steps only run
// when the runner executed the attempt without a transaction; otherwise
// the abort already discards the writes.
type attempt struct {
	s         *Service
	log       *zap.Logger
	userID    primitive.ObjectID
	courseID  primitive.ObjectID
	paymentID string

	undo []undoStep
}

type undoStep struct {
	action string
	fn     func(ctx context.Context) error
}

func (a *attempt) do(ctx context.Context) (Result, money.Amount, []CreatedGroup, error) {
	d := a.s.d

	// Start
	course, err := d.Catalog.Claim(ctx, a.courseID)
	if err != nil {
		return fail(classify("load course", err, ErrCourseNotFound))
	}
	if !course.IsAvailable {
		return fail(newError("load course", ErrCourseNotFound, errors.New("course is not available")))
	}
	price := course.Price

	balance, err := d.Ledger.Balance(ctx, a.userID)
	if err != nil {
		return fail(classify("read balance", err, ErrUserNotFound))
	}
	if balance.LessThan(price) {
		return fail(newError("check balance", ErrInsufficientFunds,
			fmt.Errorf("balance %s, price %s", balance, price)))
	}

	// Debited
	newBalance, err := d.Ledger.Debit(ctx, a.userID, price)
	if err != nil {
		return fail(classify("debit", err, nil))
	}
	a.push("credit", func(ctx context.Context) error {
		_, err := d.Ledger.Credit(ctx, a.userID, price)
		return err
	})

	// Enrolled
	now := a.s.now()
	sub, err := d.Registry.Enroll(ctx, models.Subscription{
		ID:        primitive.NewObjectID(),
		UserID:    a.userID,
		CourseID:  a.courseID,
		PaymentID: a.paymentID,
		Price:     price,
		StartDate: now,
		EndDate:   now.Add(a.s.cfg.SubscriptionLength),
		IsActive:  true,
	})
	if err != nil {
		return fail(classify("enroll", err, nil))
	}
	a.push("deactivate", func(ctx context.Context) error {
		return d.Registry.Deactivate(ctx, sub.ID)
	})

	// Placed
	pl, err := a.s.placer.Place(ctx, a.courseID, sub)
	if err != nil {
		// The course was loaded above, so a missing course here is a
		// consistency failure rather than a caller error.
		if errors.Is(err, ErrCourseNotFound) {
			return fail(newError("place", ErrInvariantViolation, err))
		}
		return fail(err)
	}

	gid := pl.Group.ID
	sub.GroupID = &gid
	return Result{
		PaymentID:    a.paymentID,
		Subscription: sub,
		Group:        pl.Group,
		Balance:      newBalance,
	}, price, pl.Created, nil
}

func (a *attempt) push(action string, fn func(ctx context.Context) error) {
	a.undo = append(a.undo, undoStep{action: action, fn: fn})
}

// compensate runs the recorded undo steps in reverse.
func (a *attempt) compensate(ctx context.Context) {
	if len(a.undo) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)
	for i := len(a.undo) - 1; i >= 0; i-- {
		u := a.undo[i]
		a.s.d.Metrics.Compensated(u.action)
		if err := u.fn(ctx); err != nil {
			a.log.Error("compensation failed", zap.String("action", u.action), zap.Error(err))
			continue
		}
		a.log.Warn("compensated", zap.String("action", u.action))
	}
	a.undo = nil
}

func fail(err error) (Result, money.Amount, []CreatedGroup, error) {
	return Result{}, money.Zero, nil, err
}

// classify keeps typed errors as they are and wraps anything else. When
// notFound is set, mongo-style "no documents" is reported as that kind.
func classify(op string, err error, notFound error) error {
	if k := KindOf(err); k != nil {
		return newError(op, k, err)
	}
	if notFound != nil && isNoDocuments(err) {
		return newError(op, notFound, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
