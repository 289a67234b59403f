package balancestore_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/dalemusser/coursehub/internal/app/enrollment"
	balancestore "github.com/dalemusser/coursehub/internal/app/store/balances"
	"github.com/dalemusser/coursehub/internal/domain/money"
	"github.com/dalemusser/coursehub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_OpenAndBalance(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := balancestore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	userID := primitive.NewObjectID()
	if _, err := store.Open(ctx, userID, money.MustParse("500")); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	got, err := store.Balance(ctx, userID)
	if err != nil {
		t.Fatalf("Balance failed: %v", err)
	}
	if got.String() != "500.00" {
		t.Errorf("balance = %s, want 500.00", got)
	}

	if _, err := store.Open(ctx, userID, money.Zero); !errors.Is(err, balancestore.ErrExists) {
		t.Errorf("second Open error = %v, want ErrExists", err)
	}
}

func TestStore_Debit(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := balancestore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	userID := primitive.NewObjectID()
	if _, err := store.Open(ctx, userID, money.MustParse("500")); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	after, err := store.Debit(ctx, userID, money.MustParse("300"))
	if err != nil {
		t.Fatalf("Debit failed: %v", err)
	}
	if after.String() != "200.00" {
		t.Errorf("after debit = %s, want 200.00", after)
	}

	_, err = store.Debit(ctx, userID, money.MustParse("300"))
	if !errors.Is(err, balancestore.ErrInsufficientFunds) {
		t.Fatalf("overdraw error = %v, want ErrInsufficientFunds", err)
	}
	if !errors.Is(err, enrollment.ErrInsufficientFunds) {
		t.Error("store error should carry enrollment.ErrInsufficientFunds")
	}

	// Failed debit leaves the balance untouched.
	got, _ := store.Balance(ctx, userID)
	if got.String() != "200.00" {
		t.Errorf("balance after failed debit = %s, want 200.00", got)
	}

	// Exact balance is allowed and reaches zero.
	after, err = store.Debit(ctx, userID, money.MustParse("200"))
	if err != nil {
		t.Fatalf("exact Debit failed: %v", err)
	}
	if !after.IsZero() {
		t.Errorf("after exact debit = %s, want 0.00", after)
	}
}

func TestStore_DebitUnknownUser(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := balancestore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_, err := store.Debit(ctx, primitive.NewObjectID(), money.MustParse("1"))
	if !errors.Is(err, balancestore.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
	if !errors.Is(err, enrollment.ErrUserNotFound) {
		t.Error("store error should carry enrollment.ErrUserNotFound")
	}
}

func TestStore_DebitRejectsInvalidAmounts(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := balancestore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	userID := primitive.NewObjectID()
	if _, err := store.Open(ctx, userID, money.MustParse("10")); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	neg := money.MustParse("5").Neg()
	if _, err := store.Debit(ctx, userID, neg); !errors.Is(err, money.ErrNegative) {
		t.Errorf("negative debit error = %v, want money.ErrNegative", err)
	}
	if _, err := store.Credit(ctx, userID, neg); !errors.Is(err, money.ErrNegative) {
		t.Errorf("negative credit error = %v, want money.ErrNegative", err)
	}
}

func TestStore_Credit(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := balancestore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	userID := primitive.NewObjectID()
	if _, err := store.Open(ctx, userID, money.MustParse("0.50")); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	after, err := store.Credit(ctx, userID, money.MustParse("99.75"))
	if err != nil {
		t.Fatalf("Credit failed: %v", err)
	}
	if after.String() != "100.25" {
		t.Errorf("after credit = %s, want 100.25", after)
	}

	if _, err := store.Credit(ctx, primitive.NewObjectID(), money.MustParse("1")); !errors.Is(err, balancestore.ErrNotFound) {
		t.Errorf("credit unknown user error = %v, want ErrNotFound", err)
	}
}

func TestStore_ConcurrentDebitsNeverOverdraw(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := balancestore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	userID := primitive.NewObjectID()
	if _, err := store.Open(ctx, userID, money.MustParse("1000")); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	const workers = 10
	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Debit(ctx, userID, money.MustParse("300")); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if ok != 3 {
		t.Errorf("successful debits = %d, want 3", ok)
	}
	got, _ := store.Balance(ctx, userID)
	if got.String() != "100.00" {
		t.Errorf("final balance = %s, want 100.00", got)
	}
}
