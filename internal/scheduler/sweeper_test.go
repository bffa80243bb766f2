package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "budgetapi/internal/errors"
	"budgetapi/internal/ledger"
	"budgetapi/internal/models"
	"budgetapi/internal/notify"
	"budgetapi/internal/testutil"
)

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time { return c.now }

func at(year int, month time.Month, day, hour int) time.Time {
	return time.Date(year, month, day, hour, 0, 0, 0, time.UTC)
}

func TestSweepOnce_AppliesOnPlannedDate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	user := testutil.CreateTestUser(t, db)
	cat := testutil.CreateTestCategory(t, db, user.ID)
	tx := testutil.CreatePlannedTransaction(t, db, user.ID, cat.ID, "300", true, testutil.Date(2026, 10, 16))

	c := &clock{now: at(2026, 10, 15, 23)}
	s := NewSweeper(db, notify.NewRouter(db, nil), ledger.NewUserLocks(), WithClock(c.Now))

	result, err := s.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Due)
	assert.True(t, testutil.ReloadUser(t, db, user.ID).Balance.IsZero())

	c.now = at(2026, 10, 16, 1)
	result, err = s.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Applied)
	assert.Empty(t, result.Failed)

	assert.True(t, testutil.Dec(t, "300").Equal(testutil.ReloadUser(t, db, user.ID).Balance))

	var reloaded models.Transaction
	require.NoError(t, db.First(&reloaded, tx.ID).Error)
	assert.True(t, reloaded.IsApplied())

	var notes []models.Notification
	require.NoError(t, db.Where("user_id = ?", user.ID).Find(&notes).Error)
	require.Len(t, notes, 1, "user without email gets one in-app record")
	assert.Equal(t, ledger.RecordedMessage(tx.Number), notes[0].Text)
}

func TestSweepOnce_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	user := testutil.CreateTestUser(t, db)
	cat := testutil.CreateTestCategory(t, db, user.ID)
	testutil.CreatePlannedTransaction(t, db, user.ID, cat.ID, "50", false, testutil.Date(2026, 10, 15))

	s := NewSweeper(db, notify.NewRouter(db, nil), ledger.NewUserLocks(), WithClock(func() time.Time { return at(2026, 10, 15, 1) }))

	for i := 0; i < 3; i++ {
		_, err := s.SweepOnce(context.Background())
		require.NoError(t, err)
	}

	assert.True(t, testutil.Dec(t, "-50").Equal(testutil.ReloadUser(t, db, user.ID).Balance), "balance must change exactly once")
	assert.Equal(t, int64(1), testutil.CountNotifications(t, db, user.ID))
}

func TestSweepOnce_CatchesUpMissedDays(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	user := testutil.CreateTestUser(t, db)
	cat := testutil.CreateTestCategory(t, db, user.ID)
	testutil.CreatePlannedTransaction(t, db, user.ID, cat.ID, "10", true, testutil.Date(2026, 10, 10))
	testutil.CreatePlannedTransaction(t, db, user.ID, cat.ID, "20", true, testutil.Date(2026, 10, 12))
	testutil.CreatePlannedTransaction(t, db, user.ID, cat.ID, "40", true, testutil.Date(2026, 10, 20))

	s := NewSweeper(db, nil, ledger.NewUserLocks(), WithClock(func() time.Time { return at(2026, 10, 15, 1) }))

	result, err := s.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Applied)
	assert.True(t, testutil.Dec(t, "30").Equal(testutil.ReloadUser(t, db, user.ID).Balance))
}

func TestSweepOnce_EmailInsteadOfInApp(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	user := testutil.CreateTestUserWithEmail(t, db, "owner@example.com")
	cat := testutil.CreateTestCategory(t, db, user.ID)
	tx := testutil.CreatePlannedTransaction(t, db, user.ID, cat.ID, "15", true, testutil.Date(2026, 10, 15))

	rec := &notify.Recorder{}
	s := NewSweeper(db, rec, ledger.NewUserLocks(), WithClock(func() time.Time { return at(2026, 10, 15, 1) }))

	_, err := s.SweepOnce(context.Background())
	require.NoError(t, err)

	require.Len(t, rec.Intents, 1)
	intent := rec.Intents[0]
	assert.Equal(t, notify.ChannelEmail, intent.Channel)
	assert.Equal(t, "owner@example.com", intent.Email)
	assert.Equal(t, RecordedSubject, intent.Subject)
	assert.Equal(t, ledger.RecordedMessage(tx.Number), intent.Text)
}

func TestSweepOnce_ThresholdChecked(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	user := testutil.CreateTestUser(t, db)
	testutil.SetThreshold(t, db, user, "100")
	cat := testutil.CreateTestCategory(t, db, user.ID)
	testutil.CreatePlannedTransaction(t, db, user.ID, cat.ID, "150", false, testutil.Date(2026, 10, 15))

	rec := &notify.Recorder{}
	s := NewSweeper(db, rec, ledger.NewUserLocks(), WithClock(func() time.Time { return at(2026, 10, 15, 1) }))

	_, err := s.SweepOnce(context.Background())
	require.NoError(t, err)

	require.Len(t, rec.Intents, 2)
	assert.Equal(t, ledger.ThresholdMessage, rec.Intents[0].Text)
	assert.Equal(t, notify.ChannelInApp, rec.Intents[1].Channel)
}

func TestSweepOnce_SkipsDeleted(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	user := testutil.CreateTestUser(t, db)
	cat := testutil.CreateTestCategory(t, db, user.ID)
	tx := testutil.CreatePlannedTransaction(t, db, user.ID, cat.ID, "15", true, testutil.Date(2026, 10, 15))
	require.NoError(t, db.Delete(tx).Error)

	s := NewSweeper(db, nil, ledger.NewUserLocks(), WithClock(func() time.Time { return at(2026, 10, 15, 1) }))

	result, err := s.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Due)
	assert.True(t, testutil.ReloadUser(t, db, user.ID).Balance.IsZero())
}

func TestSweepOnce_UserFailureDoesNotStopOthers(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	broken := testutil.CreateTestUser(t, db)
	healthy := testutil.CreateTestUser(t, db)
	brokenCat := testutil.CreateTestCategory(t, db, broken.ID)
	healthyCat := testutil.CreateTestCategory(t, db, healthy.ID)

	// A negative stored amount cannot be applied.
	testutil.CreatePlannedTransaction(t, db, broken.ID, brokenCat.ID, "-5", true, testutil.Date(2026, 10, 15))
	testutil.CreatePlannedTransaction(t, db, healthy.ID, healthyCat.ID, "5", true, testutil.Date(2026, 10, 15))

	s := NewSweeper(db, nil, ledger.NewUserLocks(),
		WithClock(func() time.Time { return at(2026, 10, 15, 1) }),
		WithConcurrency(1),
	)

	result, err := s.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Applied)
	assert.Contains(t, result.Failed, broken.ID)
	assert.True(t, testutil.ReloadUser(t, db, broken.ID).Balance.IsZero())
	assert.True(t, testutil.Dec(t, "5").Equal(testutil.ReloadUser(t, db, healthy.ID).Balance))
}

func TestSweepOnce_ManyUsers(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	var users []*models.User
	for i := 0; i < 6; i++ {
		u := testutil.CreateTestUser(t, db)
		cat := testutil.CreateTestCategory(t, db, u.ID)
		for j := 0; j < 3; j++ {
			testutil.CreatePlannedTransaction(t, db, u.ID, cat.ID, "1.25", true, testutil.Date(2026, 10, 14))
		}
		users = append(users, u)
	}

	s := NewSweeper(db, nil, ledger.NewUserLocks(),
		WithClock(func() time.Time { return at(2026, 10, 15, 1) }),
		WithConcurrency(3),
	)

	result, err := s.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 18, result.Applied)
	for _, u := range users {
		assert.True(t, testutil.Dec(t, "3.75").Equal(testutil.ReloadUser(t, db, u.ID).Balance))
	}
}

func TestSweepOnce_SingleInFlight(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	s := NewSweeper(db, nil, ledger.NewUserLocks())
	s.running.Lock()

	_, err := s.SweepOnce(context.Background())
	assert.True(t, errors.Is(err, apperrors.ErrSweepInProgress))

	s.running.Unlock()
	_, err = s.SweepOnce(context.Background())
	assert.NoError(t, err)
}

func TestSweepOnce_Cancelled(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	user := testutil.CreateTestUser(t, db)
	cat := testutil.CreateTestCategory(t, db, user.ID)
	testutil.CreatePlannedTransaction(t, db, user.ID, cat.ID, "5", true, testutil.Date(2026, 10, 15))

	s := NewSweeper(db, nil, ledger.NewUserLocks(), WithClock(func() time.Time { return at(2026, 10, 15, 1) }))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.SweepOnce(ctx)
	assert.Error(t, err)
	assert.True(t, testutil.ReloadUser(t, db, user.ID).Balance.IsZero())
}

func TestGroupByUser(t *testing.T) {
	rows := []models.Transaction{
		{Base: models.Base{ID: 1}, UserID: 1},
		{Base: models.Base{ID: 4}, UserID: 1},
		{Base: models.Base{ID: 2}, UserID: 2},
		{Base: models.Base{ID: 3}, UserID: 3},
		{Base: models.Base{ID: 5}, UserID: 3},
	}

	batches := groupByUser(rows)
	require.Len(t, batches, 3)
	assert.Equal(t, []uint{1, 4}, batches[0].ids)
	assert.Equal(t, uint(2), batches[1].userID)
	assert.Equal(t, []uint{3, 5}, batches[2].ids)
	assert.Empty(t, groupByUser(nil))
}

func TestRunner_NextRun(t *testing.T) {
	t.Run("daily_before_hour", func(t *testing.T) {
		r := NewRunner(nil, 1, 0, time.UTC)
		assert.Equal(t, at(2026, 10, 15, 1), r.NextRun(time.Date(2026, 10, 15, 0, 30, 0, 0, time.UTC)))
	})

	t.Run("daily_after_hour", func(t *testing.T) {
		r := NewRunner(nil, 1, 0, time.UTC)
		assert.Equal(t, at(2026, 10, 16, 1), r.NextRun(at(2026, 10, 15, 1)))
	})

	t.Run("month_rollover", func(t *testing.T) {
		r := NewRunner(nil, 1, 0, time.UTC)
		assert.Equal(t, at(2026, 11, 1, 1), r.NextRun(at(2026, 10, 31, 12)))
	})

	t.Run("interval", func(t *testing.T) {
		r := NewRunner(nil, 1, 15*time.Minute, time.UTC)
		now := at(2026, 10, 15, 12)
		assert.Equal(t, now.Add(15*time.Minute), r.NextRun(now))
	})
}

func TestRunner_Run(t *testing.T) {
	var calls atomic.Int32
	sweep := func(ctx context.Context) (*SweepResult, error) {
		calls.Add(1)
		return &SweepResult{}, nil
	}

	r := NewRunner(sweep, 1, 5*time.Millisecond, time.UTC)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("runner did not stop after cancel")
	}
}

func TestRunner_ToleratesErrors(t *testing.T) {
	var calls atomic.Int32
	sweep := func(ctx context.Context) (*SweepResult, error) {
		if calls.Add(1) == 1 {
			return nil, apperrors.ErrSweepInProgress
		}
		return nil, errors.New("database unavailable")
	}

	r := NewRunner(sweep, 1, time.Millisecond, time.UTC)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = r.Run(ctx) }()
	require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, time.Millisecond)
}
