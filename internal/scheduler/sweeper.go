// Package scheduler applies planned transactions once their date arrives.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "budgetapi/internal/errors"
	"budgetapi/internal/ledger"
	"budgetapi/internal/logger"
	"budgetapi/internal/models"
	"budgetapi/internal/notify"
)

// RecordedSubject is the subject of the email sent for an applied planned
// transaction.
const RecordedSubject = "Planned transaction recorded"

// SweepResult reports one pass over the due planned transactions.
type SweepResult struct {
	Today   time.Time       `json:"today"`
	Due     int             `json:"due"`
	Applied int             `json:"applied"`
	Skipped int             `json:"skipped"`
	Failed  map[uint]string `json:"failed,omitempty"`
}

// Sweeper applies due planned transactions. Only one sweep runs at a time
// per Sweeper; concurrent callers get ErrSweepInProgress.
type Sweeper struct {
	db          *gorm.DB
	dispatcher  notify.Dispatcher
	locks       *ledger.UserLocks
	now         func() time.Time
	loc         *time.Location
	concurrency int
	running     sync.Mutex
	log         *zap.SugaredLogger
}

// Option customizes a Sweeper.
type Option func(*Sweeper)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) { s.now = now }
}

// WithLocation sets the zone that defines "today".
func WithLocation(loc *time.Location) Option {
	return func(s *Sweeper) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithConcurrency bounds how many users are processed in parallel.
func WithConcurrency(n int) Option {
	return func(s *Sweeper) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// NewSweeper creates a Sweeper. locks must be shared with the transaction
// service so that a sweep never interleaves with a create for the same user.
func NewSweeper(db *gorm.DB, dispatcher notify.Dispatcher, locks *ledger.UserLocks, opts ...Option) *Sweeper {
	s := &Sweeper{
		db:          db,
		dispatcher:  dispatcher,
		locks:       locks,
		now:         time.Now,
		loc:         time.UTC,
		concurrency: 4,
		log:         logger.Named("scheduler"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.dispatcher == nil {
		s.dispatcher = notify.Discard{}
	}
	if s.locks == nil {
		s.locks = ledger.NewUserLocks()
	}
	return s
}

// SweepOnce applies every planned transaction whose date is today or earlier
// and that has not been applied yet. Each transaction gets its own database
// transaction. A failing user is recorded in the result and the sweep moves
// on; cancellation is honoured between users.
func (s *Sweeper) SweepOnce(ctx context.Context) (*SweepResult, error) {
	if !s.running.TryLock() {
		return nil, apperrors.ErrSweepInProgress
	}
	defer s.running.Unlock()

	today := ledger.DateOf(s.now(), s.loc)
	result := &SweepResult{Today: today, Failed: map[uint]string{}}

	var due []models.Transaction
	if err := s.db.WithContext(ctx).
		Where("planned_date <= ? AND applied_at IS NULL", today).
		Order("user_id, id").
		Find(&due).Error; err != nil {
		return nil, fmt.Errorf("select due transactions: %w", err)
	}
	result.Due = len(due)

	if len(due) == 0 {
		s.log.Debugw("no planned transactions due", "today", today.Format(time.DateOnly))
		return result, nil
	}

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(s.concurrency)

	for _, batch := range groupByUser(due) {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			applied, skipped, err := s.sweepUser(ctx, batch)

			mu.Lock()
			defer mu.Unlock()
			result.Applied += applied
			result.Skipped += skipped
			if err != nil {
				result.Failed[batch.userID] = err.Error()
				s.log.Errorw("planned sweep failed for user",
					"user_id", batch.userID,
					"applied", applied,
					"error", err,
				)
			}
			return nil
		})
	}
	_ = g.Wait()

	s.log.Infow("planned sweep complete",
		"today", today.Format(time.DateOnly),
		"due", result.Due,
		"applied", result.Applied,
		"skipped", result.Skipped,
		"failed_users", len(result.Failed),
	)

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

type userBatch struct {
	userID uint
	ids    []uint
}

// groupByUser splits rows ordered by user_id into per-user batches, keeping
// the id order within each batch.
func groupByUser(rows []models.Transaction) []userBatch {
	var batches []userBatch
	for _, row := range rows {
		if n := len(batches); n > 0 && batches[n-1].userID == row.UserID {
			batches[n-1].ids = append(batches[n-1].ids, row.ID)
			continue
		}
		batches = append(batches, userBatch{userID: row.UserID, ids: []uint{row.ID}})
	}
	return batches
}

// sweepUser applies one user's due transactions in id order under the user
// lock. It stops at the first error; transactions already committed stay
// applied.
func (s *Sweeper) sweepUser(ctx context.Context, batch userBatch) (applied, skipped int, err error) {
	unlock := s.locks.Lock(batch.userID)
	defer unlock()

	for _, id := range batch.ids {
		intents, ok, err := s.applyOne(batch.userID, id)
		if err != nil {
			return applied, skipped, fmt.Errorf("transaction %d: %w", id, err)
		}
		if !ok {
			skipped++
			continue
		}
		applied++
		s.dispatcher.Dispatch(ctx, intents...)
	}
	return applied, skipped, nil
}

// applyOne applies a single transaction in its own database transaction and
// returns the intents to dispatch after commit. ok is false when the row was
// applied or deleted since it was selected.
func (s *Sweeper) applyOne(userID, id uint) (intents []notify.Intent, ok bool, err error) {
	err = s.db.Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, userID).Error; err != nil {
			return fmt.Errorf("lock user: %w", err)
		}

		var transaction models.Transaction
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND user_id = ?", id, userID).
			First(&transaction).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return fmt.Errorf("reload: %w", err)
		}
		if transaction.IsApplied() {
			return nil
		}

		if err := ledger.ApplyTo(&user, &transaction); err != nil {
			return err
		}
		appliedAt := s.now().UTC()
		transaction.AppliedAt = &appliedAt

		if err := tx.Model(&user).Update("balance", user.Balance).Error; err != nil {
			return fmt.Errorf("update balance: %w", err)
		}
		if err := tx.Model(&transaction).Update("applied_at", appliedAt).Error; err != nil {
			return fmt.Errorf("mark applied: %w", err)
		}

		if intent := ledger.CheckThreshold(&user, &transaction); intent != nil {
			intents = append(intents, *intent)
		}
		intents = append(intents, notify.ForUser(&user, RecordedSubject, ledger.RecordedMessage(transaction.Number)))
		ok = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return intents, ok, nil
}
