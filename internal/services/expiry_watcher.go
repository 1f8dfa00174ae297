package services

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/finzzzi/event-management-api/internal/countdown"
	"github.com/finzzzi/event-management-api/internal/models"
)

// ExpiryWatcher enforces the payment window. It owns one countdown timer per
// transaction waiting for payment and moves overdue ones to Expired; a
// periodic sweep catches transactions whose timer was lost to a restart.
type ExpiryWatcher struct {
	db     *gorm.DB
	txns   *TransactionService
	window time.Duration

	mu     sync.Mutex
	timers map[uuid.UUID]*countdown.Timer

	stop     chan struct{}
	stopOnce sync.Once
}

// NewExpiryWatcher constructs an ExpiryWatcher with the given payment window.
func NewExpiryWatcher(db *gorm.DB, txns *TransactionService, window time.Duration) *ExpiryWatcher {
	return &ExpiryWatcher{
		db:     db,
		txns:   txns,
		window: window,
		timers: make(map[uuid.UUID]*countdown.Timer),
		stop:   make(chan struct{}),
	}
}

// Window returns the configured payment window.
func (w *ExpiryWatcher) Window() time.Duration {
	return w.window
}

// Start attaches timers to every transaction already waiting for payment and
// begins the periodic sweep.
func (w *ExpiryWatcher) Start(sweepInterval time.Duration) error {
	var pending []models.Transaction
	if err := w.db.Where("status = ?", models.StatusWaitingForPayment).
		Find(&pending).Error; err != nil {
		return err
	}
	for _, txn := range pending {
		w.Watch(txn.ID, txn.CreatedAt)
	}
	log.Printf("[Expiry] watching %d pending transactions", len(pending))

	go w.sweepLoop(sweepInterval)
	return nil
}

// Watch starts a countdown for the transaction created at createdAt. Watching
// the same transaction twice is a no-op.
func (w *ExpiryWatcher) Watch(id uuid.UUID, createdAt time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.timers[id]; ok {
		return
	}

	timer := countdown.NewTimer(createdAt, w.window, func() {
		w.expire(id)
	})
	w.timers[id] = timer
	timer.Start()
}

// Forget cancels the countdown for a transaction that no longer needs one,
// e.g. after a payment proof arrived or the user canceled.
func (w *ExpiryWatcher) Forget(id uuid.UUID) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.timers[id]; ok {
		timer.Stop()
		delete(w.timers, id)
	}
}

func (w *ExpiryWatcher) expire(id uuid.UUID) {
	w.mu.Lock()
	delete(w.timers, id)
	w.mu.Unlock()

	if _, err := w.txns.Finalize(id, models.StatusExpired); err != nil {
		// the transaction may have moved on (proof uploaded, canceled)
		// between the tick and the lock; that is not a failure
		if errors.Is(err, ErrIllegalTransition) || errors.Is(err, gorm.ErrRecordNotFound) {
			return
		}
		log.Printf("[Expiry] failed to expire transaction %s: %v", id, err)
		return
	}
	log.Printf("[Expiry] transaction %s expired", id)
}

// Sweep expires every transaction whose payment window has already closed.
func (w *ExpiryWatcher) Sweep() {
	deadline := time.Now().Add(-w.window)

	var overdue []models.Transaction
	if err := w.db.Where("status = ? AND created_at < ?", models.StatusWaitingForPayment, deadline).
		Find(&overdue).Error; err != nil {
		log.Printf("[Expiry] sweep query failed: %v", err)
		return
	}

	for _, txn := range overdue {
		w.Forget(txn.ID)
		w.expire(txn.ID)
	}
}

func (w *ExpiryWatcher) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			w.Sweep()
		}
	}
}

// Stop cancels the sweep loop and every outstanding timer.
func (w *ExpiryWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stop)
	})

	w.mu.Lock()
	defer w.mu.Unlock()
	for id, timer := range w.timers {
		timer.Stop()
		delete(w.timers, id)
	}
}
