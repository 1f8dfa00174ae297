// Package selection remembers the discount choices a user has made for an
// in-progress transaction, so a reload of the transaction view starts from the
// same checkboxes. Entries live as one JSON file per transaction; when the
// backing directory is unusable the store degrades to memory-only and logs,
// it never surfaces storage errors to the caller.
package selection

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/finzzzi/event-management-api/internal/pricing"
)

// Store persists per-transaction discount selections.
type Store struct {
	dir string

	mu     sync.RWMutex
	memory map[uuid.UUID]pricing.Selection
}

// NewStore opens a store rooted at dir. An empty dir, or a dir that cannot be
// created, yields a memory-only store.
func NewStore(dir string) *Store {
	s := &Store{memory: make(map[uuid.UUID]pricing.Selection)}

	if dir == "" {
		return s
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Printf("[Selection] storage dir unavailable, falling back to memory: %v", err)
		return s
	}
	s.dir = dir
	return s
}

func key(transactionID uuid.UUID) string {
	return fmt.Sprintf("transaction-%s-checkboxes", transactionID)
}

func (s *Store) path(transactionID uuid.UUID) string {
	return filepath.Join(s.dir, key(transactionID)+".json")
}

// Save writes the selection for a transaction. Storage failures are logged and
// the entry is kept in memory instead.
func (s *Store) Save(transactionID uuid.UUID, sel pricing.Selection) {
	s.mu.Lock()
	s.memory[transactionID] = sel
	s.mu.Unlock()

	if s.dir == "" {
		return
	}

	data, err := json.Marshal(sel)
	if err != nil {
		log.Printf("[Selection] marshal failed for %s: %v", key(transactionID), err)
		return
	}
	if err := os.WriteFile(s.path(transactionID), data, 0o644); err != nil {
		log.Printf("[Selection] write failed for %s: %v", key(transactionID), err)
	}
}

// Load returns the last-saved selection for a transaction, or the zero-value
// defaults (all unchecked, no points) when nothing was saved.
func (s *Store) Load(transactionID uuid.UUID) pricing.Selection {
	if s.dir != "" {
		data, err := os.ReadFile(s.path(transactionID))
		if err == nil {
			var sel pricing.Selection
			if err := json.Unmarshal(data, &sel); err == nil {
				return sel
			}
			log.Printf("[Selection] corrupt entry %s: %v", key(transactionID), err)
		} else if !os.IsNotExist(err) {
			log.Printf("[Selection] read failed for %s: %v", key(transactionID), err)
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.memory[transactionID]
}

// Clear removes the saved selection for a transaction.
func (s *Store) Clear(transactionID uuid.UUID) {
	s.mu.Lock()
	delete(s.memory, transactionID)
	s.mu.Unlock()

	if s.dir == "" {
		return
	}
	if err := os.Remove(s.path(transactionID)); err != nil && !os.IsNotExist(err) {
		log.Printf("[Selection] remove failed for %s: %v", key(transactionID), err)
	}
}
