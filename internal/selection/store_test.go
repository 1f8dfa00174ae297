package selection

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/finzzzi/event-management-api/internal/pricing"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	store := NewStore(t.TempDir())
	id := uuid.New()

	sel := pricing.Selection{UsePoints: true, PointsAmount: 25000, UseCoupon: true}
	store.Save(id, sel)

	if got := store.Load(id); got != sel {
		t.Errorf("loaded %+v, want %+v", got, sel)
	}
}

func TestLoadDefaultsWhenAbsent(t *testing.T) {
	store := NewStore(t.TempDir())

	got := store.Load(uuid.New())
	if got != (pricing.Selection{}) {
		t.Errorf("loaded %+v, want zero-value defaults", got)
	}
}

func TestClearRemovesEntry(t *testing.T) {
	store := NewStore(t.TempDir())
	id := uuid.New()

	store.Save(id, pricing.Selection{UseVoucher: true})
	store.Clear(id)
	store.Clear(id) // clearing twice is fine

	if got := store.Load(id); got != (pricing.Selection{}) {
		t.Errorf("loaded %+v after clear, want defaults", got)
	}
}

func TestSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	id := uuid.New()
	sel := pricing.Selection{UsePoints: true, PointsAmount: 1000, UseVoucher: true}

	NewStore(dir).Save(id, sel)

	if got := NewStore(dir).Load(id); got != sel {
		t.Errorf("loaded %+v from reopened store, want %+v", got, sel)
	}
}

func TestStorageKeyFormat(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	id := uuid.New()

	store.Save(id, pricing.Selection{UseCoupon: true})

	want := filepath.Join(dir, "transaction-"+id.String()+"-checkboxes.json")
	if _, err := os.Stat(want); err != nil {
		t.Errorf("expected entry at %s: %v", want, err)
	}
}

func TestMemoryFallbackNeverErrors(t *testing.T) {
	// a file where the directory should be forces the fallback path
	base := t.TempDir()
	blocked := filepath.Join(base, "occupied")
	if err := os.WriteFile(blocked, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	store := NewStore(filepath.Join(blocked, "nested"))
	id := uuid.New()
	sel := pricing.Selection{UsePoints: true, PointsAmount: 500}

	store.Save(id, sel)
	if got := store.Load(id); got != sel {
		t.Errorf("memory fallback loaded %+v, want %+v", got, sel)
	}

	store.Clear(id)
	if got := store.Load(id); got != (pricing.Selection{}) {
		t.Errorf("memory fallback loaded %+v after clear, want defaults", got)
	}
}
