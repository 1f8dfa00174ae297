package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Event is a ticketed event published by an organizer. Price is in IDR,
// Quota is the number of seats still available for purchase.
type Event struct {
	BaseModel
	OrganizerID uuid.UUID `gorm:"type:uuid;index" json:"organizer_id"`
	Organizer   *User     `json:"organizer,omitempty"`
	Name        string    `json:"name"`
	Category    string    `gorm:"index" json:"category"`
	Price       int64     `json:"price"`
	Quota       int       `json:"quota"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	Location    string    `gorm:"index" json:"location"`
	Description string    `json:"description"`
	Vouchers    []Voucher `json:"vouchers,omitempty"`
}

// Voucher is an event-scoped discount with a usage quota and validity window.
type Voucher struct {
	BaseModel
	EventID   uuid.UUID      `gorm:"type:uuid;index" json:"event_id"`
	Name      string         `json:"name"`
	Nominal   int64          `json:"nominal"`
	Quota     int            `json:"quota"`
	StartDate time.Time      `json:"start_date"`
	EndDate   time.Time      `json:"end_date"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

// Usable reports whether the voucher can be applied at the given time.
func (v *Voucher) Usable(now time.Time) bool {
	return v.Quota > 0 && now.Before(v.EndDate) && !now.Before(v.StartDate)
}

// Review is a customer rating for an event they attended. One review per
// transaction.
type Review struct {
	BaseModel
	UserID        uuid.UUID `gorm:"type:uuid;index" json:"user_id"`
	User          *User     `json:"user,omitempty"`
	EventID       uuid.UUID `gorm:"type:uuid;index" json:"event_id"`
	Event         *Event    `json:"event,omitempty"`
	TransactionID uuid.UUID `gorm:"type:uuid;uniqueIndex" json:"transaction_id"`
	Rating        int       `json:"rating"`
	Comment       string    `json:"comment"`
}
