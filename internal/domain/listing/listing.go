package listing

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status represents the lifecycle status of a listing.
type Status string

const (
	StatusActive     Status = "ACTIVE"
	StatusProcessing Status = "PROCESSING"
	StatusSold       Status = "SOLD"
)

var (
	ErrNotFound          = errors.New("listing not found")
	ErrNotActive         = errors.New("listing is not active")
	ErrSelfPurchase      = errors.New("cannot purchase own listing")
	ErrAlreadyInProgress = errors.New("listing already has a purchase in progress")
)

// Listing is a ticket sale post created by a seller.
type Listing struct {
	ID        uuid.UUID       `json:"id"`
	SellerID  uuid.UUID       `json:"sellerId"`
	Title     string          `json:"title"`
	Status    Status          `json:"status"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	DeletedAt *time.Time      `json:"-"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// IsDeleted reports whether the listing was soft-deleted by its seller.
func (l *Listing) IsDeleted() bool {
	return l.DeletedAt != nil
}

// IsValid reports whether s is a known listing status.
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusProcessing, StatusSold:
		return true
	}
	return false
}
