package purchase

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status represents the lifecycle status of a purchase.
type Status string

const (
	// StatusNone is the implicit state before a purchase exists.
	StatusNone           Status = ""
	StatusPendingPayment Status = "PENDING_PAYMENT"
	StatusProcessing     Status = "PROCESSING"
	StatusCompleted      Status = "COMPLETED"
	StatusConfirmed      Status = "CONFIRMED"
	StatusCancelled      Status = "CANCELLED"
)

// ActiveStatuses are the statuses that hold a listing.
var ActiveStatuses = []Status{StatusPendingPayment, StatusProcessing, StatusCompleted}

// AllStatuses lists every persisted status.
var AllStatuses = []Status{StatusPendingPayment, StatusProcessing, StatusCompleted, StatusConfirmed, StatusCancelled}

var (
	ErrNotFound             = errors.New("purchase not found")
	ErrNotParticipant       = errors.New("caller is not a participant of this purchase")
	ErrDuplicateOrderNumber = errors.New("order number already exists")
	ErrSourceUnavailable    = errors.New("purchased listing or offer is no longer valid")
)

// IsActive reports whether s holds the listing.
func (s Status) IsActive() bool {
	switch s {
	case StatusPendingPayment, StatusProcessing, StatusCompleted:
		return true
	}
	return false
}

// IsValid reports whether s is a persisted purchase status.
func (s Status) IsValid() bool {
	for _, st := range AllStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition may leave s.
func (s Status) IsTerminal() bool {
	return s == StatusConfirmed || s == StatusCancelled
}

// Purchase is the authoritative record of a sale in progress.
type Purchase struct {
	ID          uuid.UUID       `json:"id"`
	OrderNumber string          `json:"orderNumber"`
	ListingID   *uuid.UUID      `json:"listingId,omitempty"`
	OfferID     *uuid.UUID      `json:"offerId,omitempty"`
	ProposalID  *uuid.UUID      `json:"proposalId,omitempty"`
	BuyerID     uuid.UUID       `json:"buyerId"`
	SellerID    uuid.UUID       `json:"sellerId"`
	Title       string          `json:"title"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	TotalPrice  decimal.Decimal `json:"totalPrice"`
	FeeAmount   decimal.Decimal `json:"feeAmount"`
	Status      Status          `json:"status"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// RoleOf returns the role userID plays in the purchase.
func (p *Purchase) RoleOf(userID uuid.UUID) (Role, bool) {
	switch userID {
	case p.BuyerID:
		return RoleBuyer, true
	case p.SellerID:
		return RoleSeller, true
	}
	return "", false
}

// Counterparty returns the participant on the other side of role.
func (p *Purchase) Counterparty(role Role) uuid.UUID {
	if role == RoleSeller {
		return p.BuyerID
	}
	return p.SellerID
}

// Snapshot returns a copy safe to hand to side effects.
func (p *Purchase) Snapshot() Purchase {
	return *p
}

// TransitionRecord is one committed status change of a purchase.
type TransitionRecord struct {
	ID         uuid.UUID `json:"id"`
	PurchaseID uuid.UUID `json:"purchaseId"`
	From       Status    `json:"from"`
	To         Status    `json:"to"`
	ActorID    uuid.UUID `json:"actorId"`
	ActorRole  Role      `json:"actorRole"`
	CreatedAt  time.Time `json:"createdAt"`
}

// NewTransitionRecord records a status change made by actorID acting as role.
func NewTransitionRecord(purchaseID uuid.UUID, from, to Status, actorID uuid.UUID, role Role, at time.Time) *TransitionRecord {
	return &TransitionRecord{
		ID:         uuid.New(),
		PurchaseID: purchaseID,
		From:       from,
		To:         to,
		ActorID:    actorID,
		ActorRole:  role,
		CreatedAt:  at,
	}
}
