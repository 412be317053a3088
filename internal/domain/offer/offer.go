package offer

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tixswap/tixswap/internal/domain/validation"
)

// Status represents offer status.
type Status string

const (
	StatusOpen   Status = "OPEN"
	StatusClosed Status = "CLOSED"
)

// ProposalStatus represents proposal status.
type ProposalStatus string

const (
	ProposalPending  ProposalStatus = "PENDING"
	ProposalAccepted ProposalStatus = "ACCEPTED"
	ProposalRejected ProposalStatus = "REJECTED"
)

var (
	ErrOfferNotFound     = errors.New("offer not found")
	ErrProposalNotFound  = errors.New("proposal not found")
	ErrOfferClosed       = errors.New("offer is closed")
	ErrSelfProposal      = errors.New("cannot propose on own offer")
	ErrDuplicateProposal = errors.New("proposal already submitted for this offer")
	ErrNotAuthorized     = errors.New("only the offer requester may do this")
	ErrAlreadyProcessed  = errors.New("proposal already processed")
)

// Criteria describes the ticket a buyer is asking for.
type Criteria struct {
	EventName         string          `json:"eventName"`
	EventDate         *time.Time      `json:"eventDate,omitempty"`
	MaxPrice          decimal.Decimal `json:"maxPrice"`
	Quantity          int             `json:"quantity"`
	SectionPreference string          `json:"sectionPreference,omitempty"`
}

// Validate checks the criteria fields and normalizes the event name.
func (c *Criteria) Validate() error {
	c.EventName = strings.TrimSpace(c.EventName)
	if c.EventName == "" {
		return validation.New("eventName", "required")
	}
	if c.Quantity < 1 {
		return validation.New("quantity", "must be at least 1")
	}
	if c.MaxPrice.IsNegative() {
		return validation.New("maxPrice", "must not be negative")
	}
	return nil
}

// Offer is a buyer's open request for a ticket.
type Offer struct {
	ID          uuid.UUID `json:"id"`
	RequesterID uuid.UUID `json:"requesterId"`
	Criteria    Criteria  `json:"criteria"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// NewOffer creates an open offer.
func NewOffer(requesterID uuid.UUID, criteria Criteria, now time.Time) *Offer {
	return &Offer{
		ID:          uuid.New(),
		RequesterID: requesterID,
		Criteria:    criteria,
		Status:      StatusOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// IsOpen reports whether the offer still accepts proposals.
func (o *Offer) IsOpen() bool {
	return o.Status == StatusOpen
}

// Proposal is a seller's bid against an offer.
type Proposal struct {
	ID          uuid.UUID       `json:"id"`
	OfferID     uuid.UUID       `json:"offerId"`
	ProposerID  uuid.UUID       `json:"proposerId"`
	Price       decimal.Decimal `json:"price"`
	SectionInfo string          `json:"sectionInfo"`
	Status      ProposalStatus  `json:"status"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// NewProposal creates a pending proposal.
func NewProposal(offerID, proposerID uuid.UUID, price decimal.Decimal, sectionInfo string, now time.Time) *Proposal {
	return &Proposal{
		ID:          uuid.New(),
		OfferID:     offerID,
		ProposerID:  proposerID,
		Price:       price,
		SectionInfo: strings.TrimSpace(sectionInfo),
		Status:      ProposalPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// IsPending reports whether the proposal can still be accepted or rejected.
func (p *Proposal) IsPending() bool {
	return p.Status == ProposalPending
}
