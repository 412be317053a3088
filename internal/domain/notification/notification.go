package notification

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// SubjectType identifies what a notification is about.
type SubjectType string

const (
	SubjectPurchase SubjectType = "PURCHASE"
	SubjectProposal SubjectType = "PROPOSAL"
)

// Type tags the lifecycle event a notification reports.
type Type string

const (
	TypePurchaseCreated    Type = "PURCHASE_CREATED"
	TypePurchaseProcessing Type = "PURCHASE_PROCESSING"
	TypePurchaseCompleted  Type = "PURCHASE_COMPLETED"
	TypePurchaseConfirmed  Type = "PURCHASE_CONFIRMED"
	TypePurchaseCancelled  Type = "PURCHASE_CANCELLED"
	TypeProposalAccepted   Type = "PROPOSAL_ACCEPTED"
	TypeProposalRejected   Type = "PROPOSAL_REJECTED"
)

var (
	ErrNotFound     = errors.New("notification not found")
	ErrAlreadyRead  = errors.New("notification already read")
	ErrNotRecipient = errors.New("notification belongs to another user")
)

// Notification is a one-way record informing a user of a lifecycle event.
type Notification struct {
	ID          uuid.UUID   `json:"id"`
	RecipientID uuid.UUID   `json:"recipientId"`
	SubjectType SubjectType `json:"subjectType"`
	SubjectID   uuid.UUID   `json:"subjectId"`
	Type        Type        `json:"type"`
	Message     string      `json:"message"`
	Read        bool        `json:"read"`
	CreatedAt   time.Time   `json:"createdAt"`
	ReadAt      *time.Time  `json:"readAt,omitempty"`
}

// NewNotification creates an unread notification
func NewNotification(recipientID uuid.UUID, subjectType SubjectType, subjectID uuid.UUID, typ Type, message string) *Notification {
	return &Notification{
		ID:          uuid.New(),
		RecipientID: recipientID,
		SubjectType: subjectType,
		SubjectID:   subjectID,
		Type:        typ,
		Message:     message,
		CreatedAt:   time.Now().UTC(),
	}
}

// MarkRead marks the notification as read
func (n *Notification) MarkRead(at time.Time) error {
	if n.Read {
		return ErrAlreadyRead
	}
	n.Read = true
	n.ReadAt = &at
	return nil
}

// Filter represents filters for querying notifications
type Filter struct {
	RecipientID uuid.UUID
	UnreadOnly  bool
}
