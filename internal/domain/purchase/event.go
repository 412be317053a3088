package purchase

import "github.com/google/uuid"

// Event describes one committed transition of a purchase.
type Event struct {
	Purchase Purchase
	From     Status
	To       Status
	ActorID  uuid.UUID
	Role     Role
}

// IsCreation reports whether the event created the purchase.
func (e Event) IsCreation() bool {
	return e.From == StatusNone && e.To == StatusPendingPayment
}

// Recipient returns the participant who should hear about the event.
func (e Event) Recipient() uuid.UUID {
	return e.Purchase.Counterparty(e.Role)
}
