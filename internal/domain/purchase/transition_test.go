package purchase

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type move struct {
	from Status
	to   Status
	role Role
}

func TestAuthorize_TableIsComplete(t *testing.T) {
	allowed := map[move]bool{
		{StatusNone, StatusPendingPayment, RoleBuyer}:        true,
		{StatusNone, StatusPendingPayment, RoleSystem}:       true,
		{StatusPendingPayment, StatusProcessing, RoleSeller}: true,
		{StatusPendingPayment, StatusCancelled, RoleBuyer}:   true,
		{StatusPendingPayment, StatusCancelled, RoleSeller}:  true,
		{StatusProcessing, StatusCompleted, RoleSeller}:      true,
		{StatusProcessing, StatusCancelled, RoleBuyer}:       true,
		{StatusProcessing, StatusCancelled, RoleSeller}:      true,
		{StatusCompleted, StatusConfirmed, RoleBuyer}:        true,
		{StatusCompleted, StatusConfirmed, RoleSeller}:       true,
		{StatusCompleted, StatusCancelled, RoleBuyer}:        true,
		{StatusCompleted, StatusCancelled, RoleSeller}:       true,
	}

	froms := append([]Status{StatusNone}, AllStatuses...)
	roles := []Role{RoleBuyer, RoleSeller, RoleSystem}
	checked := 0
	for _, from := range froms {
		for _, to := range AllStatuses {
			for _, role := range roles {
				m := move{from, to, role}
				err := Authorize(from, to, role)
				if allowed[m] {
					assert.NoError(t, err, "%s -> %s by %s", from, to, role)
					continue
				}
				require.Error(t, err, "%s -> %s by %s", from, to, role)
				assert.True(t, errors.Is(err, ErrInvalidTransition))
				var terr *TransitionError
				require.True(t, errors.As(err, &terr))
				assert.Equal(t, from, terr.From)
				assert.Equal(t, to, terr.To)
				assert.Equal(t, role, terr.Role)
				checked++
			}
		}
	}
	assert.Equal(t, len(froms)*len(AllStatuses)*len(roles)-len(allowed), checked)
}

func TestAuthorize_TerminalStatesAreFinal(t *testing.T) {
	for _, from := range []Status{StatusConfirmed, StatusCancelled} {
		assert.True(t, from.IsTerminal())
		for _, to := range AllStatuses {
			for _, role := range []Role{RoleBuyer, RoleSeller, RoleSystem} {
				assert.False(t, CanTransition(from, to, role), "%s -> %s by %s", from, to, role)
			}
		}
	}
}

func TestTransitionError_Message(t *testing.T) {
	err := &TransitionError{From: StatusNone, To: StatusCompleted, Role: RoleSeller}
	assert.Equal(t, "invalid status transition NONE -> COMPLETED by SELLER", err.Error())
}
