package lead

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arborlead-service/internal/domain/user"
	xerrors "arborlead-service/internal/pkg/errors"
)

func TestParseStatus(t *testing.T) {
	st, err := ParseStatus("New")
	require.NoError(t, err)
	assert.Equal(t, StatusNew, st)

	st, err = ParseStatus("  quoted ")
	require.NoError(t, err)
	assert.Equal(t, StatusQuoted, st)

	_, err = ParseStatus("bogus")
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
}

func TestParseStatusLegacyAliases(t *testing.T) {
	st, err := ParseStatus("contacted")
	require.NoError(t, err)
	assert.Equal(t, StatusAssigned, st)

	st, err = ParseStatus("CLOSED")
	require.NoError(t, err)
	assert.Equal(t, StatusDeclined, st)
}

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to Status }{
		{StatusNew, StatusAssigned},
		{StatusNew, StatusExpired},
		{StatusAssigned, StatusAccepted},
		{StatusAssigned, StatusRejected},
		{StatusAccepted, StatusQuoted},
		{StatusQuoted, StatusApproved},
		{StatusQuoted, StatusDeclined},
		{StatusRejected, StatusAssigned},
		{StatusApproved, StatusCompleted},
	}
	for _, tc := range allowed {
		assert.True(t, CanTransition(tc.from, tc.to), "%s -> %s should be allowed", tc.from, tc.to)
	}

	denied := []struct{ from, to Status }{
		{StatusNew, StatusAccepted},
		{StatusNew, StatusQuoted},
		{StatusAssigned, StatusQuoted},
		{StatusAccepted, StatusApproved},
		{StatusDeclined, StatusAssigned},
		{StatusCompleted, StatusNew},
		{StatusExpired, StatusAssigned},
	}
	for _, tc := range denied {
		assert.False(t, CanTransition(tc.from, tc.to), "%s -> %s should be denied", tc.from, tc.to)
	}
}

func TestTerminal(t *testing.T) {
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusDeclined.Terminal())
	assert.True(t, StatusExpired.Terminal())
	assert.False(t, StatusNew.Terminal())
	assert.False(t, StatusQuoted.Terminal())
}

func TestAuthorizeAdminBypass(t *testing.T) {
	// Admins may force transitions the table denies.
	assert.NoError(t, Authorize(StatusNew, StatusAccepted, user.RoleAdmin, false))
	assert.NoError(t, Authorize(StatusCompleted, StatusNew, user.RoleAdmin, false))
}

func TestAuthorizePartner(t *testing.T) {
	// Table-backed transition on an owned lead.
	assert.NoError(t, Authorize(StatusAssigned, StatusAccepted, user.RolePartner, true))

	// Not the partner's lead.
	err := Authorize(StatusAssigned, StatusAccepted, user.RolePartner, false)
	assert.ErrorIs(t, err, xerrors.ErrForbidden)

	// Table denies skipping acceptance.
	err = Authorize(StatusNew, StatusAccepted, user.RolePartner, true)
	assert.ErrorIs(t, err, xerrors.ErrInvalidTransition)
}

func TestAuthorizePartnerRecall(t *testing.T) {
	// Recall to an earlier stage is allowed outside the table.
	assert.NoError(t, Authorize(StatusQuoted, StatusAssigned, user.RolePartner, true))
	assert.NoError(t, Authorize(StatusAccepted, StatusNew, user.RolePartner, true))

	// Terminal leads cannot be recalled.
	err := Authorize(StatusCompleted, StatusAssigned, user.RolePartner, true)
	assert.ErrorIs(t, err, xerrors.ErrInvalidTransition)

	err = Authorize(StatusExpired, StatusNew, user.RolePartner, true)
	assert.ErrorIs(t, err, xerrors.ErrInvalidTransition)
}

func TestAuthorizeUnknownRole(t *testing.T) {
	err := Authorize(StatusAssigned, StatusAccepted, user.Role("customer"), true)
	assert.ErrorIs(t, err, xerrors.ErrForbidden)
}

func TestRecallTarget(t *testing.T) {
	withPartner := &Lead{
		Status:            StatusQuoted,
		AssignedPartnerID: sql.NullInt64{Int64: 7, Valid: true},
	}
	target, err := RecallTarget(withPartner)
	require.NoError(t, err)
	assert.Equal(t, StatusAssigned, target)

	withoutPartner := &Lead{Status: StatusAssigned}
	target, err = RecallTarget(withoutPartner)
	require.NoError(t, err)
	assert.Equal(t, StatusNew, target)

	terminal := &Lead{Status: StatusDeclined}
	_, err = RecallTarget(terminal)
	assert.ErrorIs(t, err, xerrors.ErrInvalidTransition)
}

func TestCustomerDecision(t *testing.T) {
	assert.Equal(t, StatusApproved, CustomerDecision(true))
	assert.Equal(t, StatusDeclined, CustomerDecision(false))
}
