// internal/domain/lead/status.go
package lead

import (
	"fmt"
	"strings"

	"arborlead-service/internal/domain/user"
	xerrors "arborlead-service/internal/pkg/errors"
)

// Status is the canonical lead status vocabulary. The pre-migration
// system carried a second, overlapping vocabulary ({contacted, closed});
// those values are accepted on input as aliases only.
type Status string

const (
	StatusNew       Status = "new"
	StatusAssigned  Status = "assigned"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusQuoted    Status = "quoted"
	StatusApproved  Status = "approved"
	StatusDeclined  Status = "declined"
	StatusCompleted Status = "completed"
	StatusExpired   Status = "expired"
)

// legacyAliases maps the retired internal vocabulary onto the canonical one.
var legacyAliases = map[string]Status{
	"contacted": StatusAssigned,
	"closed":    StatusDeclined,
}

// ParseStatus normalizes a status string, resolving legacy aliases.
func ParseStatus(s string) (Status, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	if alias, ok := legacyAliases[normalized]; ok {
		return alias, nil
	}
	switch st := Status(normalized); st {
	case StatusNew, StatusAssigned, StatusAccepted, StatusRejected,
		StatusQuoted, StatusApproved, StatusDeclined, StatusCompleted, StatusExpired:
		return st, nil
	}
	return "", fmt.Errorf("%w: unknown lead status %q", xerrors.ErrInvalidInput, s)
}

// transitions is the canonical transition table. Admin actors bypass it.
var transitions = map[Status][]Status{
	StatusNew:       {StatusAssigned, StatusExpired},
	StatusAssigned:  {StatusAccepted, StatusRejected},
	StatusAccepted:  {StatusQuoted},
	StatusQuoted:    {StatusApproved, StatusDeclined},
	StatusRejected:  {StatusAssigned}, // admin re-assign
	StatusApproved:  {StatusCompleted},
	StatusDeclined:  {},
	StatusCompleted: {},
	StatusExpired:   {},
}

// CanTransition reports whether the table permits from -> to.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether a lead in this status has left the workflow.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusDeclined || s == StatusExpired
}

// recallTargets are the statuses a partner may pull a lead back to.
func recallTarget(hasPartner bool) Status {
	if hasPartner {
		return StatusAssigned
	}
	return StatusNew
}

// Authorize validates a requested transition for an actor role.
// ownsLead must be true when a partner is acting on a lead assigned to
// them; it is ignored for admins.
func Authorize(from, to Status, role user.Role, ownsLead bool) error {
	if role == user.RoleAdmin {
		// Admins may force any transition, used for corrections.
		return nil
	}

	if role != user.RolePartner {
		return fmt.Errorf("%w: role %q may not change lead status", xerrors.ErrForbidden, role)
	}
	if !ownsLead {
		return fmt.Errorf("%w: lead is not assigned to this partner", xerrors.ErrForbidden)
	}

	// Partner recall back to NEW or ASSIGNED, refused once terminal.
	if to == StatusNew || to == StatusAssigned {
		if from.Terminal() {
			return fmt.Errorf("%w: cannot recall lead from %s", xerrors.ErrInvalidTransition, from)
		}
		return nil
	}

	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", xerrors.ErrInvalidTransition, from, to)
	}
	return nil
}

// RecallTarget resolves where a recall should land: back to the assigned
// partner's queue when one is attached, otherwise to the unassigned pool.
func RecallTarget(l *Lead) (Status, error) {
	if l.Status.Terminal() {
		return "", fmt.Errorf("%w: cannot recall lead from %s", xerrors.ErrInvalidTransition, l.Status)
	}
	return recallTarget(l.AssignedPartnerID.Valid), nil
}

// CustomerDecision maps a customer's response onto a lead status.
func CustomerDecision(approve bool) Status {
	if approve {
		return StatusApproved
	}
	return StatusDeclined
}
