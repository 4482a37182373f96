package coa

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// statusChange describes one application of the workflow primitive.
type statusChange struct {
	Target        Status
	Reason        string
	RequestedBy   string
	ApprovedBy    string
	EffectiveDate time.Time // zero means "today"
}

// applyStatusChange runs the generic change-status primitive against a.
// It validates the target against the transition table, mutates the account
// in place and returns the history entry to append. A target equal to the
// current status is a no-op: (nil, false, nil).
//
// The caller owns persistence: the mutated account and the returned entry
// must be written inside a single transaction.
func applyStatusChange(a *Account, ch statusChange, now time.Time) (*HistoryEntry, bool, error) {
	if !ch.Target.IsValid() {
		return nil, false, &InvalidStatusError{Status: ch.Target}
	}
	if a.Status == ch.Target {
		return nil, false, nil
	}
	if !a.Status.CanTransitionTo(ch.Target) {
		return nil, false, &InvalidTransitionError{Current: a.Status, Targets: a.Status.ValidTargets()}
	}

	old := a.Status
	effective := ch.EffectiveDate
	if effective.IsZero() {
		effective = dateOnly(now)
	} else {
		effective = dateOnly(effective)
	}

	a.Status = ch.Target
	a.IsActive = ch.Target == StatusActive
	a.StatusChangeDate = &effective
	a.StatusChangeReason = ch.Reason
	if ch.RequestedBy != "" {
		a.RequestedBy = ch.RequestedBy
		t := now
		a.RequestedDate = &t
	}
	if ch.ApprovedBy != "" {
		a.ApprovedBy = ch.ApprovedBy
		t := now
		a.ApprovedDate = &t
	}
	a.UpdatedAt = now

	createdBy := ch.ApprovedBy
	if createdBy == "" {
		createdBy = ch.RequestedBy
	}
	entry := &HistoryEntry{
		ID:            uuid.New(),
		AccountID:     a.ID,
		Status:        ch.Target,
		EffectiveDate: effective,
		Notes:         composeNotes(old, ch.Target, ch.Reason, ch.RequestedBy, ch.ApprovedBy),
		CreatedBy:     createdBy,
		RequestedBy:   ch.RequestedBy,
		ApprovedBy:    ch.ApprovedBy,
		CreatedAt:     now,
	}
	return entry, true, nil
}

// composeNotes builds the human-readable ledger note for a transition.
func composeNotes(old, target Status, reason, requestedBy, approvedBy string) string {
	notes := strings.TrimSpace(fmt.Sprintf("Changed from %s to %s. %s", old, target, reason))
	switch {
	case requestedBy != "" && approvedBy != "":
		notes += fmt.Sprintf(" Requested by %s. Approved by %s.", requestedBy, approvedBy)
	case requestedBy != "":
		notes += fmt.Sprintf(" Requested by %s.", requestedBy)
	}
	return notes
}

// dateOnly truncates a timestamp to its calendar date in UTC.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
