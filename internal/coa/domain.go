// Package coa implements the chart-of-accounts registry: account lifecycle
// workflow, number range validation, hierarchy checks and status history.
package coa

import (
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle state of an account.
type Status string

const (
	StatusActive            Status = "ACTIVE"
	StatusArchived          Status = "ARCHIVED"
	StatusPendingApproval   Status = "PENDING_APPROVAL"
	StatusPendingArchival   Status = "PENDING_ARCHIVAL"
	StatusPendingUnarchival Status = "PENDING_UNARCHIVAL"
)

// validTransitions defines which statuses each status may move to.
var validTransitions = map[Status][]Status{
	StatusActive:            {StatusArchived, StatusPendingArchival},
	StatusArchived:          {StatusActive, StatusPendingUnarchival},
	StatusPendingApproval:   {StatusActive, StatusArchived},
	StatusPendingArchival:   {StatusActive, StatusArchived},
	StatusPendingUnarchival: {StatusActive, StatusArchived},
}

// IsValid reports whether the status is a recognized value.
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusArchived, StatusPendingApproval, StatusPendingArchival, StatusPendingUnarchival:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether the workflow allows moving to target.
func (s Status) CanTransitionTo(target Status) bool {
	for _, t := range validTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// ValidTargets returns the statuses reachable from s.
func (s Status) ValidTargets() []Status {
	return append([]Status(nil), validTransitions[s]...)
}

// Settled collapses pending workflow states to the state they report as.
// An account pending archival is still active from a reporting perspective,
// and one pending unarchival is still archived.
func (s Status) Settled() Status {
	switch s {
	case StatusPendingArchival:
		return StatusActive
	case StatusPendingUnarchival:
		return StatusArchived
	default:
		return s
	}
}

// Account is a node in the chart of accounts.
type Account struct {
	ID                 int64
	Number             string
	Name               string
	TypeName           string
	Description        string
	ParentID           *int64
	ParentNumber       string
	Status             Status
	IsActive           bool
	StatusChangeDate   *time.Time
	StatusChangeReason string
	RequestedBy        string
	RequestedDate      *time.Time
	ApprovedBy         string
	ApprovedDate       *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// HistoryEntry is one append-only record in the status history ledger.
type HistoryEntry struct {
	ID            uuid.UUID
	AccountID     int64
	Status        Status
	EffectiveDate time.Time
	Notes         string
	CreatedBy     string
	RequestedBy   string
	ApprovedBy    string
	CreatedAt     time.Time
}

// AccountStatusAsOf pairs an account with its latest ledger status on or
// before a reporting date. Latest is nil when no entry existed yet.
type AccountStatusAsOf struct {
	Account Account
	Latest  *Status
}

// ListFilters narrows account listings.
type ListFilters struct {
	Status   Status
	TypeName string
	Search   string
	Page     int
	Limit    int
}
