package coa

import "time"

// CreateAccountRequest is the JSON payload for account creation.
type CreateAccountRequest struct {
	Number       string `json:"number" validate:"required,len=6,numeric"`
	Name         string `json:"name" validate:"required,max=100"`
	AccountType  string `json:"account_type" validate:"required"`
	Description  string `json:"description"`
	ParentNumber string `json:"parent_number" validate:"omitempty,len=6,numeric"`
	RequestedBy  string `json:"requested_by" validate:"omitempty,max=100"`
}

// UpdateAccountRequest carries partial edits; absent fields stay unchanged.
type UpdateAccountRequest struct {
	Name         *string `json:"name" validate:"omitempty,max=100"`
	Description  *string `json:"description"`
	ParentNumber *string `json:"parent_number" validate:"omitempty,len=6,numeric|eq="`
	Actor        string  `json:"actor" validate:"omitempty,max=100"`
}

// StatusActionRequest is the payload for workflow actions.
type StatusActionRequest struct {
	Reason      string     `json:"reason"`
	RequestedBy string     `json:"requested_by" validate:"omitempty,max=100"`
	ApprovedBy  string     `json:"approved_by" validate:"omitempty,max=100"`
	ArchiveDate *time.Time `json:"archive_date"`
}

// AccountResponse is the JSON shape of an account.
type AccountResponse struct {
	Number             string     `json:"number"`
	Name               string     `json:"name"`
	AccountType        string     `json:"account_type"`
	Description        string     `json:"description,omitempty"`
	ParentNumber       string     `json:"parent_number,omitempty"`
	Status             Status     `json:"status"`
	IsActive           bool       `json:"is_active"`
	StatusChangeDate   *time.Time `json:"status_change_date,omitempty"`
	StatusChangeReason string     `json:"status_change_reason,omitempty"`
	RequestedBy        string     `json:"requested_by,omitempty"`
	RequestedDate      *time.Time `json:"requested_date,omitempty"`
	ApprovedBy         string     `json:"approved_by,omitempty"`
	ApprovedDate       *time.Time `json:"approved_date,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// HistoryResponse is the JSON shape of one ledger entry.
type HistoryResponse struct {
	ID            string    `json:"id"`
	Status        Status    `json:"status"`
	EffectiveDate string    `json:"effective_date"`
	Notes         string    `json:"notes,omitempty"`
	CreatedBy     string    `json:"created_by,omitempty"`
	RequestedBy   string    `json:"requested_by,omitempty"`
	ApprovedBy    string    `json:"approved_by,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// AccountTypeResponse is the JSON shape of one registry entry.
type AccountTypeResponse struct {
	Name          string `json:"name"`
	NormalBalance string `json:"normal_balance"`
	Description   string `json:"description"`
	RangeMin      int    `json:"range_min"`
	RangeMax      int    `json:"range_max"`
}

func toHistoryResponse(e HistoryEntry) HistoryResponse {
	return HistoryResponse{
		ID:            e.ID.String(),
		Status:        e.Status,
		EffectiveDate: e.EffectiveDate.Format("2006-01-02"),
		Notes:         e.Notes,
		CreatedBy:     e.CreatedBy,
		RequestedBy:   e.RequestedBy,
		ApprovedBy:    e.ApprovedBy,
		CreatedAt:     e.CreatedAt,
	}
}
