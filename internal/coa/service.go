package coa

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/chartkeep/chartkeep/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetByNumber(ctx context.Context, number string) (Account, error)
	List(ctx context.Context, filters ListFilters) ([]Account, int, error)
	Children(ctx context.Context, parentID int64) ([]Account, error)
	History(ctx context.Context, accountID int64) ([]HistoryEntry, error)
	StatusesAsOf(ctx context.Context, day time.Time) ([]AccountStatusAsOf, error)
}

// TxRepository exposes single-account write operations under the row lock.
type TxRepository interface {
	GetForUpdate(ctx context.Context, number string) (Account, error)
	Insert(ctx context.Context, a Account) (int64, error)
	Update(ctx context.Context, a Account) error
	Delete(ctx context.Context, id int64) error
	AppendHistory(ctx context.Context, e HistoryEntry) error
}

// AuditPort records workflow actions.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ReportInvalidator drops cached report snapshots after a transition.
type ReportInvalidator interface {
	Invalidate(ctx context.Context) error
}

// Service orchestrates the account lifecycle workflow.
type Service struct {
	repo    RepositoryPort
	audit   AuditPort
	reports ReportInvalidator
	logger  *slog.Logger
	now     func() time.Time
}

// NewService constructs the chart-of-accounts service. audit and reports may
// be nil.
func NewService(repo RepositoryPort, audit AuditPort, reports ReportInvalidator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, reports: reports, logger: logger, now: time.Now}
}

// CreateAccountInput describes a new account request.
type CreateAccountInput struct {
	Number       string
	Name         string
	TypeName     string
	Description  string
	ParentNumber string
	RequestedBy  string
}

// CreateAccount validates and persists a new account in PENDING_APPROVAL,
// writing the initial history entry in the same transaction.
func (s *Service) CreateAccount(ctx context.Context, input CreateAccountInput) (Account, error) {
	if _, ok := TypeByName(input.TypeName); !ok {
		return Account{}, fmt.Errorf("%w: %q", ErrUnknownAccountType, input.TypeName)
	}
	if err := ValidateNumberRange(input.Number, input.TypeName); err != nil {
		return Account{}, err
	}
	if strings.TrimSpace(input.Name) == "" {
		return Account{}, fmt.Errorf("coa: account name is required")
	}

	now := s.now()
	account := Account{
		Number:      input.Number,
		Name:        input.Name,
		TypeName:    input.TypeName,
		Description: input.Description,
		Status:      StatusPendingApproval,
		IsActive:    false,
		RequestedBy: input.RequestedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if input.RequestedBy != "" {
		t := now
		account.RequestedDate = &t
	}

	if input.ParentNumber != "" {
		parent, err := s.repo.GetByNumber(ctx, input.ParentNumber)
		if err != nil {
			return Account{}, fmt.Errorf("coa: resolve parent: %w", err)
		}
		if parent.TypeName != input.TypeName {
			return Account{}, ErrTypeMismatch
		}
		if !parent.IsActive {
			return Account{}, ErrParentNotActive
		}
		account.ParentID = &parent.ID
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.Insert(ctx, account)
		if err != nil {
			return err
		}
		account.ID = id
		return tx.AppendHistory(ctx, HistoryEntry{
			ID:            uuid.New(),
			AccountID:     id,
			Status:        StatusPendingApproval,
			EffectiveDate: dateOnly(now),
			Notes:         "Account created, pending approval.",
			CreatedBy:     input.RequestedBy,
			RequestedBy:   input.RequestedBy,
			CreatedAt:     now,
		})
	})
	if err != nil {
		return Account{}, err
	}
	s.recordAudit(ctx, "ACCOUNT_CREATE", input.RequestedBy, account, map[string]any{"type": account.TypeName})
	s.invalidateReports(ctx)
	return account, nil
}

// UpdateAccountInput carries partial edits. Nil means leave unchanged; an
// empty ParentNumber clears the parent.
type UpdateAccountInput struct {
	Name         *string
	Description  *string
	ParentNumber *string
	Actor        string
}

// UpdateAccount edits descriptive fields and re-parents an account,
// re-running hierarchy validation. Archived accounts are frozen.
func (s *Service) UpdateAccount(ctx context.Context, number string, input UpdateAccountInput) (Account, error) {
	var updated Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		a, err := tx.GetForUpdate(ctx, number)
		if err != nil {
			return err
		}
		if a.Status == StatusArchived {
			return ErrAccountArchived
		}
		if input.Name != nil {
			if strings.TrimSpace(*input.Name) == "" {
				return fmt.Errorf("coa: account name is required")
			}
			a.Name = *input.Name
		}
		if input.Description != nil {
			a.Description = *input.Description
		}
		if input.ParentNumber != nil {
			if *input.ParentNumber == "" {
				a.ParentID = nil
			} else {
				parent, err := s.repo.GetByNumber(ctx, *input.ParentNumber)
				if err != nil {
					return fmt.Errorf("coa: resolve parent: %w", err)
				}
				if !parent.IsActive {
					return ErrParentNotActive
				}
				if err := ValidateHierarchy(ctx, s.repo, a, parent); err != nil {
					return err
				}
				a.ParentID = &parent.ID
			}
		}
		a.UpdatedAt = s.now()
		if err := tx.Update(ctx, a); err != nil {
			return err
		}
		updated = a
		return nil
	})
	if err != nil {
		return Account{}, err
	}
	s.recordAudit(ctx, "ACCOUNT_UPDATE", input.Actor, updated, nil)
	return updated, nil
}

// transitionOp binds a named workflow operation to the generic primitive.
type transitionOp struct {
	action  string
	actor   string
	sources []Status
	change  statusChange
}

func (s *Service) transition(ctx context.Context, number string, op transitionOp) (bool, error) {
	now := s.now()
	var (
		changed bool
		acc     Account
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		a, err := tx.GetForUpdate(ctx, number)
		if err != nil {
			return err
		}
		if len(op.sources) > 0 && !statusIn(a.Status, op.sources) {
			return &InvalidTransitionError{Current: a.Status, Targets: a.Status.ValidTargets()}
		}
		entry, ok, err := applyStatusChange(&a, op.change, now)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := tx.Update(ctx, a); err != nil {
			return err
		}
		if err := tx.AppendHistory(ctx, *entry); err != nil {
			return err
		}
		acc = a
		changed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if !changed {
		return false, nil
	}
	s.recordAudit(ctx, op.action, op.actor, acc, map[string]any{
		"status": string(acc.Status),
		"reason": acc.StatusChangeReason,
	})
	s.invalidateReports(ctx)
	return true, nil
}

// RequestArchival moves an active account into PENDING_ARCHIVAL.
func (s *Service) RequestArchival(ctx context.Context, number, reason, requestedBy string) (bool, error) {
	return s.transition(ctx, number, transitionOp{
		action:  "ACCOUNT_REQUEST_ARCHIVAL",
		actor:   requestedBy,
		sources: []Status{StatusActive},
		change:  statusChange{Target: StatusPendingArchival, Reason: prefixReason("Archival requested.", reason), RequestedBy: requestedBy},
	})
}

// RequestUnarchival moves an archived account into PENDING_UNARCHIVAL.
func (s *Service) RequestUnarchival(ctx context.Context, number, reason, requestedBy string) (bool, error) {
	return s.transition(ctx, number, transitionOp{
		action:  "ACCOUNT_REQUEST_UNARCHIVAL",
		actor:   requestedBy,
		sources: []Status{StatusArchived},
		change:  statusChange{Target: StatusPendingUnarchival, Reason: prefixReason("Unarchival requested.", reason), RequestedBy: requestedBy},
	})
}

// ApproveCreation activates a pending account.
func (s *Service) ApproveCreation(ctx context.Context, number, reason, approvedBy string) (bool, error) {
	return s.transition(ctx, number, transitionOp{
		action:  "ACCOUNT_APPROVE_CREATION",
		actor:   approvedBy,
		sources: []Status{StatusPendingApproval},
		change:  statusChange{Target: StatusActive, Reason: prefixReason("Creation approved.", reason), ApprovedBy: approvedBy},
	})
}

// ApproveArchival archives an account pending archival.
func (s *Service) ApproveArchival(ctx context.Context, number, reason, approvedBy string) (bool, error) {
	return s.transition(ctx, number, transitionOp{
		action:  "ACCOUNT_APPROVE_ARCHIVAL",
		actor:   approvedBy,
		sources: []Status{StatusPendingArchival},
		change:  statusChange{Target: StatusArchived, Reason: prefixReason("Archival approved.", reason), ApprovedBy: approvedBy},
	})
}

// RejectArchival returns an account pending archival to ACTIVE.
func (s *Service) RejectArchival(ctx context.Context, number, reason, approvedBy string) (bool, error) {
	return s.transition(ctx, number, transitionOp{
		action:  "ACCOUNT_REJECT_ARCHIVAL",
		actor:   approvedBy,
		sources: []Status{StatusPendingArchival},
		change:  statusChange{Target: StatusActive, Reason: prefixReason("Archival request rejected.", reason), ApprovedBy: approvedBy},
	})
}

// ApproveUnarchival reactivates an account pending unarchival.
func (s *Service) ApproveUnarchival(ctx context.Context, number, reason, approvedBy string) (bool, error) {
	return s.transition(ctx, number, transitionOp{
		action:  "ACCOUNT_APPROVE_UNARCHIVAL",
		actor:   approvedBy,
		sources: []Status{StatusPendingUnarchival},
		change:  statusChange{Target: StatusActive, Reason: prefixReason("Unarchival approved.", reason), ApprovedBy: approvedBy},
	})
}

// RejectUnarchival returns an account pending unarchival to ARCHIVED.
func (s *Service) RejectUnarchival(ctx context.Context, number, reason, approvedBy string) (bool, error) {
	return s.transition(ctx, number, transitionOp{
		action:  "ACCOUNT_REJECT_UNARCHIVAL",
		actor:   approvedBy,
		sources: []Status{StatusPendingUnarchival},
		change:  statusChange{Target: StatusArchived, Reason: prefixReason("Unarchival request rejected.", reason), ApprovedBy: approvedBy},
	})
}

// RejectCreation deletes a pending account and its history outright, freeing
// the number for reuse. This is deliberate and irreversible.
func (s *Service) RejectCreation(ctx context.Context, number, reason, approvedBy string) (bool, error) {
	var rejected Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		a, err := tx.GetForUpdate(ctx, number)
		if err != nil {
			return err
		}
		if a.Status != StatusPendingApproval {
			return &InvalidTransitionError{Current: a.Status, Targets: a.Status.ValidTargets()}
		}
		if err := tx.Delete(ctx, a.ID); err != nil {
			return err
		}
		rejected = a
		return nil
	})
	if err != nil {
		return false, err
	}
	s.recordAudit(ctx, "ACCOUNT_REJECT_CREATION", approvedBy, rejected, map[string]any{
		"name":   rejected.Name,
		"reason": reason,
	})
	s.invalidateReports(ctx)
	return true, nil
}

// Activate directly activates an account, bypassing the approval workflow.
// Restricted to privileged callers.
func (s *Service) Activate(ctx context.Context, number, reason, approvedBy string) (bool, error) {
	return s.transition(ctx, number, transitionOp{
		action:  "ACCOUNT_ACTIVATE",
		actor:   approvedBy,
		sources: []Status{StatusPendingApproval, StatusArchived, StatusPendingUnarchival},
		change:  statusChange{Target: StatusActive, Reason: prefixReason("Directly activated.", reason), ApprovedBy: approvedBy},
	})
}

// Archive directly archives an account, bypassing the approval workflow.
// archiveDate backdates the effective date when non-zero.
func (s *Service) Archive(ctx context.Context, number, reason, approvedBy string, archiveDate time.Time) (bool, error) {
	return s.transition(ctx, number, transitionOp{
		action:  "ACCOUNT_ARCHIVE",
		actor:   approvedBy,
		sources: []Status{StatusActive, StatusPendingArchival, StatusPendingApproval},
		change:  statusChange{Target: StatusArchived, Reason: prefixReason("Directly archived.", reason), ApprovedBy: approvedBy, EffectiveDate: archiveDate},
	})
}

// Unarchive directly reactivates an archived account.
func (s *Service) Unarchive(ctx context.Context, number, reason, approvedBy string) (bool, error) {
	return s.transition(ctx, number, transitionOp{
		action:  "ACCOUNT_UNARCHIVE",
		actor:   approvedBy,
		sources: []Status{StatusArchived, StatusPendingUnarchival},
		change:  statusChange{Target: StatusActive, Reason: prefixReason("Directly unarchived.", reason), ApprovedBy: approvedBy},
	})
}

// Approve is a legacy alias for ApproveCreation.
func (s *Service) Approve(ctx context.Context, number, reason, approvedBy string) (bool, error) {
	return s.ApproveCreation(ctx, number, reason, approvedBy)
}

// Reject is a legacy alias for RejectCreation.
func (s *Service) Reject(ctx context.Context, number, reason, approvedBy string) (bool, error) {
	return s.RejectCreation(ctx, number, reason, approvedBy)
}

// GetAccount loads one account by number.
func (s *Service) GetAccount(ctx context.Context, number string) (Account, error) {
	return s.repo.GetByNumber(ctx, number)
}

// ListAccounts returns a filtered page of accounts with the total count.
func (s *Service) ListAccounts(ctx context.Context, filters ListFilters) ([]Account, int, error) {
	if filters.Page < 1 {
		filters.Page = 1
	}
	if filters.Limit < 1 {
		filters.Limit = 50
	}
	return s.repo.List(ctx, filters)
}

// Children returns the direct children of an account, ordered by number.
func (s *Service) Children(ctx context.Context, account Account) ([]Account, error) {
	return s.repo.Children(ctx, account.ID)
}

// StatusHistory returns the account's ledger, newest first.
func (s *Service) StatusHistory(ctx context.Context, number string) ([]HistoryEntry, error) {
	a, err := s.repo.GetByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	entries, err := s.repo.History(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	SortHistory(entries)
	return entries, nil
}

// StatusOnDate answers what the account's reporting status was on day.
// The bool is false when the account did not exist on that date.
func (s *Service) StatusOnDate(ctx context.Context, number string, day time.Time) (Status, bool, error) {
	a, err := s.repo.GetByNumber(ctx, number)
	if err != nil {
		return "", false, err
	}
	entries, err := s.repo.History(ctx, a.ID)
	if err != nil {
		return "", false, err
	}
	st, ok := StatusOnDate(a, entries, day)
	return st, ok, nil
}

// AccountsByStatusOnDate lists the accounts whose reporting status on day
// matches status, using exactly one (the latest) ledger entry per account.
func (s *Service) AccountsByStatusOnDate(ctx context.Context, status Status, day time.Time) ([]Account, error) {
	if !status.IsValid() {
		return nil, &InvalidStatusError{Status: status}
	}
	rows, err := s.repo.StatusesAsOf(ctx, day)
	if err != nil {
		return nil, err
	}
	var accounts []Account
	for _, row := range rows {
		st, ok := reportedStatusAsOf(row, day)
		if ok && st == status {
			accounts = append(accounts, row.Account)
		}
	}
	return accounts, nil
}

func (s *Service) recordAudit(ctx context.Context, action, actor string, a Account, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		Actor:    actor,
		Action:   action,
		Entity:   "account",
		EntityID: a.Number,
		Meta:     meta,
		At:       s.now(),
	})
	if err != nil {
		s.logger.Warn("record audit", slog.Any("error", err))
	}
}

func (s *Service) invalidateReports(ctx context.Context) {
	if s.reports == nil {
		return
	}
	if err := s.reports.Invalidate(ctx); err != nil {
		s.logger.Warn("invalidate report cache", slog.Any("error", err))
	}
}

func prefixReason(prefix, reason string) string {
	return strings.TrimSpace(prefix + " " + reason)
}

func statusIn(s Status, set []Status) bool {
	for _, candidate := range set {
		if candidate == s {
			return true
		}
	}
	return false
}
