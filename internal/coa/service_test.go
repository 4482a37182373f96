package coa

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chartkeep/chartkeep/internal/shared"
)

type memoryRepo struct {
	accounts map[int64]Account
	byNumber map[string]int64
	history  map[int64][]HistoryEntry
	nextID   int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		accounts: make(map[int64]Account),
		byNumber: make(map[string]int64),
		history:  make(map[int64][]HistoryEntry),
	}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) GetByNumber(_ context.Context, number string) (Account, error) {
	id, ok := r.byNumber[number]
	if !ok {
		return Account{}, ErrNotFound
	}
	return r.accounts[id], nil
}

func (r *memoryRepo) List(_ context.Context, filters ListFilters) ([]Account, int, error) {
	var out []Account
	for _, a := range r.accounts {
		if filters.Status != "" && a.Status != filters.Status {
			continue
		}
		if filters.TypeName != "" && a.TypeName != filters.TypeName {
			continue
		}
		if filters.Search != "" && !strings.Contains(a.Number+a.Name+a.Description, filters.Search) {
			continue
		}
		out = append(out, a)
	}
	return out, len(out), nil
}

func (r *memoryRepo) Children(_ context.Context, parentID int64) ([]Account, error) {
	var out []Account
	for _, a := range r.accounts {
		if a.ParentID != nil && *a.ParentID == parentID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memoryRepo) History(_ context.Context, accountID int64) ([]HistoryEntry, error) {
	entries := append([]HistoryEntry(nil), r.history[accountID]...)
	SortHistory(entries)
	return entries, nil
}

func (r *memoryRepo) StatusesAsOf(_ context.Context, dayArg time.Time) ([]AccountStatusAsOf, error) {
	dayArg = dateOnly(dayArg)
	var out []AccountStatusAsOf
	for id, a := range r.accounts {
		if dateOnly(a.CreatedAt).After(dayArg) {
			continue
		}
		entries := append([]HistoryEntry(nil), r.history[id]...)
		SortHistory(entries)
		row := AccountStatusAsOf{Account: a}
		for _, e := range entries {
			if !dateOnly(e.EffectiveDate).After(dayArg) {
				st := e.Status
				row.Latest = &st
				break
			}
		}
		out = append(out, row)
	}
	return out, nil
}

func (t *memoryTx) GetForUpdate(ctx context.Context, number string) (Account, error) {
	return t.repo.GetByNumber(ctx, number)
}

func (t *memoryTx) Insert(_ context.Context, a Account) (int64, error) {
	if _, exists := t.repo.byNumber[a.Number]; exists {
		return 0, ErrDuplicateNumber
	}
	t.repo.nextID++
	a.ID = t.repo.nextID
	t.repo.accounts[a.ID] = a
	t.repo.byNumber[a.Number] = a.ID
	return a.ID, nil
}

func (t *memoryTx) Update(_ context.Context, a Account) error {
	if _, ok := t.repo.accounts[a.ID]; !ok {
		return ErrNotFound
	}
	t.repo.accounts[a.ID] = a
	return nil
}

func (t *memoryTx) Delete(_ context.Context, id int64) error {
	a, ok := t.repo.accounts[id]
	if !ok {
		return ErrNotFound
	}
	delete(t.repo.accounts, id)
	delete(t.repo.byNumber, a.Number)
	delete(t.repo.history, id)
	return nil
}

func (t *memoryTx) AppendHistory(_ context.Context, e HistoryEntry) error {
	t.repo.history[e.AccountID] = append(t.repo.history[e.AccountID], e)
	return nil
}

type memoryAudit struct {
	logs []shared.AuditLog
}

func (a *memoryAudit) Record(_ context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

type countingInvalidator struct {
	calls int
}

func (c *countingInvalidator) Invalidate(context.Context) error {
	c.calls++
	return nil
}

func newTestService(t *testing.T) (*Service, *memoryRepo, *memoryAudit, *countingInvalidator) {
	t.Helper()
	repo := newMemoryRepo()
	audit := &memoryAudit{}
	inv := &countingInvalidator{}
	svc := NewService(repo, audit, inv, nil)
	base := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	var ticks int
	svc.now = func() time.Time {
		ticks++
		return base.Add(time.Duration(ticks) * time.Second)
	}
	return svc, repo, audit, inv
}

func mustCreate(t *testing.T, svc *Service, number, typeName string) Account {
	t.Helper()
	account, err := svc.CreateAccount(context.Background(), CreateAccountInput{
		Number:      number,
		Name:        "Account " + number,
		TypeName:    typeName,
		RequestedBy: "clerk@example.com",
	})
	require.NoError(t, err)
	return account
}

func TestCreateAccountStartsPendingWithInitialHistory(t *testing.T) {
	svc, repo, audit, _ := newTestService(t)
	account := mustCreate(t, svc, "150000", "Asset")

	assert.Equal(t, StatusPendingApproval, account.Status)
	assert.False(t, account.IsActive)
	assert.Equal(t, "clerk@example.com", account.RequestedBy)

	history, err := repo.History(context.Background(), account.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, StatusPendingApproval, history[0].Status)
	assert.Equal(t, "Account created, pending approval.", history[0].Notes)

	require.Len(t, audit.logs, 1)
	assert.Equal(t, "ACCOUNT_CREATE", audit.logs[0].Action)
	assert.Equal(t, "150000", audit.logs[0].EntityID)
}

func TestCreateAccountValidation(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateAccount(ctx, CreateAccountInput{Number: "150000", Name: "X", TypeName: "Imaginary"})
	require.ErrorIs(t, err, ErrUnknownAccountType)

	_, err = svc.CreateAccount(ctx, CreateAccountInput{Number: "250000", Name: "X", TypeName: "Asset"})
	var rangeErr *RangeError
	require.ErrorAs(t, err, &rangeErr)

	_, err = svc.CreateAccount(ctx, CreateAccountInput{Number: "abc123", Name: "X", TypeName: "Asset"})
	require.ErrorIs(t, err, ErrNotNumeric)
}

func TestCreateAccountDuplicateNumber(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	mustCreate(t, svc, "150000", "Asset")
	_, err := svc.CreateAccount(context.Background(), CreateAccountInput{
		Number: "150000", Name: "Dup", TypeName: "Asset",
	})
	require.ErrorIs(t, err, ErrDuplicateNumber)
}

func TestCreateAccountParentChecks(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	parent := mustCreate(t, svc, "150000", "Asset")
	_, err := svc.CreateAccount(ctx, CreateAccountInput{
		Number: "150001", Name: "Child", TypeName: "Asset", ParentNumber: parent.Number,
	})
	require.ErrorIs(t, err, ErrParentNotActive, "pending parents are not selectable")

	_, err = svc.ApproveCreation(ctx, parent.Number, "", "cfo@example.com")
	require.NoError(t, err)

	liability := mustCreate(t, svc, "250000", "Liability")
	_, err = svc.ApproveCreation(ctx, liability.Number, "", "cfo@example.com")
	require.NoError(t, err)

	_, err = svc.CreateAccount(ctx, CreateAccountInput{
		Number: "150002", Name: "Child", TypeName: "Asset", ParentNumber: liability.Number,
	})
	require.ErrorIs(t, err, ErrTypeMismatch)

	child, err := svc.CreateAccount(ctx, CreateAccountInput{
		Number: "150003", Name: "Child", TypeName: "Asset", ParentNumber: parent.Number,
	})
	require.NoError(t, err)
	require.NotNil(t, child.ParentID)
	assert.Equal(t, parent.ID, *child.ParentID)
}

func TestApprovalRoundTrip(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	ctx := context.Background()
	account := mustCreate(t, svc, "150000", "Asset")

	steps := []struct {
		op     func() (bool, error)
		status Status
	}{
		{func() (bool, error) { return svc.ApproveCreation(ctx, account.Number, "ok", "cfo@example.com") }, StatusActive},
		{func() (bool, error) { return svc.RequestArchival(ctx, account.Number, "cleanup", "clerk@example.com") }, StatusPendingArchival},
		{func() (bool, error) { return svc.ApproveArchival(ctx, account.Number, "agreed", "cfo@example.com") }, StatusArchived},
		{func() (bool, error) { return svc.RequestUnarchival(ctx, account.Number, "needed again", "clerk@example.com") }, StatusPendingUnarchival},
		{func() (bool, error) { return svc.ApproveUnarchival(ctx, account.Number, "agreed", "cfo@example.com") }, StatusActive},
	}

	for i, step := range steps {
		before := len(repo.history[account.ID])
		changed, err := step.op()
		require.NoError(t, err, "step %d", i)
		require.True(t, changed, "step %d", i)

		current, err := svc.GetAccount(ctx, account.Number)
		require.NoError(t, err)
		assert.Equal(t, step.status, current.Status, "step %d", i)
		assert.Equal(t, current.Status == StatusActive, current.IsActive, "step %d", i)
		assert.Len(t, repo.history[account.ID], before+1, "step %d appends exactly one entry", i)
	}

	history, err := svc.StatusHistory(ctx, account.Number)
	require.NoError(t, err)
	require.Len(t, history, 6, "creation entry plus five transitions")
	assert.Equal(t, StatusActive, history[0].Status)
}

func TestInvalidTransitionLeavesStateUnchanged(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	ctx := context.Background()
	account := mustCreate(t, svc, "150000", "Asset")

	changed, err := svc.RequestArchival(ctx, account.Number, "too soon", "clerk@example.com")
	require.False(t, changed)
	var transitionErr *InvalidTransitionError
	require.ErrorAs(t, err, &transitionErr)
	assert.Equal(t, StatusPendingApproval, transitionErr.Current)
	assert.ElementsMatch(t, []Status{StatusActive, StatusArchived}, transitionErr.Targets)

	current, err := svc.GetAccount(ctx, account.Number)
	require.NoError(t, err)
	assert.Equal(t, StatusPendingApproval, current.Status)
	assert.Len(t, repo.history[account.ID], 1)
}

func TestRejectCreationDeletesAccountAndFreesNumber(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	ctx := context.Background()
	account := mustCreate(t, svc, "150000", "Asset")

	changed, err := svc.RejectCreation(ctx, account.Number, "typo in number", "cfo@example.com")
	require.NoError(t, err)
	require.True(t, changed)

	_, err = svc.GetAccount(ctx, account.Number)
	require.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, repo.history[account.ID], "history cascades with the account")

	// the number is free for reuse
	recreated := mustCreate(t, svc, "150000", "Asset")
	assert.Equal(t, StatusPendingApproval, recreated.Status)
}

func TestRejectCreationRequiresPendingApproval(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()
	account := mustCreate(t, svc, "150000", "Asset")
	_, err := svc.ApproveCreation(ctx, account.Number, "", "cfo@example.com")
	require.NoError(t, err)

	_, err = svc.RejectCreation(ctx, account.Number, "", "cfo@example.com")
	var transitionErr *InvalidTransitionError
	require.ErrorAs(t, err, &transitionErr)
	assert.Equal(t, StatusActive, transitionErr.Current)
}

func TestDirectActions(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()
	account := mustCreate(t, svc, "150000", "Asset")

	changed, err := svc.Activate(ctx, account.Number, "fast-track", "admin@example.com")
	require.NoError(t, err)
	require.True(t, changed)

	backdate := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	changed, err = svc.Archive(ctx, account.Number, "year-end", "admin@example.com", backdate)
	require.NoError(t, err)
	require.True(t, changed)

	current, err := svc.GetAccount(ctx, account.Number)
	require.NoError(t, err)
	assert.Equal(t, StatusArchived, current.Status)
	require.NotNil(t, current.StatusChangeDate)
	assert.Equal(t, backdate, *current.StatusChangeDate)

	changed, err = svc.Unarchive(ctx, account.Number, "back in use", "admin@example.com")
	require.NoError(t, err)
	require.True(t, changed)

	// unarchiving an already active account is refused by the source guard
	_, err = svc.Unarchive(ctx, account.Number, "", "admin@example.com")
	var transitionErr *InvalidTransitionError
	require.ErrorAs(t, err, &transitionErr)
}

func TestLegacyAliases(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	account := mustCreate(t, svc, "150000", "Asset")
	changed, err := svc.Approve(ctx, account.Number, "", "cfo@example.com")
	require.NoError(t, err)
	require.True(t, changed)
	current, err := svc.GetAccount(ctx, account.Number)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, current.Status)

	other := mustCreate(t, svc, "150001", "Asset")
	changed, err = svc.Reject(ctx, other.Number, "", "cfo@example.com")
	require.NoError(t, err)
	require.True(t, changed)
	_, err = svc.GetAccount(ctx, other.Number)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateAccountHierarchy(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	a := mustCreate(t, svc, "150000", "Asset")
	b := mustCreate(t, svc, "150001", "Asset")
	_, err := svc.ApproveCreation(ctx, a.Number, "", "cfo@example.com")
	require.NoError(t, err)
	_, err = svc.ApproveCreation(ctx, b.Number, "", "cfo@example.com")
	require.NoError(t, err)

	// B under A
	_, err = svc.UpdateAccount(ctx, b.Number, UpdateAccountInput{ParentNumber: &a.Number})
	require.NoError(t, err)

	// A under B closes the loop
	_, err = svc.UpdateAccount(ctx, a.Number, UpdateAccountInput{ParentNumber: &b.Number})
	require.ErrorIs(t, err, ErrCircularReference)

	// self-parent
	_, err = svc.UpdateAccount(ctx, a.Number, UpdateAccountInput{ParentNumber: &a.Number})
	require.ErrorIs(t, err, ErrSelfParent)

	// clearing the parent
	empty := ""
	updated, err := svc.UpdateAccount(ctx, b.Number, UpdateAccountInput{ParentNumber: &empty})
	require.NoError(t, err)
	assert.Nil(t, updated.ParentID)
}

func TestUpdateAccountFrozenWhenArchived(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()
	account := mustCreate(t, svc, "150000", "Asset")
	_, err := svc.Activate(ctx, account.Number, "", "admin@example.com")
	require.NoError(t, err)
	_, err = svc.Archive(ctx, account.Number, "", "admin@example.com", time.Time{})
	require.NoError(t, err)

	name := "New Name"
	_, err = svc.UpdateAccount(ctx, account.Number, UpdateAccountInput{Name: &name})
	require.ErrorIs(t, err, ErrAccountArchived)
}

func TestStatusOnDateThroughService(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()
	account := mustCreate(t, svc, "150000", "Asset")
	_, err := svc.ApproveCreation(ctx, account.Number, "", "cfo@example.com")
	require.NoError(t, err)

	_, ok, err := svc.StatusOnDate(ctx, account.Number, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.False(t, ok, "account did not exist yet")

	st, ok, err := svc.StatusOnDate(ctx, account.Number, time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, StatusActive, st)
}

func TestAccountsByStatusOnDate(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()
	asOf := time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC)

	active := mustCreate(t, svc, "150000", "Asset")
	_, err := svc.ApproveCreation(ctx, active.Number, "", "cfo@example.com")
	require.NoError(t, err)

	pendingArch := mustCreate(t, svc, "150001", "Asset")
	_, err = svc.ApproveCreation(ctx, pendingArch.Number, "", "cfo@example.com")
	require.NoError(t, err)
	_, err = svc.RequestArchival(ctx, pendingArch.Number, "", "clerk@example.com")
	require.NoError(t, err)

	pending := mustCreate(t, svc, "150002", "Asset")

	actives, err := svc.AccountsByStatusOnDate(ctx, StatusActive, asOf)
	require.NoError(t, err)
	numbers := make(map[string]int)
	for _, a := range actives {
		numbers[a.Number]++
	}
	assert.Equal(t, map[string]int{"150000": 1, "150001": 1}, numbers,
		"pending archival collapses to active, each account counted once")

	pendings, err := svc.AccountsByStatusOnDate(ctx, StatusPendingApproval, asOf)
	require.NoError(t, err)
	require.Len(t, pendings, 1)
	assert.Equal(t, pending.Number, pendings[0].Number)

	_, err = svc.AccountsByStatusOnDate(ctx, Status("BOGUS"), asOf)
	var statusErr *InvalidStatusError
	require.ErrorAs(t, err, &statusErr)
}

func TestTransitionsInvalidateReportCache(t *testing.T) {
	svc, _, _, inv := newTestService(t)
	ctx := context.Background()
	account := mustCreate(t, svc, "150000", "Asset")
	created := inv.calls
	require.Positive(t, created)

	_, err := svc.ApproveCreation(ctx, account.Number, "", "cfo@example.com")
	require.NoError(t, err)
	assert.Equal(t, created+1, inv.calls)

	// failed transition does not invalidate
	_, err = svc.ApproveCreation(ctx, account.Number, "", "cfo@example.com")
	require.Error(t, err)
	assert.Equal(t, created+1, inv.calls)
}
