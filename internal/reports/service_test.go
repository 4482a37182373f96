package reports

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chartkeep/chartkeep/internal/coa"
)

type fakeData struct {
	byStatus map[coa.Status][]coa.Account
	calls    int
}

func (f *fakeData) AccountsByStatusOnDate(_ context.Context, status coa.Status, _ time.Time) ([]coa.Account, error) {
	f.calls++
	return f.byStatus[status], nil
}

func (f *fakeData) StatusOnDate(_ context.Context, number string, _ time.Time) (coa.Status, bool, error) {
	if number == "150000" {
		return coa.StatusActive, true, nil
	}
	return "", false, nil
}

func accountNumbers(accounts []coa.Account) []string {
	out := make([]string, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, a.Number)
	}
	return out
}

func newTestReports(t *testing.T) (*Service, *fakeData, *Cache) {
	t.Helper()
	cache, _ := newTestCache(t)
	data := &fakeData{byStatus: map[coa.Status][]coa.Account{
		coa.StatusActive:          {{Number: "150000", Name: "Cash"}, {Number: "250000", Name: "Loans"}},
		coa.StatusArchived:        {{Number: "150001", Name: "Old Cash"}},
		coa.StatusPendingApproval: {},
	}}
	return NewService(data, cache, nil), data, cache
}

func TestAccountsByStatusOnDateCachesSnapshots(t *testing.T) {
	svc, data, _ := newTestReports(t)
	ctx := context.Background()
	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	first, err := svc.AccountsByStatusOnDate(ctx, coa.StatusActive, day)
	require.NoError(t, err)
	assert.Equal(t, []string{"150000", "250000"}, accountNumbers(first))
	assert.Equal(t, 1, data.calls)

	second, err := svc.AccountsByStatusOnDate(ctx, coa.StatusActive, day)
	require.NoError(t, err)
	assert.Equal(t, accountNumbers(first), accountNumbers(second))
	assert.Equal(t, 1, data.calls, "repeat read hits the snapshot")

	// a different day is a different snapshot
	_, err = svc.AccountsByStatusOnDate(ctx, coa.StatusActive, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, 2, data.calls)
}

func TestInvalidateServesFreshSnapshots(t *testing.T) {
	svc, data, cache := newTestReports(t)
	ctx := context.Background()
	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	_, err := svc.AccountsByStatusOnDate(ctx, coa.StatusActive, day)
	require.NoError(t, err)
	require.NoError(t, cache.Invalidate(ctx))

	_, err = svc.AccountsByStatusOnDate(ctx, coa.StatusActive, day)
	require.NoError(t, err)
	assert.Equal(t, 2, data.calls, "version bump orphans the old key")
}

func TestAccountsByStatusOnDateRejectsUnknownStatus(t *testing.T) {
	svc, data, _ := newTestReports(t)

	_, err := svc.AccountsByStatusOnDate(context.Background(), coa.Status("BOGUS"), time.Now())
	var statusErr *coa.InvalidStatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Zero(t, data.calls)
}

func TestStatusOnDatePassThrough(t *testing.T) {
	svc, _, _ := newTestReports(t)

	st, ok, err := svc.StatusOnDate(context.Background(), "150000", time.Now())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, coa.StatusActive, st)

	_, ok, err = svc.StatusOnDate(context.Background(), "999999", time.Now())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWarmPrecomputesSnapshots(t *testing.T) {
	svc, data, _ := newTestReports(t)
	ctx := context.Background()
	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	require.NoError(t, svc.Warm(ctx, day))
	assert.Equal(t, 3, data.calls)

	// dashboards reading after the warm run never touch the repository
	_, err := svc.AccountsByStatusOnDate(ctx, coa.StatusActive, day)
	require.NoError(t, err)
	_, err = svc.AccountsByStatusOnDate(ctx, coa.StatusArchived, day)
	require.NoError(t, err)
	assert.Equal(t, 3, data.calls)
}

func TestUncachedServiceReadsThrough(t *testing.T) {
	data := &fakeData{byStatus: map[coa.Status][]coa.Account{
		coa.StatusActive: {{Number: "150000"}},
	}}
	svc := NewService(data, nil, nil)
	ctx := context.Background()
	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 2; i++ {
		accounts, err := svc.AccountsByStatusOnDate(ctx, coa.StatusActive, day)
		require.NoError(t, err)
		assert.Equal(t, []string{"150000"}, accountNumbers(accounts))
	}
	assert.Equal(t, 2, data.calls)
}
