package coa

import (
	"sort"
	"time"
)

// SortHistory orders entries the way the ledger is read: newest effective
// date first, then newest creation time.
func SortHistory(entries []HistoryEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].EffectiveDate.Equal(entries[j].EffectiveDate) {
			return entries[i].EffectiveDate.After(entries[j].EffectiveDate)
		}
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
}

// StatusOnDate derives the reporting status of an account on a given day
// from its history. Pending workflow states collapse to the state they
// report as. The second return is false when the account did not exist yet.
func StatusOnDate(a Account, history []HistoryEntry, day time.Time) (Status, bool) {
	day = dateOnly(day)

	entries := append([]HistoryEntry(nil), history...)
	SortHistory(entries)
	for _, e := range entries {
		if !dateOnly(e.EffectiveDate).After(day) {
			return e.Status.Settled(), true
		}
	}
	if !dateOnly(a.CreatedAt).After(day) {
		return StatusPendingApproval, true
	}
	return "", false
}

// reportedStatusAsOf resolves the reporting status from a per-account latest
// ledger row, falling back to the initial pending state for accounts that
// existed without any entry on the date.
func reportedStatusAsOf(row AccountStatusAsOf, day time.Time) (Status, bool) {
	if row.Latest != nil {
		return row.Latest.Settled(), true
	}
	if !dateOnly(row.Account.CreatedAt).After(dateOnly(day)) {
		return StatusPendingApproval, true
	}
	return "", false
}
