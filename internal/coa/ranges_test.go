package coa

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateNumberRange(t *testing.T) {
	tests := []struct {
		name     string
		number   string
		typeName string
		wantErr  error
	}{
		{name: "asset in range", number: "150000", typeName: "Asset"},
		{name: "asset lower bound", number: "100000", typeName: "Asset"},
		{name: "asset upper bound", number: "199999", typeName: "Asset"},
		{name: "liability in range", number: "250000", typeName: "Liability"},
		{name: "equity in range", number: "295000", typeName: "Equity"},
		{name: "ga in range", number: "650000", typeName: "G&A"},
		{name: "liability number for asset", number: "250000", typeName: "Asset", wantErr: &RangeError{}},
		{name: "asset number for revenue", number: "150000", typeName: "Revenue", wantErr: &RangeError{}},
		{name: "alphanumeric", number: "abc123", typeName: "Asset", wantErr: ErrNotNumeric},
		{name: "too short", number: "12345", typeName: "Asset", wantErr: ErrNotNumeric},
		{name: "too long", number: "1234567", typeName: "Asset", wantErr: ErrNotNumeric},
		{name: "negative", number: "-12345", typeName: "Asset", wantErr: ErrNotNumeric},
		{name: "unknown type", number: "150000", typeName: "Contra", wantErr: ErrUnknownAccountType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateNumberRange(tt.number, tt.typeName)
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			var rangeErr *RangeError
			if errors.As(tt.wantErr, &rangeErr) {
				require.ErrorAs(t, err, &rangeErr)
				require.Equal(t, tt.number, rangeErr.Number)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRangeErrorMentionsBounds(t *testing.T) {
	err := ValidateNumberRange("250000", "Asset")
	var rangeErr *RangeError
	require.ErrorAs(t, err, &rangeErr)
	require.Equal(t, 100000, rangeErr.Min)
	require.Equal(t, 199999, rangeErr.Max)
	require.Contains(t, rangeErr.Error(), "100000")
	require.Contains(t, rangeErr.Error(), "199999")
}

func TestRangesCoverAllRegisteredTypes(t *testing.T) {
	for _, at := range AccountTypes() {
		rng, ok := RangeForType(at.Name)
		require.True(t, ok, "type %s has no range", at.Name)
		require.Less(t, rng.Min, rng.Max)
	}
}

func TestRangesAreDisjoint(t *testing.T) {
	types := AccountTypes()
	for i := 0; i < len(types); i++ {
		a, _ := RangeForType(types[i].Name)
		for j := i + 1; j < len(types); j++ {
			b, _ := RangeForType(types[j].Name)
			overlap := a.Min <= b.Max && b.Min <= a.Max
			require.False(t, overlap, "%s and %s ranges overlap", types[i].Name, types[j].Name)
		}
	}
}
