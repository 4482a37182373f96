package coa

import (
	"fmt"
	"strconv"
)

// ValidateNumberRange checks that number parses as a 6-digit integer and
// falls inside the range owned by the named account type.
func ValidateNumberRange(number, typeName string) error {
	if len(number) != 6 {
		return fmt.Errorf("%w: %q", ErrNotNumeric, number)
	}
	n, err := strconv.Atoi(number)
	if err != nil || n < 0 {
		return fmt.Errorf("%w: %q", ErrNotNumeric, number)
	}
	r, ok := RangeForType(typeName)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownAccountType, typeName)
	}
	if n < r.Min || n > r.Max {
		return &RangeError{Number: number, TypeName: typeName, Min: r.Min, Max: r.Max}
	}
	return nil
}
