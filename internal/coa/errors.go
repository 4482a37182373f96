package coa

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the account does not exist.
	ErrNotFound = errors.New("coa: account not found")
	// ErrDuplicateNumber indicates the account number is already taken.
	ErrDuplicateNumber = errors.New("coa: account number already exists")
	// ErrNotNumeric indicates the account number is not a 6-digit number.
	ErrNotNumeric = errors.New("coa: account number must be a 6-digit number")
	// ErrUnknownAccountType indicates an unrecognized account type name.
	ErrUnknownAccountType = errors.New("coa: unknown account type")
	// ErrSelfParent indicates an account referencing itself as parent.
	ErrSelfParent = errors.New("coa: account cannot be its own parent")
	// ErrTypeMismatch indicates parent and child account types differ.
	ErrTypeMismatch = errors.New("coa: parent account type must match account type")
	// ErrCircularReference indicates the parent is a descendant of the account.
	ErrCircularReference = errors.New("coa: parent assignment would create a cycle in the hierarchy")
	// ErrParentNotActive indicates the chosen parent is not an active account.
	ErrParentNotActive = errors.New("coa: parent account must be active")
	// ErrAccountArchived indicates edits on an archived account.
	ErrAccountArchived = errors.New("coa: archived accounts cannot be edited")
)

// RangeError reports an account number outside its type's range.
type RangeError struct {
	Number   string
	TypeName string
	Min      int
	Max      int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("coa: account number %s is not valid for %s accounts, must be between %d and %d",
		e.Number, e.TypeName, e.Min, e.Max)
}

// InvalidTransitionError reports a workflow move the current status does not allow.
type InvalidTransitionError struct {
	Current Status
	Targets []Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("coa: invalid status transition, account with status %s can only transition to %v",
		e.Current, e.Targets)
}

// InvalidStatusError reports a target status that is not a recognized value.
type InvalidStatusError struct {
	Status Status
}

func (e *InvalidStatusError) Error() string {
	return fmt.Sprintf("coa: %q is not a valid status", string(e.Status))
}
