package vend

import "errors"

var (
	ErrDeductionNotFound = errors.New("vend deduction not found")
	ErrNoVendCustomer    = errors.New("staff member has no vend customer")
	ErrAlreadyAllocated  = errors.New("deduction already allocated")
	ErrInvalidAmount     = errors.New("deduction amount must be positive")
	ErrRateLimited       = errors.New("allocation rate limit reached")
	ErrNoOpenSales       = errors.New("no open on-account sales to allocate against")
	ErrNothingApplied    = errors.New("no payment could be applied")
	ErrNotFailed         = errors.New("deduction is not in failed status")
	ErrNotConfigured     = errors.New("vend is not configured")
)
