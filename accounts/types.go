package accounts

import (
	"context"
	"errors"
	"time"
)

// =============================================================================
// ACCOUNT RECORDS
// =============================================================================

// CHW is a community health worker account.
// CHAID is fixed at signup and nil when the CHU had no CHA at the time.
type CHW struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	CHUID        int64
	CHAID        *int64
	Approved     bool
	Rejected     bool
	CreatedAt    time.Time
}

// CHA is a community health assistant account.
type CHA struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	CHUID        *int64
	CreatedAt    time.Time
}

// Store persists accounts.
type Store interface {
	CHUExists(ctx context.Context, chuID int64) (bool, error)

	GetCHWByEmail(ctx context.Context, email string) (*CHW, error)
	CreateCHW(ctx context.Context, chw CHW) (CHW, error)
	SetCHWApproval(ctx context.Context, chwID int64, approve bool) (bool, error)

	// FirstCHAInCHU returns the lowest-id CHA of the unit, or nil.
	FirstCHAInCHU(ctx context.Context, chuID int64) (*int64, error)
	GetCHAByEmail(ctx context.Context, email string) (*CHA, error)
	CreateCHA(ctx context.Context, cha CHA) (CHA, error)
	UpdateCHAPassword(ctx context.Context, email, passwordHash string) (bool, error)
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNotApproved        = errors.New("account not approved by admin yet")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrPasswordTooLong    = errors.New("password must be at most 72 bytes")
	ErrCHWNotFound        = errors.New("chw not found")
	ErrCHANotFound        = errors.New("cha not found")
	ErrCHUNotFound        = errors.New("chu not found")
)
