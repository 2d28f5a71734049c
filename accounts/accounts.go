/*
Package accounts manages CHW and CHA accounts.

PURPOSE:
  CHWs sign up against a community health unit and wait for admin approval
  before they can log in. CHAs are created by operators and log in to
  review the requests of the CHWs assigned to them.

CHA ASSIGNMENT:
  At signup a CHW is assigned the first CHA (lowest id) of the chosen CHU,
  or none if the CHU has no CHA yet. The assignment is a snapshot and is
  never recomputed when CHAs are added later.

APPROVAL:
  approved and rejected are always set together: approving clears the
  rejection and rejecting clears the approval. A CHW can only log in while
  approved.

PASSWORDS:
  Stored as bcrypt hashes. Length is bounded by MinPasswordLength and
  MaxPasswordLength (bytes).

SEE ALSO:
  - auth/auth.go: Login tokens
  - cmd/admin/main.go: Operator commands for CHAs
*/
package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/chwlink/commodity-engine/auth"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

// MaxPasswordLength is the longest password bcrypt will hash, in bytes.
const MaxPasswordLength = 72

// Service implements account operations.
type Service struct {
	Store  Store
	Tokens *auth.Issuer
	Logger *zap.Logger

	// HashCost is the bcrypt cost. Zero selects bcrypt.DefaultCost.
	HashCost int
}

// NewService creates an account service.
func NewService(store Store, tokens *auth.Issuer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{Store: store, Tokens: tokens, Logger: logger}
}

// SignupInput is a CHW registration.
type SignupInput struct {
	Name     string
	Email    string
	Password string
	CHUID    int64
}

// CHAInput is an operator-created CHA.
type CHAInput struct {
	Name     string
	Email    string
	Password string
	CHUID    *int64
}

// CHWSession is the result of a successful CHW login.
type CHWSession struct {
	CHW   CHW
	Token string
}

// CHASession is the result of a successful CHA login.
type CHASession struct {
	CHA   CHA
	Token string
}

// =============================================================================
// CHW
// =============================================================================

// SignupCHW registers an unapproved CHW.
func (s *Service) SignupCHW(ctx context.Context, in SignupInput) (CHW, error) {
	email := normalizeEmail(in.Email)
	if err := checkPassword(in.Password); err != nil {
		return CHW{}, err
	}

	exists, err := s.Store.CHUExists(ctx, in.CHUID)
	if err != nil {
		return CHW{}, fmt.Errorf("failed to check chu: %w", err)
	}
	if !exists {
		return CHW{}, ErrCHUNotFound
	}

	existing, err := s.Store.GetCHWByEmail(ctx, email)
	if err != nil {
		return CHW{}, fmt.Errorf("failed to check email: %w", err)
	}
	if existing != nil {
		return CHW{}, ErrEmailTaken
	}

	hash, err := s.hash(in.Password)
	if err != nil {
		return CHW{}, err
	}

	chaID, err := s.Store.FirstCHAInCHU(ctx, in.CHUID)
	if err != nil {
		return CHW{}, fmt.Errorf("failed to find cha: %w", err)
	}

	chw, err := s.Store.CreateCHW(ctx, CHW{
		Name:         strings.TrimSpace(in.Name),
		Email:        email,
		PasswordHash: hash,
		CHUID:        in.CHUID,
		CHAID:        chaID,
	})
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return CHW{}, err
		}
		return CHW{}, fmt.Errorf("failed to create chw: %w", err)
	}

	s.Logger.Info("chw signed up",
		zap.Int64("chw_id", chw.ID),
		zap.Int64("chu_id", chw.CHUID),
		zap.Bool("cha_assigned", chw.CHAID != nil),
	)
	return chw, nil
}

// LoginCHW verifies credentials and returns a token for an approved CHW.
func (s *Service) LoginCHW(ctx context.Context, email, password string) (CHWSession, error) {
	chw, err := s.Store.GetCHWByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return CHWSession{}, fmt.Errorf("failed to load chw: %w", err)
	}
	if chw == nil || !checkHash(chw.PasswordHash, password) {
		return CHWSession{}, ErrInvalidCredentials
	}
	if !chw.Approved {
		return CHWSession{}, ErrNotApproved
	}

	token, err := s.Tokens.Issue(auth.RoleCHW, chw.ID, chw.Name)
	if err != nil {
		return CHWSession{}, err
	}
	return CHWSession{CHW: *chw, Token: token}, nil
}

// SetCHWApproval approves or rejects a CHW.
func (s *Service) SetCHWApproval(ctx context.Context, chwID int64, approve bool) error {
	found, err := s.Store.SetCHWApproval(ctx, chwID, approve)
	if err != nil {
		return fmt.Errorf("failed to update chw %d: %w", chwID, err)
	}
	if !found {
		return ErrCHWNotFound
	}

	s.Logger.Info("chw approval set", zap.Int64("chw_id", chwID), zap.Bool("approved", approve))
	return nil
}

// =============================================================================
// CHA
// =============================================================================

// LoginCHA verifies credentials and returns a token.
func (s *Service) LoginCHA(ctx context.Context, email, password string) (CHASession, error) {
	cha, err := s.Store.GetCHAByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return CHASession{}, fmt.Errorf("failed to load cha: %w", err)
	}
	if cha == nil || !checkHash(cha.PasswordHash, password) {
		return CHASession{}, ErrInvalidCredentials
	}

	token, err := s.Tokens.Issue(auth.RoleCHA, cha.ID, cha.Name)
	if err != nil {
		return CHASession{}, err
	}
	return CHASession{CHA: *cha, Token: token}, nil
}

// CreateCHA registers a CHA.
func (s *Service) CreateCHA(ctx context.Context, in CHAInput) (CHA, error) {
	if err := checkPassword(in.Password); err != nil {
		return CHA{}, err
	}
	if in.CHUID != nil {
		exists, err := s.Store.CHUExists(ctx, *in.CHUID)
		if err != nil {
			return CHA{}, fmt.Errorf("failed to check chu: %w", err)
		}
		if !exists {
			return CHA{}, ErrCHUNotFound
		}
	}

	hash, err := s.hash(in.Password)
	if err != nil {
		return CHA{}, err
	}

	cha, err := s.Store.CreateCHA(ctx, CHA{
		Name:         strings.TrimSpace(in.Name),
		Email:        normalizeEmail(in.Email),
		PasswordHash: hash,
		CHUID:        in.CHUID,
	})
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return CHA{}, err
		}
		return CHA{}, fmt.Errorf("failed to create cha: %w", err)
	}
	return cha, nil
}

// ResetCHAPassword replaces the password of the CHA with email.
func (s *Service) ResetCHAPassword(ctx context.Context, email, newPassword string) error {
	if err := checkPassword(newPassword); err != nil {
		return err
	}
	hash, err := s.hash(newPassword)
	if err != nil {
		return err
	}

	found, err := s.Store.UpdateCHAPassword(ctx, normalizeEmail(email), hash)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if !found {
		return ErrCHANotFound
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Service) hash(password string) (string, error) {
	cost := s.HashCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

func checkHash(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func checkPassword(password string) error {
	if len(password) < MinPasswordLength {
		return ErrWeakPassword
	}
	if len(password) > MaxPasswordLength {
		return ErrPasswordTooLong
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
