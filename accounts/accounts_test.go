package accounts_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/chwlink/commodity-engine/accounts"
	"github.com/chwlink/commodity-engine/auth"
	"github.com/chwlink/commodity-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestService(t *testing.T) (*accounts.Service, *sqlite.Store) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	svc := accounts.NewService(store, auth.NewIssuer("test-secret", time.Hour), nil)
	svc.HashCost = bcrypt.MinCost
	return svc, store
}

func newCHU(t *testing.T, store *sqlite.Store, name string) int64 {
	id, err := store.SaveCHU(context.Background(), sqlite.CHU{Name: name, County: "Nairobi"})
	require.NoError(t, err)
	return id
}

// =============================================================================
// SIGNUP TESTS
// =============================================================================

func TestSignupCHW_AssignsFirstCHA(t *testing.T) {
	// GIVEN: A unit with two CHAs
	svc, store := newTestService(t)
	ctx := context.Background()
	chuID := newCHU(t, store, "Kibera CHU")

	first, err := svc.CreateCHA(ctx, accounts.CHAInput{Name: "Grace", Email: "grace@example.com", Password: "password1", CHUID: &chuID})
	require.NoError(t, err)
	_, err = svc.CreateCHA(ctx, accounts.CHAInput{Name: "Later", Email: "later@example.com", Password: "password1", CHUID: &chuID})
	require.NoError(t, err)

	// WHEN: A CHW signs up there
	chw, err := svc.SignupCHW(ctx, accounts.SignupInput{Name: "Otieno", Email: "Otieno@Example.com ", Password: "password1", CHUID: chuID})

	// THEN: The first CHA is assigned and the account waits for approval
	require.NoError(t, err)
	require.NotNil(t, chw.CHAID)
	assert.Equal(t, first.ID, *chw.CHAID)
	assert.False(t, chw.Approved)
	assert.False(t, chw.Rejected)
	assert.Equal(t, "otieno@example.com", chw.Email)
	assert.NotEqual(t, "password1", chw.PasswordHash)
}

func TestSignupCHW_NoCHAInUnit(t *testing.T) {
	svc, store := newTestService(t)
	chuID := newCHU(t, store, "Empty CHU")

	chw, err := svc.SignupCHW(context.Background(), accounts.SignupInput{Name: "Amina", Email: "amina@example.com", Password: "password1", CHUID: chuID})
	require.NoError(t, err)
	assert.Nil(t, chw.CHAID)
}

func TestSignupCHW_AssignmentIsSnapshot(t *testing.T) {
	// GIVEN: A CHW who signed up before any CHA existed
	svc, store := newTestService(t)
	ctx := context.Background()
	chuID := newCHU(t, store, "Kibera CHU")
	_, err := svc.SignupCHW(ctx, accounts.SignupInput{Name: "Amina", Email: "amina@example.com", Password: "password1", CHUID: chuID})
	require.NoError(t, err)

	// WHEN: A CHA joins the unit later
	_, err = svc.CreateCHA(ctx, accounts.CHAInput{Name: "Grace", Email: "grace@example.com", Password: "password1", CHUID: &chuID})
	require.NoError(t, err)

	// THEN: The CHW stays unassigned
	chw, err := store.GetCHWByEmail(ctx, "amina@example.com")
	require.NoError(t, err)
	assert.Nil(t, chw.CHAID)
}

func TestSignupCHW_Errors(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	chuID := newCHU(t, store, "Kibera CHU")
	_, err := svc.SignupCHW(ctx, accounts.SignupInput{Name: "Otieno", Email: "otieno@example.com", Password: "password1", CHUID: chuID})
	require.NoError(t, err)

	tests := []struct {
		name string
		in   accounts.SignupInput
		want error
	}{
		{"duplicate email", accounts.SignupInput{Name: "X", Email: "OTIENO@example.com", Password: "password1", CHUID: chuID}, accounts.ErrEmailTaken},
		{"short password", accounts.SignupInput{Name: "X", Email: "x@example.com", Password: "short", CHUID: chuID}, accounts.ErrWeakPassword},
		{"unknown chu", accounts.SignupInput{Name: "X", Email: "x@example.com", Password: "password1", CHUID: 9999}, accounts.ErrCHUNotFound},
		{"password over bcrypt limit", accounts.SignupInput{Name: "X", Email: "x@example.com", Password: strings.Repeat("a", 73), CHUID: chuID}, accounts.ErrPasswordTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SignupCHW(ctx, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

// =============================================================================
// LOGIN TESTS
// =============================================================================

func TestLoginCHW(t *testing.T) {
	// GIVEN: A CHW waiting for approval
	svc, store := newTestService(t)
	ctx := context.Background()
	chuID := newCHU(t, store, "Kibera CHU")
	chw, err := svc.SignupCHW(ctx, accounts.SignupInput{Name: "Otieno", Email: "otieno@example.com", Password: "password1", CHUID: chuID})
	require.NoError(t, err)

	// WHEN/THEN: Login is refused until approval
	_, err = svc.LoginCHW(ctx, "otieno@example.com", "password1")
	assert.ErrorIs(t, err, accounts.ErrNotApproved)

	// WHEN/THEN: A wrong password is refused before the approval check
	_, err = svc.LoginCHW(ctx, "otieno@example.com", "wrong-password")
	assert.ErrorIs(t, err, accounts.ErrInvalidCredentials)

	// WHEN: The admin approves and the CHW logs in
	require.NoError(t, svc.SetCHWApproval(ctx, chw.ID, true))
	session, err := svc.LoginCHW(ctx, "otieno@example.com", "password1")

	// THEN: A CHW token is returned
	require.NoError(t, err)
	claims, err := svc.Tokens.Parse(session.Token)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleCHW, claims.Role)
	assert.Equal(t, "Otieno", session.CHW.Name)
}

func TestLoginCHW_UnknownEmail(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.LoginCHW(context.Background(), "nobody@example.com", "password1")
	assert.ErrorIs(t, err, accounts.ErrInvalidCredentials)
}

func TestSetCHWApproval_RejectClearsApproval(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	chuID := newCHU(t, store, "Kibera CHU")
	chw, err := svc.SignupCHW(ctx, accounts.SignupInput{Name: "Otieno", Email: "otieno@example.com", Password: "password1", CHUID: chuID})
	require.NoError(t, err)

	require.NoError(t, svc.SetCHWApproval(ctx, chw.ID, true))
	require.NoError(t, svc.SetCHWApproval(ctx, chw.ID, false))

	got, err := store.GetCHWByEmail(ctx, "otieno@example.com")
	require.NoError(t, err)
	assert.False(t, got.Approved)
	assert.True(t, got.Rejected)

	assert.ErrorIs(t, svc.SetCHWApproval(ctx, 9999, true), accounts.ErrCHWNotFound)
}

func TestLoginCHA(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	cha, err := svc.CreateCHA(ctx, accounts.CHAInput{Name: "Grace", Email: "grace@example.com", Password: "password1"})
	require.NoError(t, err)

	session, err := svc.LoginCHA(ctx, "grace@example.com", "password1")
	require.NoError(t, err)

	claims, err := svc.Tokens.Parse(session.Token)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleCHA, claims.Role)
	id, err := claims.SubjectID()
	require.NoError(t, err)
	assert.Equal(t, cha.ID, id)

	_, err = svc.LoginCHA(ctx, "grace@example.com", "wrong-password")
	assert.ErrorIs(t, err, accounts.ErrInvalidCredentials)
}

func TestResetCHAPassword(t *testing.T) {
	// GIVEN: A CHA with a known password
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.CreateCHA(ctx, accounts.CHAInput{Name: "Grace", Email: "grace@example.com", Password: "password1"})
	require.NoError(t, err)

	// WHEN: The operator resets it
	require.NoError(t, svc.ResetCHAPassword(ctx, "grace@example.com", "password2"))

	// THEN: Only the new password works
	_, err = svc.LoginCHA(ctx, "grace@example.com", "password1")
	assert.ErrorIs(t, err, accounts.ErrInvalidCredentials)
	_, err = svc.LoginCHA(ctx, "grace@example.com", "password2")
	assert.NoError(t, err)

	assert.ErrorIs(t, svc.ResetCHAPassword(ctx, "nobody@example.com", "password2"), accounts.ErrCHANotFound)
	assert.ErrorIs(t, svc.ResetCHAPassword(ctx, "grace@example.com", "short"), accounts.ErrWeakPassword)
	assert.ErrorIs(t, svc.ResetCHAPassword(ctx, "grace@example.com", strings.Repeat("p", 80)), accounts.ErrPasswordTooLong)
}
