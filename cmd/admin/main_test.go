package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chwlink/commodity-engine/accounts"
)

func TestRun_SeedCreateReset(t *testing.T) {
	// GIVEN: A fresh database file
	t.Setenv("DB_PATH", filepath.Join(t.TempDir(), "admin.db"))
	ctx := context.Background()
	var out bytes.Buffer

	// WHEN: Seeding, creating a CHA and resetting its password
	require.NoError(t, run(ctx, []string{"seed"}, &out))
	require.NoError(t, run(ctx, []string{"create-cha", "-name", "Grace", "-email", "grace@example.com", "-password", "password1", "-chu", "1"}, &out))
	require.NoError(t, run(ctx, []string{"reset-cha-password", "-email", "grace@example.com", "-password", "password2"}, &out))

	// THEN: Each step reports success
	assert.Contains(t, out.String(), "Seeded 4 CHUs")
	assert.Contains(t, out.String(), "Created CHA 1")
	assert.Contains(t, out.String(), "Password updated for grace@example.com")
}

func TestRun_Errors(t *testing.T) {
	t.Setenv("DB_PATH", filepath.Join(t.TempDir(), "admin.db"))
	ctx := context.Background()
	var out bytes.Buffer

	assert.Error(t, run(ctx, nil, &out))
	assert.Error(t, run(ctx, []string{"drop-everything"}, &out))
	assert.Error(t, run(ctx, []string{"create-cha", "-email", "x@example.com"}, &out))

	err := run(ctx, []string{"reset-cha-password", "-email", "nobody@example.com", "-password", "password2"}, &out)
	assert.ErrorIs(t, err, accounts.ErrCHANotFound)
}
