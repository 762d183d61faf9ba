package user

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zjoart/varlixo/pkg/database/databasetest"
)

func TestRepository(t *testing.T) {
	db := databasetest.Open(t, &User{})
	repo := NewRepository(db)
	ctx := context.Background()

	u := &User{FullName: "Ada Obi", Email: "  Ada@Example.com ", PasswordHash: "hash", Country: "NG"}
	require.NoError(t, repo.CreateUser(ctx, u))
	assert.Len(t, u.ReferralCode, 8)
	assert.Equal(t, RoleUser, u.Role)

	found, err := repo.FindByEmail(ctx, "ADA@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, found.ID)

	byCode, err := repo.FindByReferralCode(ctx, u.ReferralCode)
	require.NoError(t, err)
	assert.Equal(t, u.ID, byCode.ID)

	err = repo.CreateUser(ctx, &User{FullName: "Dup", Email: "ada@example.com", PasswordHash: "x"})
	assert.True(t, errors.Is(err, ErrEmailTaken))

	require.NoError(t, repo.UpdateKYCStatus(ctx, u.ID, KYCApproved))
	require.NoError(t, repo.UpdateRole(ctx, u.ID, RoleAdmin))
	found, err = repo.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, KYCApproved, found.KYCStatus)
	assert.True(t, found.IsAdmin())

	_, err = repo.FindByEmail(ctx, "nobody@example.com")
	assert.True(t, errors.Is(err, ErrUserNotFound))
}
