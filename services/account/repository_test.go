package account

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tech-arch1tect/tokengate/testutils"
)

type deviceRow struct {
	ID        uint `gorm:"primaryKey"`
	AccountID uint `gorm:"index"`
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "alice@example.com", NormalizeEmail("  Alice@Example.COM "))
	assert.Equal(t, "", NormalizeEmail("   "))
}

func TestAccount_GetPasswordHash(t *testing.T) {
	var missing *Account
	assert.Equal(t, "", missing.GetPasswordHash())
	assert.Equal(t, "hash", (&Account{PasswordHash: "hash"}).GetPasswordHash())
}

func TestRepository_Create(t *testing.T) {
	ctx := context.Background()
	db := testutils.SetupTestDB(t, &Account{})
	repo := NewRepository(db, nil)

	t.Run("stores normalised email", func(t *testing.T) {
		acct, err := repo.Create(ctx, " Alice@Example.com", "hash")
		require.NoError(t, err)
		assert.NotZero(t, acct.ID)
		assert.Equal(t, "alice@example.com", acct.Email)
	})

	t.Run("rejects case-insensitive duplicate", func(t *testing.T) {
		_, err := repo.Create(ctx, "ALICE@example.com", "hash")
		testutils.AssertErrorType(t, ErrEmailTaken, err)
	})

	t.Run("email exists", func(t *testing.T) {
		exists, err := repo.EmailExists(ctx, "alice@EXAMPLE.com")
		require.NoError(t, err)
		assert.True(t, exists)

		exists, err = repo.EmailExists(ctx, "nobody@example.com")
		require.NoError(t, err)
		assert.False(t, exists)
	})
}

func TestRepository_Find(t *testing.T) {
	ctx := context.Background()
	db := testutils.SetupTestDB(t, &Account{})
	repo := NewRepository(db, nil)

	created, err := repo.Create(ctx, "bob@example.com", "hash")
	require.NoError(t, err)

	byEmail, err := repo.FindByEmail(ctx, "BOB@example.com ")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)

	byID, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", byID.Email)

	_, err = repo.FindByEmail(ctx, "missing@example.com")
	testutils.AssertErrorType(t, ErrNotFound, err)

	_, err = repo.FindByID(ctx, 9999)
	testutils.AssertErrorType(t, ErrNotFound, err)

	_, err = repo.FindByID(ctx, 0)
	testutils.AssertErrorType(t, ErrNotFound, err)
}

func TestRepository_DeleteCascades(t *testing.T) {
	ctx := context.Background()
	db := testutils.SetupTestDB(t, &Account{}, &deviceRow{})
	repo := NewRepository(db, nil, &deviceRow{})

	alice, err := repo.Create(ctx, "alice@example.com", "hash")
	require.NoError(t, err)
	bob, err := repo.Create(ctx, "bob@example.com", "hash")
	require.NoError(t, err)

	require.NoError(t, db.Create(&[]deviceRow{
		{AccountID: alice.ID}, {AccountID: alice.ID}, {AccountID: bob.ID},
	}).Error)

	require.NoError(t, repo.Delete(ctx, alice.ID))

	var remaining []deviceRow
	require.NoError(t, db.Find(&remaining).Error)
	require.Len(t, remaining, 1)
	assert.Equal(t, bob.ID, remaining[0].AccountID)

	_, err = repo.FindByID(ctx, alice.ID)
	testutils.AssertErrorType(t, ErrNotFound, err)

	err = repo.Delete(ctx, alice.ID)
	testutils.AssertErrorType(t, ErrNotFound, err)
}

func TestRepository_StorageFailure(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(testutils.ClosedDB(t, &Account{}), nil)

	_, err := repo.FindByEmail(ctx, "alice@example.com")
	testutils.AssertErrorType(t, ErrStorage, err)
	assert.NotErrorIs(t, err, ErrNotFound)

	_, err = repo.Create(ctx, "alice@example.com", "hash")
	testutils.AssertErrorType(t, ErrStorage, err)

	_, err = repo.EmailExists(ctx, "alice@example.com")
	testutils.AssertErrorType(t, ErrStorage, err)
}
