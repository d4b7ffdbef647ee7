package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTag = "AB 12 CD 34 5"

func createTestAccount(t *testing.T, store *TestStore, tag string, balance int64) *Account {
	t.Helper()

	account, err := store.CreateAccount(context.Background(), CreateAccountParams{
		TagID:     tag,
		FirstName: "Maria",
		LastName:  "Lopez",
		Balance:   balance,
	})
	require.NoError(t, err)
	return account
}

func TestCreateAccount(t *testing.T) {
	SkipIfNoTestDB(t)

	store := NewTestStore(t)
	defer store.Close()
	defer store.Cleanup(t)

	ctx := context.Background()

	t.Run("create account", func(t *testing.T) {
		account, err := store.CreateAccount(ctx, CreateAccountParams{
			TagID:     testTag,
			FirstName: "Maria",
			LastName:  "Lopez",
			Balance:   100,
		})
		require.NoError(t, err)
		require.NotNil(t, account)

		assert.NotZero(t, account.ID)
		assert.Equal(t, testTag, account.TagID)
		assert.Equal(t, int64(100), account.Balance)
		assert.Equal(t, "Maria Lopez", account.HolderName())
		assert.WithinDuration(t, time.Now(), account.RegisteredAt, 5*time.Second)
	})

	t.Run("duplicate tag", func(t *testing.T) {
		_, err := store.CreateAccount(ctx, CreateAccountParams{
			TagID:     testTag,
			FirstName: "Other",
			LastName:  "Holder",
			Balance:   0,
		})
		require.ErrorIs(t, err, ErrDuplicateTag)
	})
}

func TestGetAccountByTag(t *testing.T) {
	SkipIfNoTestDB(t)

	store := NewTestStore(t)
	defer store.Close()
	defer store.Cleanup(t)

	ctx := context.Background()
	created := createTestAccount(t, store, testTag, 250)

	t.Run("existing tag", func(t *testing.T) {
		account, err := store.GetAccountByTag(ctx, testTag)
		require.NoError(t, err)
		assert.Equal(t, created.ID, account.ID)
		assert.Equal(t, int64(250), account.Balance)
	})

	t.Run("unknown tag", func(t *testing.T) {
		_, err := store.GetAccountByTag(ctx, "FF FF FF FF F")
		require.ErrorIs(t, err, ErrAccountNotFound)
	})
}

func TestDebitAccount(t *testing.T) {
	SkipIfNoTestDB(t)

	store := NewTestStore(t)
	defer store.Close()
	defer store.Cleanup(t)

	ctx := context.Background()
	createTestAccount(t, store, testTag, 100)

	t.Run("debit within balance", func(t *testing.T) {
		balance, err := store.DebitAccount(ctx, testTag, 50)
		require.NoError(t, err)
		assert.Equal(t, int64(50), balance)
	})

	t.Run("repeated debit keeps decreasing", func(t *testing.T) {
		balance, err := store.DebitAccount(ctx, testTag, 30)
		require.NoError(t, err)
		assert.Equal(t, int64(20), balance)
	})

	t.Run("insufficient funds leaves balance unchanged", func(t *testing.T) {
		_, err := store.DebitAccount(ctx, testTag, 70)
		require.ErrorIs(t, err, ErrInsufficientFunds)

		account, err := store.GetAccountByTag(ctx, testTag)
		require.NoError(t, err)
		assert.Equal(t, int64(20), account.Balance)
	})

	t.Run("zero amount succeeds", func(t *testing.T) {
		balance, err := store.DebitAccount(ctx, testTag, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(20), balance)
	})

	t.Run("unknown tag", func(t *testing.T) {
		_, err := store.DebitAccount(ctx, "FF FF FF FF F", 10)
		require.ErrorIs(t, err, ErrAccountNotFound)
	})

	t.Run("negative amount rejected", func(t *testing.T) {
		_, err := store.DebitAccount(ctx, testTag, -5)
		require.Error(t, err)
	})
}

func TestCreditAccount(t *testing.T) {
	SkipIfNoTestDB(t)

	store := NewTestStore(t)
	defer store.Close()
	defer store.Cleanup(t)

	ctx := context.Background()
	createTestAccount(t, store, testTag, 10)

	t.Run("credit", func(t *testing.T) {
		balance, err := store.CreditAccount(ctx, testTag, 90)
		require.NoError(t, err)
		assert.Equal(t, int64(100), balance)
	})

	t.Run("unknown tag", func(t *testing.T) {
		_, err := store.CreditAccount(ctx, "FF FF FF FF F", 10)
		require.ErrorIs(t, err, ErrAccountNotFound)
	})
}

func TestDeleteAccount(t *testing.T) {
	SkipIfNoTestDB(t)

	store := NewTestStore(t)
	defer store.Close()
	defer store.Cleanup(t)

	ctx := context.Background()
	createTestAccount(t, store, testTag, 100)

	_, err := store.AppendMovement(ctx, AppendMovementParams{
		HolderName: "Maria Lopez",
		TagID:      testTag,
		Amount:     25,
		Kind:       MovementDebitSuccess,
	})
	require.NoError(t, err)

	t.Run("delete removes account and movements", func(t *testing.T) {
		require.NoError(t, store.DeleteAccount(ctx, testTag))

		_, err := store.GetAccountByTag(ctx, testTag)
		require.ErrorIs(t, err, ErrAccountNotFound)

		movements, err := store.ListMovements(ctx, ListMovementsParams{TagID: testTag})
		require.NoError(t, err)
		assert.Empty(t, movements)
	})

	t.Run("delete unknown tag", func(t *testing.T) {
		err := store.DeleteAccount(ctx, testTag)
		require.ErrorIs(t, err, ErrAccountNotFound)
	})
}

func TestMovements(t *testing.T) {
	SkipIfNoTestDB(t)

	store := NewTestStore(t)
	defer store.Close()
	defer store.Cleanup(t)

	ctx := context.Background()

	otherTag := "12 34 56 78 9"
	seed := []AppendMovementParams{
		{HolderName: "Maria Lopez", TagID: testTag, Amount: 50, Kind: MovementDebitSuccess},
		{HolderName: "Maria Lopez", TagID: testTag, Amount: 70, Kind: MovementInsufficientFunds},
		{HolderName: HolderUnknown, TagID: otherTag, Amount: 10, Kind: MovementUnknownTag},
		{HolderName: "Maria Lopez", TagID: testTag, Amount: 100, Kind: MovementManualTopup},
	}
	for _, params := range seed {
		movement, err := store.AppendMovement(ctx, params)
		require.NoError(t, err)
		require.NotZero(t, movement.ID)
		assert.WithinDuration(t, time.Now(), movement.RecordedAt, 5*time.Second)
	}

	t.Run("list all ordered by id", func(t *testing.T) {
		movements, err := store.ListMovements(ctx, ListMovementsParams{})
		require.NoError(t, err)
		require.Len(t, movements, 4)
		assert.Equal(t, MovementDebitSuccess, movements[0].Kind)
		assert.Equal(t, MovementManualTopup, movements[3].Kind)
		for i := 1; i < len(movements); i++ {
			assert.Greater(t, movements[i].ID, movements[i-1].ID)
		}
	})

	t.Run("filter by tag", func(t *testing.T) {
		movements, err := store.ListMovements(ctx, ListMovementsParams{TagID: otherTag})
		require.NoError(t, err)
		require.Len(t, movements, 1)
		assert.Equal(t, MovementUnknownTag, movements[0].Kind)
		assert.Equal(t, HolderUnknown, movements[0].HolderName)
	})

	t.Run("limit", func(t *testing.T) {
		movements, err := store.ListMovements(ctx, ListMovementsParams{Limit: 2})
		require.NoError(t, err)
		assert.Len(t, movements, 2)
	})

	t.Run("explicit recorded_at preserved", func(t *testing.T) {
		recordedAt := time.Now().UTC().Add(-time.Hour).Truncate(time.Microsecond)
		movement, err := store.AppendMovement(ctx, AppendMovementParams{
			HolderName: "Maria Lopez",
			TagID:      testTag,
			Amount:     5,
			Kind:       MovementDebitSuccess,
			RecordedAt: recordedAt,
		})
		require.NoError(t, err)
		assert.WithinDuration(t, recordedAt, movement.RecordedAt, time.Microsecond)
	})
}
