package database

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shuleconnect/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func grantEntry(sourceID string, userID uuid.UUID, credits int) *models.CreditLedgerEntry {
	return &models.CreditLedgerEntry{
		SourceTransactionID: sourceID,
		UserID:              userID,
		CreditsGranted:      credits,
		AppliedAt:           time.Now(),
	}
}

func TestApplyGrant(t *testing.T) {
	db := newTestDB(t)
	repo := NewCreditLedgerRepo(db)
	ctx := context.Background()
	userID := uuid.New()

	applied, err := repo.ApplyGrant(ctx, grantEntry(uuid.New().String(), userID, 175))
	require.NoError(t, err)
	assert.True(t, applied)

	var balance models.CreditBalance
	require.NoError(t, db.First(&balance, "user_id = ?", userID).Error)
	assert.Equal(t, 175, balance.Credits)
}

func TestApplyGrantDuplicateSourceLeavesBalanceAlone(t *testing.T) {
	db := newTestDB(t)
	repo := NewCreditLedgerRepo(db)
	ctx := context.Background()
	userID := uuid.New()
	sourceID := uuid.New().String()

	applied, err := repo.ApplyGrant(ctx, grantEntry(sourceID, userID, 175))
	require.NoError(t, err)
	require.True(t, applied)

	// Replayed completion for the same source transaction: the unique
	// constraint absorbs the insert, no error, no balance change.
	applied, err = repo.ApplyGrant(ctx, grantEntry(sourceID, userID, 175))
	require.NoError(t, err)
	assert.False(t, applied)

	var count int64
	require.NoError(t, db.Model(&models.CreditLedgerEntry{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	var balance models.CreditBalance
	require.NoError(t, db.First(&balance, "user_id = ?", userID).Error)
	assert.Equal(t, 175, balance.Credits, "a duplicate grant must not double-credit")
}

func TestApplyGrantAccumulatesAcrossTransactions(t *testing.T) {
	db := newTestDB(t)
	repo := NewCreditLedgerRepo(db)
	ctx := context.Background()
	userID := uuid.New()

	applied, err := repo.ApplyGrant(ctx, grantEntry(uuid.New().String(), userID, 50))
	require.NoError(t, err)
	require.True(t, applied)

	applied, err = repo.ApplyGrant(ctx, grantEntry(uuid.New().String(), userID, 175))
	require.NoError(t, err)
	require.True(t, applied)

	var balance models.CreditBalance
	require.NoError(t, db.First(&balance, "user_id = ?", userID).Error)
	assert.Equal(t, 225, balance.Credits)
}

func TestApplyGrantKeepsUsersSeparate(t *testing.T) {
	db := newTestDB(t)
	repo := NewCreditLedgerRepo(db)
	ctx := context.Background()
	first := uuid.New()
	second := uuid.New()

	_, err := repo.ApplyGrant(ctx, grantEntry(uuid.New().String(), first, 50))
	require.NoError(t, err)
	_, err = repo.ApplyGrant(ctx, grantEntry(uuid.New().String(), second, 175))
	require.NoError(t, err)

	var firstBalance models.CreditBalance
	require.NoError(t, db.First(&firstBalance, "user_id = ?", first).Error)
	assert.Equal(t, 50, firstBalance.Credits)
	var secondBalance models.CreditBalance
	require.NoError(t, db.First(&secondBalance, "user_id = ?", second).Error)
	assert.Equal(t, 175, secondBalance.Credits)
}
