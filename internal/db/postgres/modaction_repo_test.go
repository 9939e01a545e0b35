package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Threadline/internal/core/moderation"
)

func TestRecordActionReturnsIDAndTimestamp(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`(?s)INSERT INTO mod_actions.+RETURNING id, created_at`).
		WithArgs("general", "did:plc:mod", "did:plc:bad", "ban", "spam").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(7), now))

	repo := NewModerationRepository(db)
	recorded, err := repo.RecordAction(context.Background(), &moderation.ModAction{
		CommunityID:  "general",
		ModeratorDID: "did:plc:mod",
		TargetDID:    "did:plc:bad",
		Action:       moderation.ActionBan,
		Reason:       "spam",
	})

	require.NoError(t, err)
	assert.Equal(t, int64(7), recorded.ID)
	assert.Equal(t, now, recorded.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountActiveBansTakesLatestPerCommunity(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// The query resolves each community's most recent ban/unban entry and
	// counts the ones still at "ban".
	mock.ExpectQuery(`(?s)SELECT COUNT\(\*\).+DISTINCT ON \(community_id\).+ORDER BY community_id, id DESC`).
		WithArgs("did:plc:bad").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	repo := NewModerationRepository(db)
	count, err := repo.CountActiveBans(context.Background(), "did:plc:bad")

	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertAccountFilter(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`(?s)INSERT INTO account_filters.+ON CONFLICT \(target_did\)`).
		WithArgs("did:plc:bad", "filtered", 2).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewModerationRepository(db)
	err = repo.UpsertAccountFilter(context.Background(), &moderation.AccountFilter{
		TargetDID: "did:plc:bad",
		Status:    moderation.FilterStatusFiltered,
		BanCount:  2,
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
