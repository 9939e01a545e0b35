package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Threadline/internal/core/topics"
)

func testTopic() *topics.Topic {
	return &topics.Topic{
		URI:         "at://did:plc:alice/forum.threadline.topic.post/3k2a4b",
		CID:         "bafyreibml4midgt7ojq7dnabnku5ikzro4erfvdux6mmiqeat7pci2gy4u",
		RKey:        "3k2a4b",
		AuthorDID:   "did:plc:alice",
		CommunityID: "general",
		Title:       "Welcome thread",
		Content:     "Introduce yourself here.",
		Category:    "general",
		Tags:        []string{"intro"},
		TrustStatus: topics.TrustStatusTrusted,
		ModStatus:   topics.ModStatusApproved,
		CreatedAt:   time.Now(),
	}
}

func TestTopicCreateSetsIndexedAt(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	indexedAt := time.Now()
	mock.ExpectQuery(`(?s)INSERT INTO topics.+ON CONFLICT \(uri\) DO NOTHING.+RETURNING indexed_at`).
		WillReturnRows(sqlmock.NewRows([]string{"indexed_at"}).AddRow(indexedAt))

	topic := testTopic()
	repo := NewTopicRepository(db)

	require.NoError(t, repo.Create(context.Background(), topic))
	assert.Equal(t, indexedAt, topic.IndexedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTopicCreateDuplicateIsNotAnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// ON CONFLICT DO NOTHING returns no rows for an already-indexed URI;
	// firehose replays must be a clean no-op.
	mock.ExpectQuery(`(?s)INSERT INTO topics`).
		WillReturnRows(sqlmock.NewRows([]string{"indexed_at"}))

	repo := NewTopicRepository(db)

	assert.NoError(t, repo.Create(context.Background(), testTopic()))
}

func TestTopicUpdateMissingRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`(?s)UPDATE topics`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewTopicRepository(db)
	err = repo.Update(context.Background(), &topics.TopicUpdate{
		URI: "at://did:plc:alice/forum.threadline.topic.post/missing",
	})

	assert.ErrorIs(t, err, topics.ErrTopicNotFound)
}

func TestTopicSoftDeleteAlreadyDeleted(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`(?s)UPDATE topics.+SET deleted_at = NOW\(\)`).
		WithArgs("at://did:plc:alice/forum.threadline.topic.post/3k2a4b").
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewTopicRepository(db)
	err = repo.SoftDelete(context.Background(), "at://did:plc:alice/forum.threadline.topic.post/3k2a4b")

	assert.ErrorIs(t, err, topics.ErrTopicNotFound)
}
