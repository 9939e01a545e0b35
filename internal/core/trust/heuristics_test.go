package trust

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockActivityRepo struct {
	bursts    map[string]int
	burstsErr error
	contents  []AuthoredText
	diversity map[string]Diversity
}

func (m *mockActivityRepo) ReactionBursts(ctx context.Context, window time.Duration, threshold int) (map[string]int, error) {
	return m.bursts, m.burstsErr
}

func (m *mockActivityRepo) RecentContents(ctx context.Context, window time.Duration) ([]AuthoredText, error) {
	return m.contents, nil
}

func (m *mockActivityRepo) ReactionDiversity(ctx context.Context, minReactions int) (map[string]Diversity, error) {
	return m.diversity, nil
}

type mockFlagRepo struct {
	flags []BehavioralFlag
}

func (m *mockFlagRepo) Insert(ctx context.Context, flag *BehavioralFlag) error {
	m.flags = append(m.flags, *flag)
	return nil
}

func TestTrigramsNormalization(t *testing.T) {
	// Punctuation and casing differences must not change the trigram set.
	a := Trigrams("Buy cheap widgets NOW!!!")
	b := Trigrams("buy   cheap, widgets now")

	assert.Equal(t, a, b)
	assert.InDelta(t, 1.0, Jaccard(a, b), 1e-9)
}

func TestTrigramsShortText(t *testing.T) {
	assert.Nil(t, Trigrams("ab"))
	assert.Nil(t, Trigrams("!!"))
}

func TestJaccardDisjointAndEmpty(t *testing.T) {
	a := Trigrams("completely different text here")
	b := Trigrams("zzz qqq xxx vvv kkk")

	assert.Zero(t, Jaccard(a, nil))
	assert.Less(t, Jaccard(a, b), 0.1)
}

func TestDetectBurstVoting(t *testing.T) {
	activityRepo := &mockActivityRepo{
		bursts: map[string]int{"did:plc:burster": 35},
	}
	flagRepo := &mockFlagRepo{}
	h := NewHeuristics(activityRepo, flagRepo)

	flags := h.Run(context.Background())

	require.Len(t, flags, 1)
	assert.Equal(t, FlagBurstVoting, flags[0].Type)
	assert.Equal(t, []string{"did:plc:burster"}, flags[0].AffectedDIDs)
	assert.Equal(t, "35", flags[0].Details["reactions"])
	assert.Len(t, flagRepo.flags, 1)
}

func TestDetectContentSimilarityNeedsThreeAuthors(t *testing.T) {
	spam := "limited time offer click the link in my profile to claim your prize today"
	activityRepo := &mockActivityRepo{
		contents: []AuthoredText{
			{URI: "at://did:plc:a/forum.threadline.topic.post/1", AuthorDID: "did:plc:a", Text: spam},
			{URI: "at://did:plc:b/forum.threadline.topic.post/1", AuthorDID: "did:plc:b", Text: spam},
		},
	}
	h := NewHeuristics(activityRepo, &mockFlagRepo{})

	flags := h.Run(context.Background())

	assert.Empty(t, flags, "two colluding authors are below the cluster minimum")
}

func TestDetectContentSimilarityFlagsCluster(t *testing.T) {
	spam := "limited time offer click the link in my profile to claim your prize today"
	activityRepo := &mockActivityRepo{
		contents: []AuthoredText{
			{URI: "at://did:plc:a/forum.threadline.topic.post/1", AuthorDID: "did:plc:a", Text: spam},
			{URI: "at://did:plc:b/forum.threadline.topic.post/1", AuthorDID: "did:plc:b", Text: spam + "!"},
			{URI: "at://did:plc:c/forum.threadline.topic.post/1", AuthorDID: "did:plc:c", Text: spam},
			{URI: "at://did:plc:d/forum.threadline.topic.post/1", AuthorDID: "did:plc:d", Text: "an entirely unrelated post about gardening and soil quality"},
		},
	}
	flagRepo := &mockFlagRepo{}
	h := NewHeuristics(activityRepo, flagRepo)

	flags := h.Run(context.Background())

	require.Len(t, flags, 1)
	assert.Equal(t, FlagContentSimilarity, flags[0].Type)
	assert.Equal(t, []string{"did:plc:a", "did:plc:b", "did:plc:c"}, flags[0].AffectedDIDs)
}

func TestDetectLowDiversity(t *testing.T) {
	activityRepo := &mockActivityRepo{
		diversity: map[string]Diversity{
			"did:plc:obsessed": {Reactions: 40, DistinctSubjects: 2},
			"did:plc:normal":   {Reactions: 40, DistinctSubjects: 25},
		},
	}
	flagRepo := &mockFlagRepo{}
	h := NewHeuristics(activityRepo, flagRepo)

	flags := h.Run(context.Background())

	require.Len(t, flags, 1)
	assert.Equal(t, FlagLowDiversity, flags[0].Type)
	assert.Equal(t, []string{"did:plc:obsessed"}, flags[0].AffectedDIDs)
}

func TestHeuristicsDetectorFailureIsIsolated(t *testing.T) {
	// Burst scan fails; the diversity detector must still produce its flag.
	activityRepo := &mockActivityRepo{
		burstsErr: errors.New("scan timeout"),
		diversity: map[string]Diversity{
			"did:plc:obsessed": {Reactions: 15, DistinctSubjects: 1},
		},
	}
	h := NewHeuristics(activityRepo, &mockFlagRepo{})

	flags := h.Run(context.Background())

	require.Len(t, flags, 1)
	assert.Equal(t, FlagLowDiversity, flags[0].Type)
}
