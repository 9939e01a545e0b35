package trust

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"
)

const (
	burstWindow    = 10 * time.Minute
	burstThreshold = 20

	similarityWindow     = 24 * time.Hour
	similarityThreshold  = 0.8
	similarityMinAuthors = 3

	diversityMinReactions = 10
	diversityMaxSubjects  = 3
)

// Heuristics runs the three behavioral detectors. Each detector persists
// its flags independently; a failure in one does not block the others.
type Heuristics struct {
	activityRepo ActivityRepository
	flagRepo     FlagRepository
}

// NewHeuristics creates the behavioral heuristics service
func NewHeuristics(activityRepo ActivityRepository, flagRepo FlagRepository) *Heuristics {
	return &Heuristics{activityRepo: activityRepo, flagRepo: flagRepo}
}

// Run executes all detectors and returns the flags that were persisted.
// Individual detector errors are logged and the remaining detectors still run.
func (h *Heuristics) Run(ctx context.Context) []BehavioralFlag {
	var flags []BehavioralFlag

	burst, err := h.detectBurstVoting(ctx)
	if err != nil {
		log.Printf("Burst-voting detector failed: %v", err)
	} else {
		flags = append(flags, burst...)
	}

	similar, err := h.detectContentSimilarity(ctx)
	if err != nil {
		log.Printf("Content-similarity detector failed: %v", err)
	} else {
		flags = append(flags, similar...)
	}

	lowDiv, err := h.detectLowDiversity(ctx)
	if err != nil {
		log.Printf("Low-diversity detector failed: %v", err)
	} else {
		flags = append(flags, lowDiv...)
	}

	return flags
}

// detectBurstVoting flags authors with more than burstThreshold reactions
// in the last ten minutes.
func (h *Heuristics) detectBurstVoting(ctx context.Context) ([]BehavioralFlag, error) {
	counts, err := h.activityRepo.ReactionBursts(ctx, burstWindow, burstThreshold)
	if err != nil {
		return nil, fmt.Errorf("failed to scan reaction bursts: %w", err)
	}

	var flags []BehavioralFlag
	for did, count := range counts {
		flag := BehavioralFlag{
			Type:         FlagBurstVoting,
			AffectedDIDs: []string{did},
			Details: map[string]string{
				"reactions": strconv.Itoa(count),
				"windowMin": strconv.Itoa(int(burstWindow.Minutes())),
			},
			DetectedAt: time.Now(),
		}
		if err := h.flagRepo.Insert(ctx, &flag); err != nil {
			return nil, fmt.Errorf("failed to persist burst flag: %w", err)
		}
		flags = append(flags, flag)
	}
	return flags, nil
}

// detectContentSimilarity clusters near-duplicate topics and replies from
// different authors over the last 24 hours using trigram Jaccard similarity.
func (h *Heuristics) detectContentSimilarity(ctx context.Context) ([]BehavioralFlag, error) {
	contents, err := h.activityRepo.RecentContents(ctx, similarityWindow)
	if err != nil {
		return nil, fmt.Errorf("failed to scan recent contents: %w", err)
	}

	type doc struct {
		uri      string
		author   string
		trigrams map[string]bool
	}
	docs := make([]doc, 0, len(contents))
	for _, c := range contents {
		grams := Trigrams(c.Text)
		if len(grams) == 0 {
			continue
		}
		docs = append(docs, doc{uri: c.URI, author: c.AuthorDID, trigrams: grams})
	}

	// Cluster pairs from different authors keyed by the first URI seen.
	clusterOf := make(map[string]string)               // uri → cluster key
	clusterAuthors := make(map[string]map[string]bool) // cluster key → authors
	for i := 0; i < len(docs); i++ {
		for j := i + 1; j < len(docs); j++ {
			if docs[i].author == docs[j].author {
				continue
			}
			if Jaccard(docs[i].trigrams, docs[j].trigrams) < similarityThreshold {
				continue
			}

			key, ok := clusterOf[docs[i].uri]
			if !ok {
				key, ok = clusterOf[docs[j].uri]
			}
			if !ok {
				key = docs[i].uri
			}
			clusterOf[docs[i].uri] = key
			clusterOf[docs[j].uri] = key
			if clusterAuthors[key] == nil {
				clusterAuthors[key] = make(map[string]bool)
			}
			clusterAuthors[key][docs[i].author] = true
			clusterAuthors[key][docs[j].author] = true
		}
	}

	var flags []BehavioralFlag
	for key, authors := range clusterAuthors {
		if len(authors) < similarityMinAuthors {
			continue
		}
		dids := make([]string, 0, len(authors))
		for did := range authors {
			dids = append(dids, did)
		}
		sort.Strings(dids)

		flag := BehavioralFlag{
			Type:         FlagContentSimilarity,
			AffectedDIDs: dids,
			Details: map[string]string{
				"clusterUri": key,
				"authors":    strconv.Itoa(len(dids)),
			},
			DetectedAt: time.Now(),
		}
		if err := h.flagRepo.Insert(ctx, &flag); err != nil {
			return nil, fmt.Errorf("failed to persist similarity flag: %w", err)
		}
		flags = append(flags, flag)
	}
	return flags, nil
}

// detectLowDiversity flags authors who react heavily but at almost no one:
// more than 10 reactions overall landing on fewer than 3 distinct subjects.
func (h *Heuristics) detectLowDiversity(ctx context.Context) ([]BehavioralFlag, error) {
	diversity, err := h.activityRepo.ReactionDiversity(ctx, diversityMinReactions)
	if err != nil {
		return nil, fmt.Errorf("failed to scan reaction diversity: %w", err)
	}

	var flags []BehavioralFlag
	for did, d := range diversity {
		if d.Reactions <= diversityMinReactions || d.DistinctSubjects >= diversityMaxSubjects {
			continue
		}
		flag := BehavioralFlag{
			Type:         FlagLowDiversity,
			AffectedDIDs: []string{did},
			Details: map[string]string{
				"reactions": strconv.Itoa(d.Reactions),
				"subjects":  strconv.Itoa(d.DistinctSubjects),
			},
			DetectedAt: time.Now(),
		}
		if err := h.flagRepo.Insert(ctx, &flag); err != nil {
			return nil, fmt.Errorf("failed to persist diversity flag: %w", err)
		}
		flags = append(flags, flag)
	}
	return flags, nil
}

// Trigrams builds the normalized trigram set of a text: lowercased,
// non-alphanumerics stripped, whitespace collapsed to single spaces.
func Trigrams(text string) map[string]bool {
	var b strings.Builder
	b.Grow(len(text))
	lastSpace := true
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case !lastSpace:
			b.WriteRune(' ')
			lastSpace = true
		}
	}
	normalized := strings.TrimSpace(b.String())

	runes := []rune(normalized)
	if len(runes) < 3 {
		return nil
	}
	grams := make(map[string]bool, len(runes)-2)
	for i := 0; i+3 <= len(runes); i++ {
		grams[string(runes[i:i+3])] = true
	}
	return grams
}

// Jaccard computes |a ∩ b| / |a ∪ b| for two trigram sets.
func Jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	smaller, larger := a, b
	if len(b) < len(a) {
		smaller, larger = b, a
	}
	intersection := 0
	for g := range smaller {
		if larger[g] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}
