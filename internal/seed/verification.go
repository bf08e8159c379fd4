package seed

import (
	"fmt"

	"github.com/okian/medblog/internal/domain/model"
)

// verifyFeed checks that ranks run 1..n without gaps, that scores never
// increase down the feed and that every seeded article is present.
func verifyFeed(feed []model.RankedArticle, seeded []string) error {
	for i, r := range feed {
		if r.Rank != i+1 {
			return fmt.Errorf("entry %d has rank %d: %w", i, r.Rank, ErrVerification)
		}
		if i > 0 && r.Score > feed[i-1].Score {
			return fmt.Errorf("rank %d scores %d above rank %d with %d: %w",
				r.Rank, r.Score, feed[i-1].Rank, feed[i-1].Score, ErrVerification)
		}
	}

	present := make(map[string]struct{}, len(feed))
	for _, r := range feed {
		present[r.Article.ID] = struct{}{}
	}
	for _, id := range seeded {
		if _, ok := present[id]; !ok {
			return fmt.Errorf("seeded article %s missing from feed: %w", id, ErrVerification)
		}
	}
	return nil
}
