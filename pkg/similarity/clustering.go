package similarity

import "github.com/thebtf/chorus/pkg/models"

// Default clustering policy. Callers take actual values from configuration;
// these are only the fallbacks.
const (
	DefaultThreshold    = 0.2
	DefaultMinGroupSize = 3
)

// ClusterComments partitions comments into similarity groups using greedy
// single-link clustering seeded in stored order. Each unclaimed comment
// seeds a candidate group and claims every later unclaimed comment whose
// embedding is similar enough to the seed's.
//
// Similarity is only checked against the group's seed, not against members
// added afterwards. This is a deliberate approximation, not transitive
// clustering: a comment similar to a member but not to the seed stays out.
//
// Candidate groups smaller than minSize are dropped, and their members stay
// claimed for the remainder of the call — they neither seed new groups nor
// join later ones. Comments without an embedding are skipped entirely.
func ClusterComments(comments []*models.Comment, threshold float64, minSize int) [][]*models.Comment {
	if minSize < 1 {
		minSize = 1
	}

	claimed := make([]bool, len(comments))
	var groups [][]*models.Comment

	for i := 0; i < len(comments); i++ {
		if claimed[i] || len(comments[i].Embedding) == 0 {
			continue
		}

		group := []*models.Comment{comments[i]}
		claimed[i] = true

		for j := i + 1; j < len(comments); j++ {
			if claimed[j] || len(comments[j].Embedding) == 0 {
				continue
			}
			if Cosine(comments[i].Embedding, comments[j].Embedding) >= threshold {
				group = append(group, comments[j])
				claimed[j] = true
			}
		}

		if len(group) >= minSize {
			groups = append(groups, group)
		}
	}

	return groups
}
