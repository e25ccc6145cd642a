package retrieval

import (
	"sort"

	"github.com/longregen/parallelproof/internal/domain/models"
)

// DefaultRRFConstant is the k in 1/(k+rank).
const DefaultRRFConstant = 60

// Fused is a pattern with its reciprocal rank fusion score.
type Fused struct {
	Pattern *models.OptimizationPattern
	Score   float64
}

// Fuse merges ranked lists by reciprocal rank fusion. A pattern present in
// several lists accumulates one 1/(k+rank) term per list. Ties keep the
// order in which patterns were first seen, earlier lists first.
func Fuse(k int, lists ...[]models.RankedPattern) []Fused {
	index := make(map[int64]int)
	var fused []Fused

	for _, list := range lists {
		for _, rp := range list {
			if rp.Pattern == nil {
				continue
			}
			contribution := 1.0 / float64(k+rp.Rank)
			if i, ok := index[rp.Pattern.ID]; ok {
				fused[i].Score += contribution
				continue
			}
			index[rp.Pattern.ID] = len(fused)
			fused = append(fused, Fused{Pattern: rp.Pattern, Score: contribution})
		}
	}

	sort.SliceStable(fused, func(i, j int) bool {
		return fused[i].Score > fused[j].Score
	})
	return fused
}
