package pipeline

import (
	"strconv"

	"github.com/hyperjump/kakushi/internal/models"
	"github.com/hyperjump/kakushi/pkg/utils"
)

// FilterScores replaces the hits of result with the filtered set and attaches each
// survivor's text, sliced from text by its character offsets.
//
// With removeDuplicates, hits sharing a start:end span keep only the highest score, and
// only when that score is strictly above threshold. Without it every hit passes and the
// threshold is not applied.
func FilterScores(result *models.EngineResult, text string, threshold float64, removeDuplicates bool) {
	if result == nil {
		return
	}
	hits := result.Hits()
	var kept []models.EntityHit
	if removeDuplicates {
		best := make(map[string]int, len(hits))
		var order []string
		for i, h := range hits {
			key := strconv.Itoa(h.Start) + ":" + strconv.Itoa(h.End)
			j, seen := best[key]
			if !seen {
				order = append(order, key)
				best[key] = i
				continue
			}
			if h.Score > hits[j].Score {
				best[key] = i
			}
		}
		kept = make([]models.EntityHit, 0, len(order))
		for _, key := range order {
			if h := hits[best[key]]; h.Score > threshold {
				kept = append(kept, h)
			}
		}
	} else {
		kept = append(make([]models.EntityHit, 0, len(hits)), hits...)
	}
	for i := range kept {
		kept[i].Text = utils.RuneSlice(text, kept[i].Start, kept[i].End)
	}
	result.SetHits(kept)
}
