package search

import "sort"

// MergeDuties merges result lists and deduplicates by id. Items without an
// id are skipped; for duplicates the last occurrence wins, so geo results
// passed after text results override them and keep their distance data.
// First-seen order is preserved.
func MergeDuties(lists ...[]Duty) []Duty {
	index := make(map[string]int)
	var merged []Duty
	for _, list := range lists {
		for _, duty := range list {
			if duty.ID == "" {
				continue
			}
			if at, ok := index[duty.ID]; ok {
				merged[at] = duty
				continue
			}
			index[duty.ID] = len(merged)
			merged = append(merged, duty)
		}
	}
	return merged
}

// CombineDuties concatenates normalized trips and leads and orders the
// result newest-first.
func CombineDuties(trips, leads []Duty) []Duty {
	combined := make([]Duty, 0, len(trips)+len(leads))
	combined = append(combined, trips...)
	combined = append(combined, leads...)
	sort.SliceStable(combined, func(i, j int) bool {
		return combined[i].CreatedAt > combined[j].CreatedAt
	})
	return combined
}
