// Package annotations merges annotation lists from concurrent writers and
// encodes them as the versioned sidecar JSON stored next to each PDF.
package annotations

import (
	"sort"

	"github.com/dmitrijs2005/refkeeper/internal/client/models"
)

// Merge unions local and remote by annotation id. When both sides carry an
// id the later ModifiedAt wins and exact ties keep the local copy. The
// result is in reading order (see Sort). Inputs are not modified.
func Merge(local, remote []models.Annotation) models.Annotations {
	out := make(models.Annotations, 0, len(local)+len(remote))
	index := make(map[string]int, len(local)+len(remote))

	add := func(a models.Annotation) {
		if a == nil {
			return
		}
		id := a.Base().ID
		i, seen := index[id]
		if !seen {
			index[id] = len(out)
			out = append(out, a)
			return
		}
		if a.Base().ModifiedAt.After(out[i].Base().ModifiedAt) {
			out[i] = a
		}
	}

	for _, a := range local {
		add(a)
	}
	for _, a := range remote {
		add(a)
	}

	Sort(out)
	return out
}

// Sort orders annotations by page ascending, then top to bottom (anchor y
// descending). Equal keys keep their relative order.
func Sort(as []models.Annotation) {
	sort.SliceStable(as, func(i, j int) bool {
		pi, pj := as[i].Base().Page, as[j].Base().Page
		if pi != pj {
			return pi < pj
		}
		return as[i].AnchorY() > as[j].AnchorY()
	})
}
