// Package pieces groups piece records and computes aggregate metrics.
package pieces

import (
	"fmt"

	"github.com/ekaya-inc/precast-engine/pkg/apperrors"
	"github.com/ekaya-inc/precast-engine/pkg/models"
)

// Group aggregates records with identical attributes into piece groups, in
// the order each attribute set is first seen.
//
// A group's PieceIDs is the ordered union of its members' identifiers. Its
// quantity is the number of those identifiers plus the declared quantity of
// members that list none, so both identifier-bearing and aggregate-only
// exports are supported.
//
// An identifier that ends up in two different groups makes the batch
// invalid and ErrDuplicateInstance is returned.
func Group(records []models.PieceRecord) ([]models.PieceGroup, error) {
	type accumulator struct {
		group models.PieceGroup
		seen  map[string]struct{}
		bare  int
	}

	index := make(map[models.PieceAttributes]int)
	owner := make(map[string]int)
	var accs []*accumulator

	for _, rec := range records {
		i, ok := index[rec.PieceAttributes]
		if !ok {
			i = len(accs)
			index[rec.PieceAttributes] = i
			accs = append(accs, &accumulator{
				group: models.PieceGroup{PieceAttributes: rec.PieceAttributes},
				seen:  make(map[string]struct{}),
			})
		}
		acc := accs[i]

		if len(rec.InstanceIDs) == 0 {
			acc.bare += rec.Quantity
			continue
		}
		for _, id := range rec.InstanceIDs {
			if prev, taken := owner[id]; taken && prev != i {
				return nil, fmt.Errorf("%w: %q is listed by %q and %q",
					apperrors.ErrDuplicateInstance, id, accs[prev].group.Name, acc.group.Name)
			}
			owner[id] = i
			if _, dup := acc.seen[id]; dup {
				continue
			}
			acc.seen[id] = struct{}{}
			acc.group.PieceIDs = append(acc.group.PieceIDs, id)
		}
	}

	groups := make([]models.PieceGroup, len(accs))
	for i, acc := range accs {
		acc.group.Quantity = len(acc.group.PieceIDs) + acc.bare
		if acc.group.PieceIDs == nil {
			acc.group.PieceIDs = []string{}
		}
		groups[i] = acc.group
	}
	return groups, nil
}

// InstanceIDs returns every identifier of the given groups in order.
func InstanceIDs(groups []models.PieceGroup) []string {
	var ids []string
	for _, g := range groups {
		ids = append(ids, g.PieceIDs...)
	}
	return ids
}
