package graph

import (
	"sort"

	"github.com/ideate-ai/platform/internal/model"
)

// minOrderGap is the spacing below which two adjacent fractional keys are
// considered collapsed by float64 precision loss and the sibling list needs
// renumbering.
const minOrderGap = 1e-9

// CalculateOrder returns the fractional sort key for a node inserted among
// siblings. With insertAfterID set, the new key is the midpoint between that
// sibling and its successor; inserting after the last sibling yields max+1;
// without insertAfterID the node goes to the head at min-1. An empty sibling
// list yields 1.
//
// needsRebalance reports that repeated midpoint inserts have exhausted the
// local float64 precision and the caller should renumber via RebalanceOrders.
func CalculateOrder(siblings []model.Thing, insertAfterID string) (order float64, needsRebalance bool) {
	if len(siblings) == 0 {
		return 1, false
	}

	sorted := make([]model.Thing, len(siblings))
	copy(sorted, siblings)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Order < sorted[j].Order
	})

	if insertAfterID == "" {
		return sorted[0].Order - 1, false
	}

	for i := range sorted {
		if sorted[i].ID != insertAfterID {
			continue
		}
		if i == len(sorted)-1 {
			return sorted[i].Order + 1, false
		}
		mid := (sorted[i].Order + sorted[i+1].Order) / 2
		gap := sorted[i+1].Order - sorted[i].Order
		return mid, gap < minOrderGap
	}

	// Unknown sibling: append at the tail.
	return sorted[len(sorted)-1].Order + 1, false
}

// RebalanceOrders renumbers a sibling list to consecutive integer keys,
// preserving relative order. Returns the new key per Thing id.
func RebalanceOrders(siblings []model.Thing) map[string]float64 {
	sorted := make([]model.Thing, len(siblings))
	copy(sorted, siblings)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Order < sorted[j].Order
	})

	orders := make(map[string]float64, len(sorted))
	for i := range sorted {
		orders[sorted[i].ID] = float64(i + 1)
	}
	return orders
}
