package entity

import (
	"sort"

	"github.com/hotelops/requisition-approval/internal/domain/approval"
)

// GroupByCategory groups items by category, keeping the first-seen order of
// items inside each group.
func GroupByCategory(items []*RequisitionItem) map[string][]*RequisitionItem {
	groups := make(map[string][]*RequisitionItem)
	for _, item := range items {
		category := item.Category
		if category == "" {
			category = CategoryOther
		}
		groups[category] = append(groups[category], item)
	}
	return groups
}

// CategoryTotals returns per-category line counts, quantities, costs and status counts
func CategoryTotals(items []*RequisitionItem) []CategoryTotal {
	groups := GroupByCategory(items)

	totals := make([]CategoryTotal, 0, len(groups))
	for category, lines := range groups {
		t := CategoryTotal{
			Category: category,
			Lines:    len(lines),
			Summary:  approval.Summarize(lines),
		}
		for _, l := range lines {
			t.Quantity += l.Quantity
			t.TotalCents += l.LineTotalCents()
		}
		totals = append(totals, t)
	}

	sort.Slice(totals, func(i, j int) bool {
		return totals[i].Category < totals[j].Category
	})
	return totals
}

// ApprovedTotalCents sums the cost of approved lines only
func ApprovedTotalCents(items []*RequisitionItem) int64 {
	var total int64
	for _, item := range items {
		if item.Status == approval.ItemApproved {
			total += item.LineTotalCents()
		}
	}
	return total
}
