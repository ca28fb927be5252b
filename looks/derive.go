package looks

import (
	"log"
	"strings"

	"github.com/nimastyle/nima-backend/models"
)

const maxStyleTags = 5

// DeriveTotals sums item prices. The currency of the last item wins; the
// catalog carries a single currency today, so a mix is logged, not rejected.
func DeriveTotals(items []models.Item) (float64, string) {
	total := 0.0
	currency := ""
	for i := range items {
		total += items[i].Price
		if currency != "" && items[i].Currency != currency {
			log.Printf("Mixed currencies in look: %s vs %s", currency, items[i].Currency)
		}
		currency = items[i].Currency
	}
	return total, currency
}

// DeriveStyleTags unions the item tags, first occurrence order, capped.
func DeriveStyleTags(items []models.Item) []string {
	seen := make(map[string]bool)
	var tags []string
	for i := range items {
		for _, t := range items[i].Tags {
			key := strings.ToLower(t)
			if seen[key] {
				continue
			}
			seen[key] = true
			tags = append(tags, t)
			if len(tags) == maxStyleTags {
				return tags
			}
		}
	}
	return tags
}
