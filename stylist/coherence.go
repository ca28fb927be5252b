// Package stylist composes wearable looks out of catalog items. The
// coherence rules here are pure functions so the keyword tables can later be
// swapped for a learned classifier without touching the matcher.
package stylist

import (
	"strings"

	"github.com/nimastyle/nima-backend/models"
)

// Formality levels, ordered least to most formal.
const (
	FormalityCasual = iota
	FormalitySmartCasual
	FormalityFormal
	FormalityEvening
)

// DefaultMinCoherence is the minimum average pairwise score a candidate must
// reach against the items already in a look.
const DefaultMinCoherence = 10.0

var completeOutfitKeywords = []string{
	"set", "suit", "jumpsuit", "co-ord", "matching",
	"and pants", "and trouser", "and shorts", "and skirt",
	"two-piece",
}

// Keyword tables scanned most formal to least. The first hit wins, so an
// "evening blazer" classifies as evening, not formal.
var formalityKeywords = []struct {
	level    int
	keywords []string
}{
	{FormalityEvening, []string{"evening", "gala", "cocktail", "gown", "tuxedo", "black tie", "sequin", "glam"}},
	{FormalityFormal, []string{"formal", "suit", "blazer", "office", "business", "tailored", "oxford", "work"}},
	{FormalityCasual, []string{"casual", "t-shirt", "tee", "jeans", "denim", "hoodie", "sneaker", "jogger", "shorts", "beach"}},
}

var neutralColors = map[string]bool{
	"black": true, "white": true, "grey": true, "gray": true,
	"beige": true, "navy": true, "brown": true, "cream": true,
}

// IsCompleteOutfit reports whether the item is a full outfit on its own
// (dress, jumpsuit, matching set). Complete outfits may only be paired with
// shoes, accessories, bags and jewelry.
func IsCompleteOutfit(item *models.Item) bool {
	if item.Category == models.CategoryOutfit || item.Category == models.CategoryDress {
		return true
	}
	name := strings.ToLower(item.Name)
	for _, kw := range completeOutfitKeywords {
		if strings.Contains(name, kw) {
			return true
		}
	}
	return false
}

// CompleteOutfitAddOns returns the only categories that may be layered on a
// complete-outfit base.
func CompleteOutfitAddOns() []string {
	return []string{models.CategoryShoes, models.CategoryAccessory, models.CategoryBag, models.CategoryJewelry}
}

// FormalityOf classifies an item on the casual..evening scale by keyword
// matching over name, subcategory, tags and occasions. Unmatched items
// default to smart casual.
func FormalityOf(item *models.Item) int {
	haystack := itemText(item)
	for _, group := range formalityKeywords {
		for _, kw := range group.keywords {
			if strings.Contains(haystack, kw) {
				return group.level
			}
		}
	}
	return FormalitySmartCasual
}

func itemText(item *models.Item) string {
	var sb strings.Builder
	sb.WriteString(item.Name)
	sb.WriteString(" ")
	sb.WriteString(item.Subcategory)
	for _, t := range item.Tags {
		sb.WriteString(" ")
		sb.WriteString(t)
	}
	for _, o := range item.Occasions {
		sb.WriteString(" ")
		sb.WriteString(o)
	}
	return strings.ToLower(sb.String())
}

// Compatible is the hard gate: two items may share a look only when their
// formality levels are the same or adjacent.
func Compatible(a, b *models.Item) bool {
	diff := FormalityOf(a) - FormalityOf(b)
	if diff < 0 {
		diff = -diff
	}
	return diff <= 1
}

// CoherenceScore is the soft compatibility heuristic between two items.
// Unlike Compatible it never excludes a pair outright; a large formality gap
// only penalizes.
func CoherenceScore(a, b *models.Item) float64 {
	score := 0.0

	diff := FormalityOf(a) - FormalityOf(b)
	if diff < 0 {
		diff = -diff
	}
	switch diff {
	case 0:
		score += 25
	case 1:
		score += 15
	default:
		score -= 20
	}

	score += 15 * float64(sharedCount(a.Occasions, b.Occasions))
	score += 5 * float64(sharedCount(a.Tags, b.Tags))

	if hasNeutralColor(a) || hasNeutralColor(b) {
		score += 5
	}
	if sharedCount(a.Colors, b.Colors) > 0 {
		score += 10
	}

	return score
}

// CoherentWithLook reports whether candidate can join the given items: it
// must pass the hard formality gate against every member and average at
// least minAvg coherence. An empty look accepts anything.
func CoherentWithLook(candidate *models.Item, existing []models.Item, minAvg float64) bool {
	if len(existing) == 0 {
		return true
	}
	total := 0.0
	for i := range existing {
		if !Compatible(candidate, &existing[i]) {
			return false
		}
		total += CoherenceScore(candidate, &existing[i])
	}
	return total/float64(len(existing)) >= minAvg
}

func sharedCount(a, b []string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]bool, len(a))
	for _, v := range a {
		set[strings.ToLower(v)] = true
	}
	n := 0
	for _, v := range b {
		if set[strings.ToLower(v)] {
			n++
		}
	}
	return n
}

func hasNeutralColor(item *models.Item) bool {
	for _, c := range item.Colors {
		if neutralColors[strings.ToLower(c)] {
			return true
		}
	}
	return false
}
