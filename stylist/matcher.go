package stylist

import (
	"context"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/nimastyle/nima-backend/models"
)

// MatchRequest carries everything one look composition needs to know about
// the user and the occasion.
type MatchRequest struct {
	Gender           string
	StylePreferences []string
	BudgetRange      string
	Occasion         string

	// IgnorePreferences disables style and budget scoring; set on the
	// relaxed second attempt. Occasion relevance and the coherence gate
	// still apply.
	IgnorePreferences bool
}

// Matcher assembles looks from the catalog using the strategy table.
type Matcher struct {
	catalog CatalogIndex

	mu  sync.Mutex
	rng *rand.Rand
}

func NewMatcher(catalog CatalogIndex) *Matcher {
	return &Matcher{
		catalog: catalog,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// NewMatcherWithRand fixes the random source, used by tests.
func NewMatcherWithRand(catalog CatalogIndex, rng *rand.Rand) *Matcher {
	return &Matcher{catalog: catalog, rng: rng}
}

// ComposeLooks builds up to count looks sharing one exclusion set, so an
// item never appears in two looks of the same request. When the strict pass
// produces nothing the whole request is retried once with preferences
// ignored. An empty result is the no-matches business outcome, not an error.
func (m *Matcher) ComposeLooks(ctx context.Context, req MatchRequest, count int) ([][]models.Item, error) {
	exclude := make(map[primitive.ObjectID]bool)
	var looks [][]models.Item

	for attempt := 0; attempt < 2 && len(looks) == 0; attempt++ {
		r := req
		if attempt == 1 {
			r.IgnorePreferences = true
		}
		for i := 0; i < count; i++ {
			items, err := m.ComposeLook(ctx, r, exclude, i)
			if err != nil {
				return nil, err
			}
			if len(items) < 2 {
				continue
			}
			for idx := range items {
				exclude[items[idx].ID] = true
			}
			looks = append(looks, items)
		}
	}
	return looks, nil
}

// ComposeLook produces one look of 2-4 mutually coherent items. Strategies
// are tried in rotation starting at strategyIdx; when every strategy fails a
// best-effort two-item fallback is scanned without the coherence gate.
func (m *Matcher) ComposeLook(ctx context.Context, req MatchRequest, exclude map[primitive.ObjectID]bool, strategyIdx int) ([]models.Item, error) {
	for offset := 0; offset < len(Strategies); offset++ {
		strat := Strategies[(strategyIdx+offset)%len(Strategies)]
		items, err := m.tryStrategy(ctx, strat, req, exclude)
		if err != nil {
			return nil, err
		}
		if len(items) >= 2 && len(items) >= strat.MinItems {
			return items, nil
		}
	}
	return m.fallbackLook(ctx, req, exclude)
}

func (m *Matcher) tryStrategy(ctx context.Context, strat Strategy, req MatchRequest, exclude map[primitive.ObjectID]bool) ([]models.Item, error) {
	var selected []models.Item

	for _, category := range strat.Base {
		pick, err := m.pickCoherent(ctx, category, req, exclude, selected)
		if err != nil {
			return nil, err
		}
		if pick == nil {
			// Base category can't be filled, the strategy is dead.
			return nil, nil
		}
		selected = append(selected, *pick)
	}

	optional := strat.Optional
	if strat.CompleteBase || anyCompleteOutfit(selected) {
		optional = intersect(optional, CompleteOutfitAddOns())
	}

	m.mu.Lock()
	want := 1 + m.rng.Intn(2)
	shuffled := append([]string(nil), optional...)
	m.rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	m.mu.Unlock()

	added := 0
	for _, category := range shuffled {
		if added >= want || len(selected) >= strat.MaxItems {
			break
		}
		pick, err := m.pickCoherent(ctx, category, req, exclude, selected)
		if err != nil {
			return nil, err
		}
		if pick == nil {
			continue
		}
		selected = append(selected, *pick)
		added++
	}

	if len(selected) < strat.MinItems {
		return nil, nil
	}
	return selected, nil
}

// pickCoherent fetches candidates for one category, scores them and returns
// the best-scored item passing the coherence gate against what's already in
// the look. Nil without error means the category has no usable item.
func (m *Matcher) pickCoherent(ctx context.Context, category string, req MatchRequest, exclude map[primitive.ObjectID]bool, selected []models.Item) (*models.Item, error) {
	candidates, err := m.catalog.ActiveByCategory(ctx, category, req.Gender, exclude)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	scored := make([]scoredItem, 0, len(candidates))
	for i := range candidates {
		scored = append(scored, scoredItem{item: candidates[i], score: m.scoreCandidate(&candidates[i], req)})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })

	for i := range scored {
		if contains(selected, scored[i].item.ID) {
			continue
		}
		if CoherentWithLook(&scored[i].item, selected, DefaultMinCoherence) {
			return &scored[i].item, nil
		}
	}
	return nil, nil
}

// fallbackLook scans a fixed category order and takes the first available
// item per category until two items are gathered. Coherence is deliberately
// not enforced here; two items beats an empty closet.
func (m *Matcher) fallbackLook(ctx context.Context, req MatchRequest, exclude map[primitive.ObjectID]bool) ([]models.Item, error) {
	var selected []models.Item
	haveDress := false

	for _, category := range fallbackOrder {
		if len(selected) >= 2 {
			break
		}
		if haveDress && (category == models.CategoryTop || category == models.CategoryBottom) {
			continue
		}
		candidates, err := m.catalog.ActiveByCategory(ctx, category, req.Gender, exclude)
		if err != nil {
			return nil, err
		}
		if len(candidates) == 0 {
			continue
		}
		selected = append(selected, candidates[0])
		if category == models.CategoryDress {
			haveDress = true
		}
	}

	if len(selected) < 2 {
		return nil, nil
	}
	return selected, nil
}

type scoredItem struct {
	item  models.Item
	score float64
}

func (m *Matcher) scoreCandidate(item *models.Item, req MatchRequest) float64 {
	m.mu.Lock()
	score := m.rng.Float64() * 5
	m.mu.Unlock()

	// Occasion relevance applies even on the relaxed pass.
	if req.Occasion != "" {
		occ := strings.ToLower(req.Occasion)
		for _, o := range item.Occasions {
			if strings.Contains(strings.ToLower(o), occ) {
				score += 30
				break
			}
		}
		if strings.Contains(strings.ToLower(item.Name), occ) || strings.Contains(strings.ToLower(item.Description), occ) {
			score += 10
		}
		for _, t := range item.Tags {
			if strings.Contains(strings.ToLower(t), occ) {
				score += 10
				break
			}
		}
	}

	if req.IgnorePreferences {
		return score
	}

	for _, pref := range req.StylePreferences {
		for _, t := range item.Tags {
			if strings.EqualFold(pref, t) {
				score += 10
			}
		}
	}
	score += budgetScore(item.Price, req.BudgetRange)
	return score
}

// Budget bands per range; prices outside the band score down, far outside
// score down hard.
var budgetBands = map[string][2]float64{
	models.BudgetLow:     {0, 60},
	models.BudgetMid:     {30, 180},
	models.BudgetPremium: {100, 1e9},
}

func budgetScore(price float64, budget string) float64 {
	band, ok := budgetBands[budget]
	if !ok {
		return 0
	}
	if price >= band[0] && price <= band[1] {
		return 10
	}
	if price >= band[0]*0.5 && price <= band[1]*1.5 {
		return -10
	}
	return -20
}

// RemixFraction reports which share of the chosen items already appears in
// the user's prior looks. Above one half the result reads as a remix of the
// existing wardrobe rather than a fresh set.
func RemixFraction(looks [][]models.Item, prior map[primitive.ObjectID]bool) float64 {
	total := 0
	seen := 0
	for _, look := range looks {
		for i := range look {
			total++
			if prior[look[i].ID] {
				seen++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(seen) / float64(total)
}

func anyCompleteOutfit(items []models.Item) bool {
	for i := range items {
		if IsCompleteOutfit(&items[i]) {
			return true
		}
	}
	return false
}

func intersect(a, b []string) []string {
	allowed := make(map[string]bool, len(b))
	for _, v := range b {
		allowed[v] = true
	}
	var out []string
	for _, v := range a {
		if allowed[v] {
			out = append(out, v)
		}
	}
	return out
}

func contains(items []models.Item, id primitive.ObjectID) bool {
	for i := range items {
		if items[i].ID == id {
			return true
		}
	}
	return false
}
