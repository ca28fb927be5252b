package stylist

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/nimastyle/nima-backend/models"
)

type fakeCatalog struct {
	items []models.Item
}

func (f *fakeCatalog) ActiveByCategory(ctx context.Context, category, gender string, exclude map[primitive.ObjectID]bool) ([]models.Item, error) {
	var out []models.Item
	for _, it := range f.items {
		if it.Category != category || !it.IsActive || exclude[it.ID] {
			continue
		}
		if gender != "" && it.Gender != "" && it.Gender != gender && it.Gender != models.GenderUnisex {
			continue
		}
		out = append(out, it)
	}
	return out, nil
}

func catalogItem(name, category string, price float64) models.Item {
	return models.Item{
		ID:       primitive.NewObjectID(),
		Name:     name,
		Category: category,
		Price:    price,
		Currency: "USD",
		IsActive: true,
	}
}

func testMatcher(items []models.Item) *Matcher {
	return NewMatcherWithRand(&fakeCatalog{items: items}, rand.New(rand.NewSource(1)))
}

func TestComposeLooksNoItemSharedBetweenLooks(t *testing.T) {
	items := []models.Item{
		catalogItem("Silk Blouse", models.CategoryTop, 40),
		catalogItem("Linen Shirt", models.CategoryTop, 35),
		catalogItem("Knit Polo", models.CategoryTop, 30),
		catalogItem("Pleated Skirt", models.CategoryBottom, 45),
		catalogItem("Wide Trousers", models.CategoryBottom, 50),
		catalogItem("Chino Pants", models.CategoryBottom, 38),
		catalogItem("Leather Loafers", models.CategoryShoes, 80),
		catalogItem("Suede Boots", models.CategoryShoes, 95),
		catalogItem("Canvas Tote", models.CategoryBag, 25),
	}
	m := testMatcher(items)

	looks, err := m.ComposeLooks(context.Background(), MatchRequest{}, 3)
	require.NoError(t, err)
	require.NotEmpty(t, looks)

	seen := make(map[primitive.ObjectID]bool)
	for _, look := range looks {
		assert.GreaterOrEqual(t, len(look), 2)
		assert.LessOrEqual(t, len(look), 4)

		categories := make(map[string]bool)
		for _, it := range look {
			assert.False(t, seen[it.ID], "item %s appears in two looks", it.Name)
			seen[it.ID] = true
			assert.False(t, categories[it.Category], "duplicate category %s in one look", it.Category)
			categories[it.Category] = true
		}
	}
}

func TestComposeLooksEmptyCatalogIsNotAnError(t *testing.T) {
	m := testMatcher(nil)
	looks, err := m.ComposeLooks(context.Background(), MatchRequest{Occasion: "wedding"}, 3)
	require.NoError(t, err)
	assert.Empty(t, looks)
}

func TestComposeLooksExclusionExhaustsCatalog(t *testing.T) {
	items := []models.Item{
		catalogItem("Silk Blouse", models.CategoryTop, 40),
		catalogItem("Pleated Skirt", models.CategoryBottom, 45),
	}
	m := testMatcher(items)

	looks, err := m.ComposeLooks(context.Background(), MatchRequest{}, 3)
	require.NoError(t, err)
	assert.Len(t, looks, 1, "a two-item catalog can fill exactly one look")
}

func TestFormalityGateWithinLook(t *testing.T) {
	jeans := catalogItem("Slim Jeans", models.CategoryBottom, 40)
	trousers := catalogItem("Tailored Trousers", models.CategoryBottom, 60)
	sequin := catalogItem("Sequin Top", models.CategoryTop, 70)
	m := testMatcher([]models.Item{sequin, jeans, trousers})

	// Start at the separates strategy so the top leads the look.
	look, err := m.ComposeLook(context.Background(), MatchRequest{}, map[primitive.ObjectID]bool{}, 2)
	require.NoError(t, err)
	require.Len(t, look, 2)

	for _, it := range look {
		if it.Category == models.CategoryBottom {
			assert.Equal(t, "Tailored Trousers", it.Name,
				"an evening top cannot pair with casual jeans")
		}
	}
}

func TestBudgetScoringPrefersInBandItems(t *testing.T) {
	cheap := catalogItem("Cotton Top", models.CategoryTop, 25)
	pricey := catalogItem("Cashmere Top", models.CategoryTop, 400)
	bottom := catalogItem("Chino Pants", models.CategoryBottom, 30)
	m := testMatcher([]models.Item{pricey, cheap, bottom})

	look, err := m.ComposeLook(context.Background(),
		MatchRequest{BudgetRange: models.BudgetLow}, map[primitive.ObjectID]bool{}, 2)
	require.NoError(t, err)
	require.Len(t, look, 2)

	for _, it := range look {
		if it.Category == models.CategoryTop {
			assert.Equal(t, "Cotton Top", it.Name)
		}
	}
}

func TestFallbackLookIgnoresCoherence(t *testing.T) {
	tee := catalogItem("Graphic Tee", models.CategoryTop, 20)
	heels := catalogItem("Sequin Heels", models.CategoryShoes, 90)
	m := testMatcher([]models.Item{tee, heels})

	// No strategy can complete: there is no bottom, dress or outfit.
	look, err := m.ComposeLook(context.Background(), MatchRequest{}, map[primitive.ObjectID]bool{}, 0)
	require.NoError(t, err)
	assert.Len(t, look, 2, "fallback scans for any two items")
}

func TestComposeLookDressStrategyCapsAddOns(t *testing.T) {
	items := []models.Item{
		catalogItem("Wrap Midi", models.CategoryDress, 80),
		catalogItem("Leather Loafers", models.CategoryShoes, 80),
		catalogItem("Canvas Tote", models.CategoryBag, 25),
		catalogItem("Gold Hoops", models.CategoryJewelry, 30),
	}
	m := testMatcher(items)

	look, err := m.ComposeLook(context.Background(), MatchRequest{}, map[primitive.ObjectID]bool{}, 0)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(look), 2)
	assert.LessOrEqual(t, len(look), 3, "dress strategy tops out at three items")
	assert.Equal(t, models.CategoryDress, look[0].Category)
	for _, it := range look[1:] {
		assert.Contains(t, CompleteOutfitAddOns(), it.Category)
	}
}

func TestComposeLooksMaleProfileNeverGetsDress(t *testing.T) {
	dress := catalogItem("Wrap Midi", models.CategoryDress, 80)
	dress.Gender = models.GenderFemale
	slip := catalogItem("Slip Dress", models.CategoryDress, 65)
	slip.Gender = models.GenderFemale

	oxford := catalogItem("Oxford Shirt", models.CategoryTop, 45)
	oxford.Gender = models.GenderMale
	tee := catalogItem("Crew Tee", models.CategoryTop, 20)
	tee.Gender = models.GenderUnisex
	chinos := catalogItem("Chino Pants", models.CategoryBottom, 38)
	chinos.Gender = models.GenderMale
	jeans := catalogItem("Straight Jeans", models.CategoryBottom, 42)
	jeans.Gender = models.GenderUnisex
	sneakers := catalogItem("White Sneakers", models.CategoryShoes, 70)
	sneakers.Gender = models.GenderUnisex

	m := testMatcher([]models.Item{dress, slip, oxford, tee, chinos, jeans, sneakers})

	looks, err := m.ComposeLooks(context.Background(), MatchRequest{Gender: models.GenderMale}, 3)
	require.NoError(t, err)
	require.NotEmpty(t, looks)

	for _, look := range looks {
		for _, it := range look {
			assert.NotEqual(t, models.CategoryDress, it.Category,
				"a male profile got %s", it.Name)
		}
	}
}

func TestCoherenceGateHoldsWithPreferencesIgnored(t *testing.T) {
	jeans := catalogItem("Slim Jeans", models.CategoryBottom, 40)
	trousers := catalogItem("Tailored Trousers", models.CategoryBottom, 60)
	sequin := catalogItem("Sequin Top", models.CategoryTop, 70)
	m := testMatcher([]models.Item{sequin, jeans, trousers})

	// The relaxed pass drops style and budget scoring, never the gate.
	look, err := m.ComposeLook(context.Background(),
		MatchRequest{IgnorePreferences: true, BudgetRange: models.BudgetLow}, map[primitive.ObjectID]bool{}, 2)
	require.NoError(t, err)
	require.Len(t, look, 2)

	for _, it := range look {
		if it.Category == models.CategoryBottom {
			assert.Equal(t, "Tailored Trousers", it.Name,
				"an evening top cannot pair with casual jeans even when preferences are ignored")
		}
	}
}

type countingCatalog struct {
	calls int
}

func (c *countingCatalog) ActiveByCategory(ctx context.Context, category, gender string, exclude map[primitive.ObjectID]bool) ([]models.Item, error) {
	c.calls++
	return nil, nil
}

func TestComposeLooksRetriesRelaxedWhenStrictPassIsEmpty(t *testing.T) {
	// One full composition pass over an empty catalog costs a fixed number
	// of catalog queries; measure it with direct ComposeLook calls.
	baseline := &countingCatalog{}
	m := NewMatcherWithRand(baseline, rand.New(rand.NewSource(1)))
	for i := 0; i < 3; i++ {
		_, err := m.ComposeLook(context.Background(), MatchRequest{}, map[primitive.ObjectID]bool{}, i)
		require.NoError(t, err)
	}
	require.Positive(t, baseline.calls)

	counted := &countingCatalog{}
	m = NewMatcherWithRand(counted, rand.New(rand.NewSource(1)))
	looks, err := m.ComposeLooks(context.Background(), MatchRequest{BudgetRange: models.BudgetLow}, 3)
	require.NoError(t, err)
	assert.Empty(t, looks)
	assert.Equal(t, 2*baseline.calls, counted.calls,
		"an empty strict pass must be followed by exactly one relaxed pass")
}

func TestRemixFraction(t *testing.T) {
	a := catalogItem("Silk Blouse", models.CategoryTop, 40)
	b := catalogItem("Pleated Skirt", models.CategoryBottom, 45)
	c := catalogItem("Suede Boots", models.CategoryShoes, 95)
	d := catalogItem("Canvas Tote", models.CategoryBag, 25)

	looks := [][]models.Item{{a, b}, {c, d}}

	assert.Equal(t, 0.0, RemixFraction(looks, nil))
	assert.Equal(t, 0.5, RemixFraction(looks, map[primitive.ObjectID]bool{a.ID: true, b.ID: true}))
	assert.Equal(t, 1.0, RemixFraction(looks, map[primitive.ObjectID]bool{a.ID: true, b.ID: true, c.ID: true, d.ID: true}))
	assert.Equal(t, 0.0, RemixFraction(nil, map[primitive.ObjectID]bool{a.ID: true}))
}
