package stylist

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nimastyle/nima-backend/models"
)

func TestFormalityOf(t *testing.T) {
	tests := []struct {
		name string
		item models.Item
		want int
	}{
		{"jeans are casual", models.Item{Name: "Slim Jeans"}, FormalityCasual},
		{"blazer is formal", models.Item{Name: "Wool Blazer"}, FormalityFormal},
		{"gown is evening", models.Item{Name: "Satin Gown"}, FormalityEvening},
		{"unmatched defaults to smart casual", models.Item{Name: "Silk Blouse"}, FormalitySmartCasual},
		{"most formal keyword wins", models.Item{Name: "Evening Blazer"}, FormalityEvening},
		{"tags count", models.Item{Name: "Plain Shirt", Tags: []string{"office"}}, FormalityFormal},
		{"occasions count", models.Item{Name: "Plain Shirt", Occasions: []string{"beach"}}, FormalityCasual},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormalityOf(&tt.item))
		})
	}
}

func TestIsCompleteOutfit(t *testing.T) {
	assert.True(t, IsCompleteOutfit(&models.Item{Name: "Wrap Midi", Category: models.CategoryDress}))
	assert.True(t, IsCompleteOutfit(&models.Item{Name: "Linen Two-Piece", Category: models.CategoryOutfit}))
	assert.True(t, IsCompleteOutfit(&models.Item{Name: "Knit Co-ord", Category: models.CategoryTop}))
	assert.False(t, IsCompleteOutfit(&models.Item{Name: "Silk Blouse", Category: models.CategoryTop}))
}

func TestCompatible(t *testing.T) {
	tee := models.Item{Name: "Graphic Tee"}
	blouse := models.Item{Name: "Silk Blouse"}
	gown := models.Item{Name: "Satin Gown"}

	assert.True(t, Compatible(&tee, &blouse), "adjacent levels pass")
	assert.True(t, Compatible(&blouse, &blouse), "same level passes")
	assert.False(t, Compatible(&tee, &gown), "casual with evening is blocked")
}

func TestCoherenceScore(t *testing.T) {
	blouse := models.Item{
		Name:      "Silk Blouse",
		Colors:    []string{"white"},
		Tags:      []string{"minimal"},
		Occasions: []string{"brunch"},
	}
	trousers := models.Item{
		Name:      "Tailored Trousers",
		Colors:    []string{"white"},
		Tags:      []string{"minimal"},
		Occasions: []string{"brunch"},
	}
	// adjacent formality (15) + shared occasion (15) + shared tag (5) +
	// neutral color (5) + shared color (10)
	assert.Equal(t, 50.0, CoherenceScore(&blouse, &trousers))

	plainA := models.Item{Name: "Linen Shirt", Colors: []string{"red"}}
	plainB := models.Item{Name: "Pleated Skirt", Colors: []string{"green"}}
	assert.Equal(t, 25.0, CoherenceScore(&plainA, &plainB), "same formality alone")

	tee := models.Item{Name: "Graphic Tee", Colors: []string{"red"}}
	gown := models.Item{Name: "Satin Gown", Colors: []string{"green"}}
	assert.Equal(t, -20.0, CoherenceScore(&tee, &gown), "two-level gap penalizes")
}

func TestCoherentWithLook(t *testing.T) {
	blouse := models.Item{Name: "Silk Blouse"}
	trousers := models.Item{Name: "Tailored Trousers"}
	tee := models.Item{Name: "Graphic Tee"}
	gown := models.Item{Name: "Satin Gown"}

	assert.True(t, CoherentWithLook(&gown, nil, DefaultMinCoherence), "empty look accepts anything")
	assert.False(t, CoherentWithLook(&tee, []models.Item{gown}, DefaultMinCoherence), "gate blocks regardless of score")
	assert.True(t, CoherentWithLook(&blouse, []models.Item{trousers}, DefaultMinCoherence))
	assert.False(t, CoherentWithLook(&blouse, []models.Item{trousers}, 30.0), "average below threshold rejects")
}
