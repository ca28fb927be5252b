package generation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nimastyle/nima-backend/models"
)

func TestParseStyleRequestExtractsJSON(t *testing.T) {
	tg := &fakeText{out: `Sure! {"occasion": "wedding", "comment": "You'll turn heads."} Hope that helps.`}
	req := ParseStyleRequest(context.Background(), tg, "I need something for my cousin's wedding")
	assert.Equal(t, "wedding", req.Occasion)
	assert.Equal(t, "You'll turn heads.", req.Comment)
}

func TestParseStyleRequestFallsBackOnModelError(t *testing.T) {
	tg := &fakeText{err: errors.New("model unavailable")}
	req := ParseStyleRequest(context.Background(), tg, "what should I wear to the office tomorrow")
	assert.Equal(t, "office", req.Occasion)
	assert.NotEmpty(t, req.Comment)
}

func TestParseStyleRequestFallsBackOnMalformedJSON(t *testing.T) {
	tg := &fakeText{out: `{"occasion": "wedding",`}
	req := ParseStyleRequest(context.Background(), tg, "relaxing at the beach")
	assert.Equal(t, "beach", req.Occasion)
}

func TestParseStyleRequestFallsBackWithoutJSON(t *testing.T) {
	tg := &fakeText{out: "I think you'd look great in linen."}
	req := ParseStyleRequest(context.Background(), tg, "dinner plans tonight")
	assert.Equal(t, "dinner", req.Occasion)
}

func TestParseStyleRequestFillsEmptyFieldsFromFallback(t *testing.T) {
	tg := &fakeText{out: `{"occasion": "", "comment": "Lovely choice!"}`}
	req := ParseStyleRequest(context.Background(), tg, "job interview next week")
	assert.Equal(t, "interview", req.Occasion)
	assert.Equal(t, "Lovely choice!", req.Comment)
}

func TestParseStyleRequestDefaultsToCasual(t *testing.T) {
	tg := &fakeText{err: errors.New("down")}
	req := ParseStyleRequest(context.Background(), tg, "surprise me")
	assert.Equal(t, "casual", req.Occasion)
}

func TestBuildRenderPromptUsesModelOutput(t *testing.T) {
	tg := &fakeText{out: "Tuck the blouse softly into the skirt."}
	prompt := BuildRenderPrompt(context.Background(), tg, "Ada", "a full outfit",
		[]models.Item{{Name: "Silk Blouse", Category: models.CategoryTop}})
	assert.Equal(t, "Tuck the blouse softly into the skirt.", prompt)
}

func TestBuildRenderPromptFallsBackToStatic(t *testing.T) {
	tg := &fakeText{out: "   "}
	prompt := BuildRenderPrompt(context.Background(), tg, "Ada", "a full outfit",
		[]models.Item{{Name: "Silk Blouse"}, {Name: "Pleated Skirt"}})
	assert.Contains(t, prompt, "Silk Blouse")
	assert.Contains(t, prompt, "Pleated Skirt")
}

func TestSimplifiedRenderPromptListsItems(t *testing.T) {
	prompt := SimplifiedRenderPrompt([]models.Item{
		{Name: "Silk Blouse", Description: "ivory, relaxed fit"},
		{Name: "Pleated Skirt"},
	})
	assert.Contains(t, prompt, "Silk Blouse - ivory, relaxed fit")
	assert.Contains(t, prompt, "Pleated Skirt")
	assert.Contains(t, prompt, "Keep the person unchanged")
}
