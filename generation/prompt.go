package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/nimastyle/nima-backend/models"
)

const renderSystemPrompt = `You are Nima, a fashion stylist writing rendering
instructions for an image model. Describe precisely how the person in the
reference photo should wear the given garments: fit, layering, tucking, how
the pieces sit together. Keep the person's face, body and pose exactly as in
the photo. Two short paragraphs, no lists.`

// BuildRenderPrompt asks the text model for rendering instructions tailored
// to the items. The output is advisory; on any failure a static prompt is
// used so the render pipeline never stalls on the text step.
func BuildRenderPrompt(ctx context.Context, tg TextGenerator, firstName, jobContext string, items []models.Item) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Person: %s. Rendering %s with these pieces:\n", displayName(firstName), jobContext)
	for i := range items {
		fmt.Fprintf(&sb, "- %s (%s)", items[i].Name, items[i].Category)
		if len(items[i].Colors) > 0 {
			fmt.Fprintf(&sb, ", colors: %s", strings.Join(items[i].Colors, ", "))
		}
		sb.WriteString("\n")
	}

	text, err := tg.Generate(ctx, renderSystemPrompt, sb.String(), 0.7)
	if err != nil || strings.TrimSpace(text) == "" {
		log.Printf("Render prompt generation failed, using static prompt: %v", err)
		return StaticRenderPrompt(items)
	}
	return text
}

// StaticRenderPrompt is the no-AI fallback rendering instruction.
func StaticRenderPrompt(items []models.Item) string {
	names := make([]string, 0, len(items))
	for i := range items {
		names = append(names, items[i].Name)
	}
	return fmt.Sprintf(`Edit the first photo so the person is wearing: %s.
Keep the person's face, body, pose and the background unchanged. Make the
clothing drape naturally and fit the person's proportions.`, strings.Join(names, ", "))
}

// SimplifiedRenderPrompt is the retry prompt used when the image model
// returned no image: text description only, reference photo only.
func SimplifiedRenderPrompt(items []models.Item) string {
	var sb strings.Builder
	sb.WriteString("Show the person in this photo wearing the following clothes: ")
	for i := range items {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(items[i].Name)
		if items[i].Description != "" {
			sb.WriteString(" - ")
			sb.WriteString(items[i].Description)
		}
	}
	sb.WriteString(". Keep the person unchanged, only change the outfit.")
	return sb.String()
}

const parseSystemPrompt = `You are Nima, an AI stylist. Extract what the user
wants from their message. Reply with only a JSON object:
{"occasion": "<one or two words, e.g. wedding, office, date night, casual>",
 "comment": "<one warm sentence from Nima about the request>"}`

// StyleRequest is what the chat parser extracts from a user message.
type StyleRequest struct {
	Occasion string `json:"occasion"`
	Comment  string `json:"comment"`
}

var jsonBlockRe = regexp.MustCompile(`\{[\s\S]*\}`)

// Occasion keywords for the no-AI fallback parse.
var occasionKeywords = []string{
	"wedding", "party", "office", "work", "interview", "date",
	"brunch", "dinner", "beach", "travel", "gym", "festival", "church",
}

// ParseStyleRequest turns a free-form chat message into a style request. The
// model output is untrusted: the JSON is pattern-extracted, and on any parse
// failure a keyword scan of the raw message takes over.
func ParseStyleRequest(ctx context.Context, tg TextGenerator, message string) StyleRequest {
	fallback := fallbackParse(message)

	text, err := tg.Generate(ctx, parseSystemPrompt, message, 0.3)
	if err != nil {
		log.Printf("Style request parse failed, using keyword fallback: %v", err)
		return fallback
	}

	block := jsonBlockRe.FindString(text)
	if block == "" {
		log.Printf("No JSON in style parse output, using keyword fallback")
		return fallback
	}

	var parsed StyleRequest
	if err := json.Unmarshal([]byte(block), &parsed); err != nil {
		log.Printf("Malformed JSON in style parse output, using keyword fallback: %v", err)
		return fallback
	}
	if strings.TrimSpace(parsed.Occasion) == "" {
		parsed.Occasion = fallback.Occasion
	}
	if strings.TrimSpace(parsed.Comment) == "" {
		parsed.Comment = fallback.Comment
	}
	return parsed
}

func fallbackParse(message string) StyleRequest {
	lower := strings.ToLower(message)
	occasion := "casual"
	for _, kw := range occasionKeywords {
		if strings.Contains(lower, kw) {
			occasion = kw
			break
		}
	}
	return StyleRequest{
		Occasion: occasion,
		Comment:  fmt.Sprintf("Here are some looks I put together for %s!", occasion),
	}
}

func displayName(firstName string) string {
	if firstName == "" {
		return "the person in the photo"
	}
	return firstName
}
