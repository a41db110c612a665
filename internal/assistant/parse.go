package assistant

import (
	"context"
	"strings"

	"github.com/adityawrdhn/voicecart/internal/catalog"
)

const (
	responseHeading           = "**Response:**"
	suggestionHeadingPlural   = "**Suggested Products:**"
	suggestionHeadingSingular = "**Suggested Product:**"

	maxSuggestions = 3
)

// Suggestion is one parsed, catalog-validated product suggestion.
type Suggestion struct {
	Name     string `json:"name"`
	Category string `json:"category"`
}

// ParseReply splits a raw assistant reply into its conversational portion
// and a bounded list of product suggestions validated against the catalog.
//
// Missing markers degrade gracefully: without a response heading the whole
// text is the response; without a suggestions heading the remainder is the
// response. Candidate names that do not match the catalog are silently
// discarded.
func ParseReply(ctx context.Context, raw string, cat catalog.Catalog) (string, []Suggestion) {
	response, suggestionsBlock := splitReply(raw)

	suggestions := make([]Suggestion, 0, maxSuggestions)
	for _, line := range strings.Split(suggestionsBlock, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "-") {
			continue
		}
		name := strings.TrimSpace(strings.TrimPrefix(line, "-"))
		if name == "" {
			continue
		}

		product, err := cat.FindByName(ctx, name)
		if err != nil || product == nil {
			continue
		}
		suggestions = append(suggestions, Suggestion{
			Name:     product.Name, // canonical catalog spelling
			Category: product.Category,
		})
		if len(suggestions) >= maxSuggestions {
			break
		}
	}
	return response, suggestions
}

func splitReply(raw string) (response, suggestionsBlock string) {
	idx := strings.Index(raw, responseHeading)
	if idx == -1 {
		return strings.TrimSpace(raw), ""
	}
	remainder := strings.TrimSpace(raw[idx+len(responseHeading):])

	for _, heading := range []string{suggestionHeadingPlural, suggestionHeadingSingular} {
		if strings.Contains(remainder, heading) {
			parts := strings.SplitN(remainder, heading, 2)
			return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
		}
	}
	return remainder, ""
}
