package gemini

import (
	"errors"

	"github.com/tidwall/gjson"
)

var errInvalidJSON = errors.New("invalid JSON response from API")

type parsedResponse struct {
	Text        string
	TotalTokens int
	HasText     bool
}

// parseResponse extracts the first candidate's first text part and the total
// token count. Missing fields are not errors; an unparsable body is.
func parseResponse(body []byte) (parsedResponse, error) {
	if !gjson.ValidBytes(body) {
		return parsedResponse{}, errInvalidJSON
	}
	text := gjson.GetBytes(body, "candidates.0.content.parts.0.text")
	tokens := gjson.GetBytes(body, "usageMetadata.totalTokenCount")
	return parsedResponse{
		Text:        text.String(),
		TotalTokens: int(tokens.Int()),
		HasText:     text.Exists(),
	}, nil
}
