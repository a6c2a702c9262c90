package gemini

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	// DefaultMIMEType is sent for every image regardless of its real format.
	DefaultMIMEType = "image/jpeg"
	// DefaultUserQuery is used when the caller supplies none.
	DefaultUserQuery = "Analyze the image based on the system instruction and provide your structured response."

	roleUser = "user"
)

var errEmptyImage = errors.New("image is empty")

// EncodeImage returns the standard base64 encoding of image.
func EncodeImage(image []byte) (string, error) {
	if len(image) == 0 {
		return "", errEmptyImage
	}
	return base64.StdEncoding.EncodeToString(image), nil
}

// ReadImage drains r for encoding. A nil reader is an error.
func ReadImage(r io.Reader) ([]byte, error) {
	if r == nil {
		return nil, errors.New("no image reader")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return data, nil
}

// FormatInstruction merges the system prompt and user query into the single
// text part, labelled so a model without a system role still sees both.
func FormatInstruction(systemPrompt, userQuery string) string {
	var b strings.Builder
	b.WriteString("SYSTEM INSTRUCTION: ")
	b.WriteString(systemPrompt)
	b.WriteString("\n\nUSER QUERY: ")
	b.WriteString(userQuery)
	return b.String()
}

// NewRequest builds the request body for one image.
// An empty mimeType means DefaultMIMEType.
func NewRequest(image []byte, mimeType, systemPrompt, userQuery string) (GenerateContentRequest, error) {
	encoded, err := EncodeImage(image)
	if err != nil {
		return GenerateContentRequest{}, err
	}
	return newEncodedRequest(encoded, mimeType, systemPrompt, userQuery), nil
}

func newEncodedRequest(encoded, mimeType, systemPrompt, userQuery string) GenerateContentRequest {
	if mimeType == "" {
		mimeType = DefaultMIMEType
	}
	return GenerateContentRequest{
		Contents: []Content{{
			Role: roleUser,
			Parts: []Part{
				{InlineData: &InlineData{MIMEType: mimeType, Data: encoded}},
				{Text: FormatInstruction(systemPrompt, userQuery)},
			},
		}},
	}
}
