package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/oukeidos/cattlelens/internal/apperrors"
	"github.com/rivo/uniseg"
	"github.com/tidwall/gjson"
	"google.golang.org/api/googleapi"
)

const maxDetailGraphemes = 300

// newAPIError captures a non-2xx response as a structured value so the
// status code, not the message text, drives classification.
func newAPIError(resp *http.Response, body []byte) *googleapi.Error {
	gerr := &googleapi.Error{
		Code:   resp.StatusCode,
		Body:   string(body),
		Header: resp.Header,
	}
	if msg := gjson.GetBytes(body, "error.message"); msg.Exists() {
		gerr.Message = msg.String()
	} else {
		gerr.Message = strings.TrimSpace(string(body))
	}
	gerr.Message = truncateDetail(gerr.Message)
	return gerr
}

func truncateDetail(s string) string {
	if uniseg.GraphemeClusterCount(s) <= maxDetailGraphemes {
		return s
	}
	var b strings.Builder
	g := uniseg.NewGraphemes(s)
	for n := 0; n < maxDetailGraphemes && g.Next(); n++ {
		b.WriteString(g.Str())
	}
	b.WriteString("...")
	return b.String()
}

func describeStatus(gerr *googleapi.Error) string {
	detail := ""
	if gerr.Message != "" {
		detail = " Details: " + gerr.Message
	}
	return detail
}

// classifyGeminiError maps a failed attempt onto an apperrors kind.
// parent is the caller's context; a per-attempt deadline is not a cancellation.
func classifyGeminiError(parent context.Context, err error) error {
	if err == nil {
		return nil
	}
	if parent != nil && parent.Err() != nil {
		return apperrors.New(apperrors.KindCanceled, "Gemini request canceled.", err)
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		code := gerr.Code
		detail := describeStatus(gerr)
		switch {
		case code == http.StatusUnauthorized || code == http.StatusForbidden:
			return apperrors.WithStatus(apperrors.KindAuth, code,
				fmt.Sprintf("Gemini API error %d: check API key or URL configuration.%s", code, detail), err)
		case code == http.StatusTooManyRequests:
			return apperrors.WithStatus(apperrors.KindRateLimit, code,
				fmt.Sprintf("Gemini API error 429: rate limit exceeded.%s", detail), err)
		case code == http.StatusNotFound:
			return apperrors.WithStatus(apperrors.KindBadRequest, code,
				fmt.Sprintf("Gemini API error 404: model not found or no access.%s", detail), err)
		case code == http.StatusBadRequest:
			return apperrors.WithStatus(apperrors.KindBadRequest, code,
				fmt.Sprintf("Gemini API error 400: check API key or URL configuration.%s", detail), err)
		case code >= 500:
			return apperrors.WithStatus(apperrors.KindTransient, code,
				fmt.Sprintf("Gemini API error %d: temporary service error.%s", code, detail), err)
		default:
			return apperrors.WithStatus(apperrors.KindBadRequest, code,
				fmt.Sprintf("Gemini API error %d.%s", code, detail), err)
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.New(apperrors.KindTransient, "Gemini request timed out.", err)
	}
	// DNS, socket resets, refused connections.
	return apperrors.New(apperrors.KindTransient, "Gemini request failed due to a network error.", err)
}
