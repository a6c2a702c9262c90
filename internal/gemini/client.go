package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/oukeidos/cattlelens/internal/apperrors"
	"github.com/oukeidos/cattlelens/internal/auth"
	"github.com/oukeidos/cattlelens/internal/httpclient"
	"github.com/oukeidos/cattlelens/internal/logger"
)

const (
	DefaultModel    = "gemini-2.5-flash"
	DefaultEndpoint = "https://generativelanguage.googleapis.com/v1beta/models/{model}:generateContent"
	modelToken      = "{model}"

	DefaultMaxAttempts       = 3
	DefaultInitialBackoff    = 1 * time.Second
	DefaultBackoffMultiplier = 2.0
	DefaultTimeout           = 60 * time.Second

	// NoBackoff as AnalyzeOptions.InitialBackoff retries without waiting.
	NoBackoff time.Duration = -1
	// MaxBackoff caps a single retry wait.
	MaxBackoff = 10 * time.Minute

	apiKeyHeader = "x-goog-api-key"
)

var modelPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// ValidModel reports whether model is safe to place in the endpoint path.
func ValidModel(model string) bool {
	return modelPattern.MatchString(model)
}

// ErrMissingAPIKey is the cause of the config error returned by NewClient.
var ErrMissingAPIKey = errors.New("API key must be provided or set as " + auth.KeyVar)

// Analyzer is the caller-facing contract.
type Analyzer interface {
	Analyze(ctx context.Context, image []byte, model, systemPrompt string, opts AnalyzeOptions) Outcome
}

// Ensure Client implements Analyzer
var _ Analyzer = (*Client)(nil)

// Config holds construction inputs. Explicit fields win over Source.
type Config struct {
	APIKey   string
	Endpoint string
	// Source is consulted for GEMINI_API_KEY and GEMINI_API_URL when the
	// explicit fields are empty.
	Source     auth.Source
	HTTPClient *http.Client
}

// Credentials are resolved once at construction.
type Credentials struct {
	APIKey   string
	Endpoint string
}

// AnalyzeOptions tunes one call. Zero values take the package defaults;
// a negative InitialBackoff (see NoBackoff) retries immediately.
type AnalyzeOptions struct {
	UserQuery         string
	MaxAttempts       int
	InitialBackoff    time.Duration
	BackoffMultiplier float64
	Timeout           time.Duration
}

func (o AnalyzeOptions) withDefaults() AnalyzeOptions {
	if strings.TrimSpace(o.UserQuery) == "" {
		o.UserQuery = DefaultUserQuery
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.InitialBackoff < 0 {
		o.InitialBackoff = 0
	} else if o.InitialBackoff == 0 {
		o.InitialBackoff = DefaultInitialBackoff
	}
	if o.BackoffMultiplier <= 0 {
		o.BackoffMultiplier = DefaultBackoffMultiplier
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return o
}

// Client calls generateContent with retries. It is immutable after
// construction and safe for concurrent use.
type Client struct {
	creds Credentials
	http  *http.Client
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient resolves credentials and fails without any network activity
// when no API key is available.
func NewClient(cfg Config) (*Client, error) {
	creds, err := resolveCredentials(cfg)
	if err != nil {
		return nil, err
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = httpclient.GetDefaultClient()
	}
	return &Client{creds: creds, http: hc, sleep: sleepContext}, nil
}

func resolveCredentials(cfg Config) (Credentials, error) {
	key := strings.TrimSpace(cfg.APIKey)
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if cfg.Source != nil {
		if key == "" {
			key, _ = cfg.Source.Lookup(auth.KeyVar)
		}
		if endpoint == "" {
			endpoint, _ = cfg.Source.Lookup(auth.EndpointVar)
		}
	}
	if key == "" {
		return Credentials{}, apperrors.New(apperrors.KindConfig, ErrMissingAPIKey.Error(), ErrMissingAPIKey)
	}
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return Credentials{APIKey: key, Endpoint: endpoint}, nil
}

// Endpoint returns the URL used for model, with any {model} token expanded.
func (c *Client) Endpoint(model string) string {
	return strings.ReplaceAll(c.creds.Endpoint, modelToken, url.PathEscape(model))
}

// Backoff returns the wait before the attempt after the given one:
// initial * multiplier^(attempt-1), capped at MaxBackoff.
func Backoff(initial time.Duration, multiplier float64, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if initial <= 0 {
		return 0
	}
	wait := float64(initial) * math.Pow(multiplier, float64(attempt-1))
	if math.IsNaN(wait) || wait < 0 {
		return 0
	}
	if wait >= float64(MaxBackoff) {
		return MaxBackoff
	}
	return time.Duration(wait)
}

// FailedOutcome converts err into a negative outcome.
func FailedOutcome(model string, attempts int, err error) Outcome {
	out := Outcome{
		Success:    false,
		ModelUsed:  model,
		Error:      apperrors.PublicMessage(err),
		StatusCode: apperrors.StatusOf(err),
		Attempts:   attempts,
	}
	if kind, ok := apperrors.KindOf(err); ok {
		out.Kind = string(kind)
	}
	return out
}

// AnalyzeReader is Analyze for a streamed image. A read failure is reported
// as an encoding failure.
func (c *Client) AnalyzeReader(ctx context.Context, r io.Reader, model, systemPrompt string, opts AnalyzeOptions) Outcome {
	image, err := ReadImage(r)
	if err != nil {
		return c.encodingFailure(modelOrDefault(model), err)
	}
	return c.Analyze(ctx, image, model, systemPrompt, opts)
}

// Analyze encodes image, posts it and retries transient failures. It never
// returns an error; every failure is a negative Outcome.
func (c *Client) Analyze(ctx context.Context, image []byte, model, systemPrompt string, opts AnalyzeOptions) Outcome {
	if ctx == nil {
		ctx = context.Background()
	}
	model = modelOrDefault(model)
	opts = opts.withDefaults()

	if !ValidModel(model) {
		logger.Error("Rejected model name", "model", model)
		return FailedOutcome(model, 0, apperrors.New(apperrors.KindBadRequest, "Invalid model name.", nil))
	}

	encoded, err := EncodeImage(image)
	if err != nil {
		return c.encodingFailure(model, err)
	}
	payload, err := json.Marshal(newEncodedRequest(encoded, DefaultMIMEType, systemPrompt, opts.UserQuery))
	if err != nil {
		return c.encodingFailure(model, err)
	}
	endpoint := c.Endpoint(model)

	var lastErr error
	attempts := 0
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		attempts = attempt
		logger.Info("Gemini attempt", "attempt", attempt, "max_attempts", opts.MaxAttempts, "model", model)

		parsed, err := c.do(ctx, endpoint, payload, opts.Timeout)
		if err == nil {
			logger.Info("Gemini attempt succeeded", "attempt", attempt, "model", model, "usage", parsed.TotalTokens)
			if !parsed.HasText {
				logger.Warn("Gemini response had no text part", "model", model)
			}
			return Outcome{
				Success:    true,
				Analysis:   parsed.Text,
				ModelUsed:  model,
				TokensUsed: parsed.TotalTokens,
				Attempts:   attempt,
			}
		}

		lastErr = err
		kind, _ := apperrors.KindOf(err)
		logger.Warn("Gemini attempt failed", "attempt", attempt, "model", model, "kind", kind, "status", apperrors.StatusOf(err), "error", err)

		if !apperrors.IsRetryable(err) {
			logger.Error("Gemini request failed without retry", "attempt", attempt, "model", model, "kind", kind)
			break
		}
		if attempt == opts.MaxAttempts {
			logger.Error("Gemini failed after maximum attempts", "attempts", attempt, "model", model)
			break
		}

		wait := Backoff(opts.InitialBackoff, opts.BackoffMultiplier, attempt)
		logger.Info("Retrying Gemini request", "model", model, "backoff", wait)
		if err := c.sleep(ctx, wait); err != nil {
			lastErr = apperrors.New(apperrors.KindCanceled, "Gemini request canceled.", err)
			break
		}
	}

	return finalFailure(model, attempts, lastErr)
}

func finalFailure(model string, attempts int, err error) Outcome {
	out := FailedOutcome(model, attempts, err)
	out.Error = "All attempts failed. Last error: " + out.Error
	return out
}

func (c *Client) encodingFailure(model string, err error) Outcome {
	logger.Error("Error encoding image", "model", model, "error", err)
	appErr := apperrors.New(apperrors.KindEncoding, "Image encoding failed: "+err.Error(), err)
	return FailedOutcome(model, 0, appErr)
}

// do performs one bounded attempt.
func (c *Client) do(ctx context.Context, endpoint string, payload []byte, timeout time.Duration) (parsedResponse, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	header := http.Header{}
	header.Set(apiKeyHeader, c.creds.APIKey)
	req, err := httpclient.NewJSONRequest(attemptCtx, endpoint, payload, header)
	if err != nil {
		return parsedResponse{}, apperrors.New(apperrors.KindConfig, "Invalid Gemini endpoint URL.", err)
	}

	body, resp, err := httpclient.DoAndRead(c.http, req)
	if err != nil {
		if resp != nil && httpclient.IsTooLarge(err) {
			if resp.StatusCode < 200 || resp.StatusCode > 299 {
				// The status still decides the kind; only the detail is lost.
				gerr := newAPIError(resp, nil)
				gerr.Message = "response body exceeded the size limit"
				return parsedResponse{}, classifyGeminiError(ctx, gerr)
			}
			return parsedResponse{}, apperrors.WithStatus(apperrors.KindMalformedResponse, resp.StatusCode, "Gemini response exceeded the size limit.", err)
		}
		return parsedResponse{}, classifyGeminiError(ctx, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parsedResponse{}, classifyGeminiError(ctx, newAPIError(resp, body))
	}

	parsed, err := parseResponse(body)
	if err != nil {
		return parsedResponse{}, apperrors.WithStatus(apperrors.KindMalformedResponse, resp.StatusCode,
			fmt.Sprintf("Invalid JSON response from API: %s", truncateDetail(string(body))), err)
	}
	return parsed, nil
}

func modelOrDefault(model string) string {
	if m := strings.TrimSpace(model); m != "" {
		return m
	}
	return DefaultModel
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
