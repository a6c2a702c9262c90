package cache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"github.com/oukeidos/cattlelens/internal/gemini"
	"github.com/oukeidos/cattlelens/internal/logger"
)

// Analyzer serves repeated requests from a Store. Only successful outcomes
// are stored; cache errors are logged and bypassed.
type Analyzer struct {
	inner gemini.Analyzer
	store *Store
}

var _ gemini.Analyzer = (*Analyzer)(nil)

func NewAnalyzer(inner gemini.Analyzer, store *Store) *Analyzer {
	return &Analyzer{inner: inner, store: store}
}

// Fingerprint hashes everything that shapes the request. Each field is
// length-prefixed so adjacent fields cannot collide.
func Fingerprint(image []byte, model, systemPrompt, userQuery string) string {
	h := sha256.New()
	for _, field := range [][]byte{image, []byte(model), []byte(systemPrompt), []byte(userQuery)} {
		binary.Write(h, binary.LittleEndian, int64(len(field)))
		h.Write(field)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (a *Analyzer) Analyze(ctx context.Context, image []byte, model, systemPrompt string, opts gemini.AnalyzeOptions) gemini.Outcome {
	if a.store == nil || len(image) == 0 {
		return a.inner.Analyze(ctx, image, model, systemPrompt, opts)
	}
	query := opts.UserQuery
	if query == "" {
		query = gemini.DefaultUserQuery
	}
	if model == "" {
		model = gemini.DefaultModel
	}
	fp := Fingerprint(image, model, systemPrompt, query)

	cached, err := a.store.Get(ctx, fp)
	if err != nil {
		logger.Warn("Failed to check analysis cache", "error", err)
	} else if cached != nil {
		logger.Debug("Analysis cache hit", "fingerprint", fp[:16])
		return gemini.Outcome{
			Success:   true,
			Analysis:  cached.Analysis,
			ModelUsed: cached.ModelUsed,
			Cached:    true,
		}
	}

	out := a.inner.Analyze(ctx, image, model, systemPrompt, opts)
	if !out.Success {
		return out
	}
	entry := Entry{Analysis: out.Analysis, ModelUsed: out.ModelUsed, TokensUsed: out.TokensUsed}
	if err := a.store.Put(ctx, fp, entry); err != nil {
		logger.Warn("Failed to cache analysis", "error", err)
	}
	return out
}
