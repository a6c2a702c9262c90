package batch

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/oukeidos/cattlelens/internal/gemini"
)

// DemoAnalyzer simulates results without network access.
type DemoAnalyzer struct {
	Task string

	mu  sync.Mutex
	rng *rand.Rand
}

var _ gemini.Analyzer = (*DemoAnalyzer)(nil)

// NewDemoAnalyzer returns a simulator whose token counts derive from seed.
func NewDemoAnalyzer(task string, seed uint64) *DemoAnalyzer {
	return &DemoAnalyzer{Task: task, rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (d *DemoAnalyzer) Analyze(ctx context.Context, image []byte, model, systemPrompt string, opts gemini.AnalyzeOptions) gemini.Outcome {
	if model == "" {
		model = gemini.DefaultModel
	}
	name := ImageName(ctx)
	if name == "" {
		name = fmt.Sprintf("image (%d bytes)", len(image))
	}
	d.mu.Lock()
	if d.rng == nil {
		d.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	tokens := 10 + d.rng.IntN(41)
	d.mu.Unlock()
	return gemini.Outcome{
		Success:    true,
		Analysis:   fmt.Sprintf("Simulated analysis for %s (task: %s)", name, d.Task),
		ModelUsed:  model,
		TokensUsed: tokens,
		Attempts:   1,
	}
}
