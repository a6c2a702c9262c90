package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/oukeidos/cattlelens/internal/apperrors"
	"github.com/oukeidos/cattlelens/internal/gemini"
	"github.com/oukeidos/cattlelens/internal/logger"
	"github.com/oukeidos/cattlelens/internal/prompts"
)

// MaxImages is the most images one run accepts.
const MaxImages = 10

// Input is one image to analyze. Load is called once, right before analysis.
type Input struct {
	Name string
	Load func() ([]byte, error)
}

// FileInput reads the image at path.
func FileInput(path string) Input {
	return Input{Name: filepath.Base(path), Load: func() ([]byte, error) { return os.ReadFile(path) }}
}

// BytesInput wraps an in-memory image.
func BytesInput(name string, data []byte) Input {
	return Input{Name: name, Load: func() ([]byte, error) { return data, nil }}
}

// State is the lifecycle of one image in a run.
type State string

const (
	StateStarted   State = "started"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Progress is reported before and after each image.
type Progress struct {
	Index   int
	Total   int
	Name    string
	State   State
	Outcome *gemini.Outcome
}

// Config describes a run.
type Config struct {
	Model     string
	Task      string
	Options   gemini.AnalyzeOptions
	MaxImages int

	// OnProgress is optional and called synchronously.
	OnProgress func(Progress)
}

// Run analyzes inputs one after another. Inputs beyond the image limit are
// dropped and listed in Report.Skipped. The returned error is non-nil only
// when ctx is canceled; per-image failures live in the report.
func Run(ctx context.Context, analyzer gemini.Analyzer, inputs []Input, cfg Config) (*Report, error) {
	limit := cfg.MaxImages
	if limit <= 0 || limit > MaxImages {
		limit = MaxImages
	}
	task := cfg.Task
	if task == "" {
		task = prompts.DefaultTask
	}
	model := cfg.Model
	if model == "" {
		model = gemini.DefaultModel
	}

	report := &Report{
		RunID:     newRunID(),
		Model:     model,
		Task:      task,
		StartedAt: time.Now().UTC(),
	}
	if len(inputs) > limit {
		logger.Warn("Too many images; only the first ones will be analyzed", "limit", limit, "received", len(inputs))
		for _, in := range inputs[limit:] {
			report.Skipped = append(report.Skipped, in.Name)
		}
		inputs = inputs[:limit]
	}

	systemPrompt := prompts.SystemPrompt(task)
	total := len(inputs)
	for i, in := range inputs {
		if err := ctx.Err(); err != nil {
			report.finish()
			return report, err
		}
		notify(cfg.OnProgress, Progress{Index: i, Total: total, Name: in.Name, State: StateStarted})

		out := analyzeOne(WithImageName(ctx, in.Name), analyzer, in, model, systemPrompt, cfg.Options)
		report.add(ImageResult{Name: in.Name, Outcome: out})

		state := StateCompleted
		if !out.Success {
			state = StateFailed
			logger.Error("Image analysis failed", "file", in.Name, "kind", out.Kind, "attempts", out.Attempts)
		}
		notify(cfg.OnProgress, Progress{Index: i, Total: total, Name: in.Name, State: state, Outcome: &out})
	}
	report.finish()
	return report, nil
}

func analyzeOne(ctx context.Context, analyzer gemini.Analyzer, in Input, model, systemPrompt string, opts gemini.AnalyzeOptions) gemini.Outcome {
	if in.Load == nil {
		return encodingFailure(model, fmt.Errorf("no data for %s", in.Name))
	}
	data, err := in.Load()
	if err != nil {
		return encodingFailure(model, err)
	}
	return analyzer.Analyze(ctx, data, model, systemPrompt, opts)
}

func encodingFailure(model string, err error) gemini.Outcome {
	return gemini.FailedOutcome(model, 0, apperrors.New(apperrors.KindEncoding, "Image encoding failed: "+err.Error(), err))
}

func notify(fn func(Progress), p Progress) {
	if fn != nil {
		fn(p)
	}
}

func newRunID() string {
	if u, err := uuid.NewV7(); err == nil {
		return u.String()
	}
	return uuid.NewString()
}

type imageNameKey struct{}

// WithImageName attaches the display name of the image being analyzed.
func WithImageName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, imageNameKey{}, name)
}

// ImageName returns the name set by WithImageName, or "".
func ImageName(ctx context.Context) string {
	name, _ := ctx.Value(imageNameKey{}).(string)
	return name
}
