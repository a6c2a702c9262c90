package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/oukeidos/cattlelens/internal/gemini"
	"github.com/oukeidos/cattlelens/internal/logger"
	"github.com/oukeidos/cattlelens/internal/prompts"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. CATTLELENS_MAX_ATTEMPTS.
const EnvPrefix = "CATTLELENS"

const (
	MinAttempts       = 1
	MaxAttempts       = 10
	MaxImages         = 10
	MaxBackoff        = 2 * time.Minute
	MaxTimeout        = 10 * time.Minute
	DefaultListen     = "127.0.0.1:8080"
	DefaultUploadSize = 20 << 20
)

// Settings are the tunables shared by every command.
type Settings struct {
	Model             string        `mapstructure:"model"`
	Endpoint          string        `mapstructure:"endpoint"`
	Task              string        `mapstructure:"task"`
	UserQuery         string        `mapstructure:"user_query"`
	MaxAttempts       int           `mapstructure:"max_attempts"`
	InitialBackoff    time.Duration `mapstructure:"initial_backoff"`
	BackoffMultiplier float64       `mapstructure:"backoff_multiplier"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxImages         int           `mapstructure:"max_images"`
	MaxUploadBytes    int64         `mapstructure:"max_upload_bytes"`
	CachePath         string        `mapstructure:"cache_path"`
	Listen            string        `mapstructure:"listen"`
	EnvFile           string        `mapstructure:"env_file"`
	LogLevel          string        `mapstructure:"log_level"`
}

// Default returns the built-in settings.
func Default() Settings {
	return Settings{
		Model:             gemini.DefaultModel,
		Task:              prompts.DefaultTask,
		UserQuery:         gemini.DefaultUserQuery,
		MaxAttempts:       gemini.DefaultMaxAttempts,
		InitialBackoff:    gemini.DefaultInitialBackoff,
		BackoffMultiplier: gemini.DefaultBackoffMultiplier,
		Timeout:           gemini.DefaultTimeout,
		MaxImages:         MaxImages,
		MaxUploadBytes:    DefaultUploadSize,
		Listen:            DefaultListen,
		LogLevel:          "info",
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("model", d.Model)
	v.SetDefault("endpoint", d.Endpoint)
	v.SetDefault("task", d.Task)
	v.SetDefault("user_query", d.UserQuery)
	v.SetDefault("max_attempts", d.MaxAttempts)
	v.SetDefault("initial_backoff", d.InitialBackoff)
	v.SetDefault("backoff_multiplier", d.BackoffMultiplier)
	v.SetDefault("timeout", d.Timeout)
	v.SetDefault("max_images", d.MaxImages)
	v.SetDefault("max_upload_bytes", d.MaxUploadBytes)
	v.SetDefault("cache_path", d.CachePath)
	v.SetDefault("listen", d.Listen)
	v.SetDefault("env_file", d.EnvFile)
	v.SetDefault("log_level", d.LogLevel)
}

// Load merges defaults, an optional config file (yaml, toml or json by
// extension) and CATTLELENS_* environment overrides.
func Load(path string) (Settings, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Settings{}, fmt.Errorf("reading config file failed (%s): %w", path, err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s, func(dc *mapstructure.DecoderConfig) {
		dc.WeaklyTypedInput = true
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return Settings{}, fmt.Errorf("parsing config failed: %w", err)
	}
	return s, nil
}

// Normalize applies safe bounds and returns a note per adjustment.
func (s Settings) Normalize() (Settings, []string) {
	var notes []string
	if s.MaxAttempts < MinAttempts || s.MaxAttempts > MaxAttempts {
		clamped := clampInt(s.MaxAttempts, MinAttempts, MaxAttempts)
		notes = append(notes, fmt.Sprintf("max-attempts clamped from %d to %d", s.MaxAttempts, clamped))
		s.MaxAttempts = clamped
	}
	if s.MaxImages < 1 || s.MaxImages > MaxImages {
		clamped := clampInt(s.MaxImages, 1, MaxImages)
		notes = append(notes, fmt.Sprintf("max-images clamped from %d to %d (max %d)", s.MaxImages, clamped, MaxImages))
		s.MaxImages = clamped
	}
	if s.BackoffMultiplier < 1 {
		notes = append(notes, fmt.Sprintf("backoff-multiplier raised from %g to 1", s.BackoffMultiplier))
		s.BackoffMultiplier = 1
	}
	if s.InitialBackoff > MaxBackoff {
		notes = append(notes, fmt.Sprintf("initial-backoff clamped from %s to %s", s.InitialBackoff, MaxBackoff))
		s.InitialBackoff = MaxBackoff
	}
	if s.Timeout > MaxTimeout {
		notes = append(notes, fmt.Sprintf("timeout clamped from %s to %s", s.Timeout, MaxTimeout))
		s.Timeout = MaxTimeout
	}
	if strings.TrimSpace(s.UserQuery) == "" {
		s.UserQuery = gemini.DefaultUserQuery
	}
	s.Model = strings.TrimSpace(s.Model)
	if s.Model == "" {
		s.Model = gemini.DefaultModel
	}
	if t, ok := prompts.Get(s.Task); ok {
		s.Task = t.ID
	}
	return s, notes
}

// Validate checks values Normalize cannot repair.
func (s Settings) Validate() error {
	if s.Timeout <= 0 {
		return fmt.Errorf("timeout must be greater than 0, got %s", s.Timeout)
	}
	if s.InitialBackoff < 0 {
		return fmt.Errorf("initial-backoff must be 0 or greater, got %s", s.InitialBackoff)
	}
	if s.Model != "" && !gemini.ValidModel(s.Model) {
		return fmt.Errorf("invalid model %q", s.Model)
	}
	if s.MaxUploadBytes <= 0 {
		return fmt.Errorf("max-upload-bytes must be greater than 0, got %d", s.MaxUploadBytes)
	}
	if s.Task != "" && !prompts.IsKnown(s.Task) {
		return fmt.Errorf("unknown task %q", s.Task)
	}
	if _, err := logger.ParseLevel(s.LogLevel); err != nil {
		return err
	}
	return nil
}

// AnalyzeOptions projects the retry and timeout settings for the client.
// Defaults are already resolved here, so a zero initial backoff means no wait.
func (s Settings) AnalyzeOptions() gemini.AnalyzeOptions {
	backoff := s.InitialBackoff
	if backoff == 0 {
		backoff = gemini.NoBackoff
	}
	return gemini.AnalyzeOptions{
		UserQuery:         s.UserQuery,
		MaxAttempts:       s.MaxAttempts,
		InitialBackoff:    backoff,
		BackoffMultiplier: s.BackoffMultiplier,
		Timeout:           s.Timeout,
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
