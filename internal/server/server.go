package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oukeidos/cattlelens/internal/batch"
	"github.com/oukeidos/cattlelens/internal/gemini"
	"github.com/oukeidos/cattlelens/internal/logger"
	"github.com/oukeidos/cattlelens/internal/prompts"
	"github.com/oukeidos/cattlelens/internal/version"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// FormField is the multipart field carrying the images.
	FormField = "images"

	// DefaultMaxUploadBytes caps a whole analyze request body.
	DefaultMaxUploadBytes = 20 << 20

	shutdownTimeout   = 30 * time.Second
	readHeaderTimeout = 10 * time.Second
)

// Config wires the server to an analyzer and the run defaults.
type Config struct {
	Analyzer       gemini.Analyzer
	Model          string
	Task           string
	Options        gemini.AnalyzeOptions
	MaxImages      int
	MaxUploadBytes int64

	// Gatherer backs GET /metrics. Nil disables the route.
	Gatherer prometheus.Gatherer
}

type Server struct {
	cfg    Config
	engine *gin.Engine
}

func New(cfg Config) *Server {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if cfg.MaxImages <= 0 || cfg.MaxImages > batch.MaxImages {
		cfg.MaxImages = batch.MaxImages
	}
	if cfg.Task == "" {
		cfg.Task = prompts.DefaultTask
	}

	s := &Server{cfg: cfg, engine: gin.New()}
	s.engine.Use(gin.Recovery(), requestLogger())
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/healthz", s.health)
	api := s.engine.Group("/api")
	{
		api.GET("/tasks", s.listTasks)
		api.POST("/analyze", s.analyze)
	}
	if s.cfg.Gatherer != nil {
		s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.cfg.Gatherer, promhttp.HandlerOpts{})))
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

func (s *Server) health(c *gin.Context) {
	body := gin.H{"status": "ok"}
	for k, v := range version.Fields() {
		body[k] = v
	}
	c.JSON(http.StatusOK, body)
}

type taskView struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Default bool   `json:"default,omitempty"`
}

func (s *Server) listTasks(c *gin.Context) {
	list := prompts.Tasks()
	out := make([]taskView, 0, len(list))
	for _, t := range list {
		out = append(out, taskView{ID: t.ID, Name: t.Name, Default: t.ID == s.cfg.Task})
	}
	c.JSON(http.StatusOK, gin.H{"tasks": out})
}

func (s *Server) analyze(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxUploadBytes)
	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			abort(c, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", s.cfg.MaxUploadBytes))
			return
		}
		abort(c, http.StatusBadRequest, "expected multipart/form-data with "+FormField+" files")
		return
	}
	defer form.RemoveAll()

	headers := form.File[FormField]
	if len(headers) == 0 {
		abort(c, http.StatusBadRequest, "no images uploaded")
		return
	}

	task := s.cfg.Task
	if v := strings.TrimSpace(c.PostForm("task")); v != "" {
		t, ok := prompts.Get(v)
		if !ok {
			abort(c, http.StatusBadRequest, fmt.Sprintf("unknown task %q", v))
			return
		}
		task = t.ID
	}
	model := s.cfg.Model
	if v := strings.TrimSpace(c.PostForm("model")); v != "" {
		if !gemini.ValidModel(v) {
			abort(c, http.StatusBadRequest, fmt.Sprintf("invalid model %q", v))
			return
		}
		model = v
	}
	opts := s.cfg.Options
	if v := strings.TrimSpace(c.PostForm("query")); v != "" {
		opts.UserQuery = v
	}

	inputs := make([]batch.Input, 0, len(headers))
	for _, fh := range headers {
		inputs = append(inputs, uploadInput(fh))
	}

	report, err := batch.Run(c.Request.Context(), s.cfg.Analyzer, inputs, batch.Config{
		Model:     model,
		Task:      task,
		Options:   opts,
		MaxImages: s.cfg.MaxImages,
	})
	if err != nil {
		logger.Warn("Analyze request interrupted", "run_id", report.RunID, "error", err)
		c.JSON(http.StatusServiceUnavailable, report)
		return
	}
	c.JSON(http.StatusOK, report)
}

func uploadInput(fh *multipart.FileHeader) batch.Input {
	return batch.Input{
		Name: fh.Filename,
		Load: func() ([]byte, error) {
			f, err := fh.Open()
			if err != nil {
				return nil, err
			}
			defer f.Close()
			return io.ReadAll(f)
		},
	}
}

func abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("HTTP request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency", time.Since(start).Round(time.Millisecond),
		)
	}
}
