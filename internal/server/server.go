// Package server exposes the processing pipeline over HTTP: raw invoice
// documents in, generated accounting entries out. When an output sheet
// is configured, processed entries are appended to it as a side effect.
package server

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/contaflux/asientos/internal/export/contasol"
	"github.com/contaflux/asientos/internal/llm"
	"github.com/contaflux/asientos/internal/model"
	"github.com/contaflux/asientos/internal/processor"
	"github.com/contaflux/asientos/internal/rules"
	"github.com/contaflux/asientos/internal/sheet"
)

// Config holds server configuration
type Config struct {
	Address        string
	RulesPath      string
	SheetID        string
	APIKey         string
	LLMBaseURL     string
	LLMModel       string
	LLMVisionModel string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	Debug          bool
}

// Server is the HTTP API over the processing pipeline
type Server struct {
	config   *Config
	router   *gin.Engine
	pipeline *processor.Pipeline
	store    *rules.Store
	sink     sheet.Sink
	log      zerolog.Logger
}

// Option overrides a dependency the server would otherwise build from
// its Config.
type Option func(*Server)

// WithLogger sets the server logger
func WithLogger(log zerolog.Logger) Option {
	return func(s *Server) {
		s.log = log
	}
}

// WithStore injects a prebuilt rule store instead of loading one from
// Config.RulesPath.
func WithStore(store *rules.Store) Option {
	return func(s *Server) {
		s.store = store
	}
}

// WithEntrySink delivers every generated entry to the sink in addition
// to returning it in the response.
func WithEntrySink(sink sheet.Sink) Option {
	return func(s *Server) {
		s.sink = sink
	}
}

// NewServer builds the API server: rule store from Config.RulesPath,
// sheet sink from Config.SheetID (using application default
// credentials) and the LLM extractor when an API key is set.
func NewServer(config *Config, opts ...Option) (*Server, error) {
	if !config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestID())
	if config.Debug {
		router.Use(gin.Logger())
	}

	s := &Server{
		config: config,
		router: router,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.store == nil && config.RulesPath != "" {
		store := rules.NewStore(rules.NewCSVSource(config.RulesPath), rules.WithLogger(s.log))
		if err := store.Refresh(context.Background(), false); err != nil {
			return nil, err
		}
		s.store = store
	}

	if s.sink == nil && config.SheetID != "" {
		svc, err := sheet.NewSheetsService(context.Background(), "")
		if err != nil {
			return nil, err
		}
		s.sink = sheet.NewSheetsSink(svc, config.SheetID, sheet.WithSinkLogger(s.log))
	}

	popts := []processor.Option{processor.WithLogger(s.log)}
	if s.store != nil {
		popts = append(popts, processor.WithStore(s.store))
	}
	if config.APIKey != "" {
		var clientOpts []llm.ClientOption
		if config.LLMBaseURL != "" {
			clientOpts = append(clientOpts, llm.WithBaseURL(config.LLMBaseURL))
		}
		client := llm.NewClient(config.APIKey, clientOpts...)

		var extractorOpts []llm.ExtractorOption
		if config.LLMModel != "" {
			extractorOpts = append(extractorOpts, llm.WithModel(config.LLMModel))
		}
		if config.LLMVisionModel != "" {
			extractorOpts = append(extractorOpts, llm.WithVisionModel(config.LLMVisionModel))
		}
		popts = append(popts, processor.WithLLMExtractor(llm.NewExtractor(client, extractorOpts...)))
	}
	s.pipeline = processor.NewPipeline(popts...)

	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/process/text", s.handleProcessText)
		v1.POST("/process/pdf", s.handleProcessPDF)
		v1.POST("/process/image", s.handleProcessImage)
		v1.POST("/process/auto", s.handleProcessAuto)

		v1.POST("/classify", s.handleClassify)

		v1.GET("/rules", s.handleRules)
		v1.POST("/rules/reload", s.handleRulesReload)

		v1.POST("/export", s.handleExport)
	}
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.config.Address,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.log.Info().Str("address", s.config.Address).Msg("server listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Handler returns the http.Handler for use with custom servers
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(c *gin.Context) {
	ruleCount := 0
	if s.store != nil {
		ruleCount = s.store.Snapshot().Len()
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
		"rules":  ruleCount,
	})
}

func (s *Server) handleProcessText(c *gin.Context) {
	body, ok := s.rawBody(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	s.respond(c, s.pipeline.ProcessText(ctx, string(body)))
}

func (s *Server) handleProcessPDF(c *gin.Context) {
	body, ok := s.rawBody(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Minute)
	defer cancel()

	s.respond(c, s.pipeline.ProcessPDF(ctx, body))
}

func (s *Server) handleProcessImage(c *gin.Context) {
	body, ok := s.rawBody(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Minute)
	defer cancel()

	s.respond(c, s.pipeline.ProcessImage(ctx, body, imageMime(c, body)))
}

func (s *Server) handleProcessAuto(c *gin.Context) {
	body, ok := s.rawBody(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Minute)
	defer cancel()

	var result *processor.Result
	switch processor.DetectFormat(body) {
	case processor.FormatPDF:
		result = s.pipeline.ProcessPDF(ctx, body)
	case processor.FormatImage:
		result = s.pipeline.ProcessImage(ctx, body, imageMime(c, body))
	case processor.FormatText:
		result = s.pipeline.ProcessText(ctx, string(body))
	default:
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "unsupported document format"})
		return
	}
	s.respond(c, result)
}

func (s *Server) handleClassify(c *gin.Context) {
	body, ok := s.rawBody(c)
	if !ok {
		return
	}

	rule := s.pipeline.Classify(string(body))
	if rule == nil {
		c.JSON(http.StatusNotFound, ClassifyResponse{Matched: false})
		return
	}
	c.JSON(http.StatusOK, ClassifyResponse{Matched: true, Rule: ruleSummary(rule)})
}

func (s *Server) handleRules(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "no rule source configured"})
		return
	}

	snap := s.store.Snapshot()
	ruleSet := snap.Rules()
	resp := RulesResponse{
		Count:    snap.Len(),
		Version:  snap.Version(),
		LoadedAt: snap.LoadedAt(),
		Rules:    make([]RuleSummary, 0, len(ruleSet)),
	}
	for i := range ruleSet {
		resp.Rules = append(resp.Rules, *ruleSummary(&ruleSet[i]))
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleRulesReload(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "no rule source configured"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	if err := s.store.Refresh(ctx, true); err != nil {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error()})
		return
	}

	snap := s.store.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"rules":   snap.Len(),
		"version": snap.Version(),
	})
}

func (s *Server) handleExport(c *gin.Context) {
	var entries []*model.AccountingEntry
	if err := c.ShouldBindJSON(&entries); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "body must be a JSON array of entries"})
		return
	}
	if len(entries) == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "no entries to export"})
		return
	}

	var buf bytes.Buffer
	if err := contasol.NewWriter(s.log).Write(&buf, entries); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="export_contasol.csv"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// respond writes the pipeline result and, when a sink is configured,
// appends the generated entry to it.
func (s *Server) respond(c *gin.Context, result *processor.Result) {
	if result.Error != nil {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:    result.Error.Error(),
			Warnings: result.Warnings,
		})
		return
	}

	warnings := result.Warnings
	if result.Entry != nil && s.sink != nil {
		if err := s.sink.Append(c.Request.Context(), result.Entry); err != nil {
			s.log.Error().Err(err).
				Str("request_id", c.GetString(requestIDKey)).
				Msg("appending entry to sheet failed")
			warnings = append(warnings, "No se pudo escribir el asiento en la hoja de salida.")
		}
	}

	c.JSON(http.StatusOK, ProcessResponse{
		Entry:      result.Entry,
		Rule:       ruleSummary(result.Rule),
		Fields:     result.Fields,
		Method:     string(result.Method),
		Confidence: result.Confidence,
		Warnings:   warnings,
	})
}

// rawBody reads the request body, rejecting unreadable or empty ones.
func (s *Server) rawBody(c *gin.Context) ([]byte, bool) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "failed to read request body"})
		return nil, false
	}
	if len(body) == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "empty request body"})
		return nil, false
	}
	return body, true
}

func imageMime(c *gin.Context, body []byte) string {
	mimeType := c.ContentType()
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(body)
	}
	return mimeType
}

const requestIDKey = "request_id"

// requestID tags every request for log correlation, honoring an
// incoming X-Request-ID.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}
