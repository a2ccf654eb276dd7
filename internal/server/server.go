package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/iwvelando/rental-forecast/internal/analysis"
	"github.com/iwvelando/rental-forecast/internal/cache"
	"github.com/iwvelando/rental-forecast/internal/lending"
	"github.com/iwvelando/rental-forecast/internal/metrics"
	"github.com/iwvelando/rental-forecast/internal/montecarlo"
	"github.com/iwvelando/rental-forecast/internal/optimizer"
	"github.com/iwvelando/rental-forecast/internal/tracing"
	"github.com/iwvelando/rental-forecast/pkg/constants"
	"github.com/iwvelando/rental-forecast/pkg/loans"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Options configures the API handler. A nil Cache disables response caching.
type Options struct {
	MaxUploadSize int64
	Version       string
	Cache         cache.CacheRepository
	CacheTTL      time.Duration
}

type handler struct {
	logger        *zap.Logger
	maxUploadSize int64
	version       string
	cache         cache.CacheRepository
	cacheTTL      time.Duration
}

// NewHandler constructs the HTTP handler that serves the analysis API.
func NewHandler(logger *zap.Logger, opts Options) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	maxUploadSize := opts.MaxUploadSize
	if maxUploadSize <= 0 {
		maxUploadSize = constants.DefaultMaxUploadSizeBytes
	}

	trimmedVersion := strings.TrimSpace(opts.Version)
	if trimmedVersion == "" {
		trimmedVersion = "dev"
	}

	h := &handler{
		logger:        logger,
		maxUploadSize: maxUploadSize,
		version:       trimmedVersion,
		cache:         opts.Cache,
		cacheTTL:      opts.CacheTTL,
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(requestLogger(logger))
	router.Use(middleware.Recoverer)

	router.Get("/healthz", h.handleHealth)
	router.Handle("/metrics", promhttp.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/version", h.handleVersion)
		r.Post("/analyze", h.handleAnalyze)
		r.Post("/simulate", h.handleSimulate)
		r.Post("/breakeven", h.handleBreakEven)
		r.Post("/lending", h.handleLending)
		r.Post("/affordability", h.handleAffordability)
		r.Post("/rehab", h.handleRehab)
		r.Post("/refinance", h.handleRefinance)
		r.Get("/presets", h.handlePresets)
	})

	return router
}

type analyzeRequest struct {
	analysis.Request
	Sensitivity bool `json:"sensitivity,omitempty"`
}

type analyzeResponse struct {
	Result      *analysis.Result            `json:"result"`
	Sensitivity *analysis.SensitivityReport `json:"sensitivity,omitempty"`
}

type simulateRequest struct {
	Deal   analysis.Request   `json:"deal"`
	Ranges *montecarlo.Ranges `json:"ranges,omitempty"`
	Config montecarlo.Config  `json:"config"`
}

type breakEvenRequest struct {
	Deal   analysis.Request `json:"deal"`
	Config optimizer.Config `json:"config"`
}

func (h *handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) handleVersion(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{
		"version": h.version,
	})
}

func (h *handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleAnalyze"
	ctx, span := tracing.Tracer().Start(r.Context(), op)
	defer span.End()

	var req analyzeRequest
	if !h.decode(w, r, &req, op) {
		return
	}
	span.SetAttributes(attribute.String("deal", req.Name), attribute.Bool("sensitivity", req.Sensitivity))

	key := ""
	if h.cache != nil {
		var err error
		key, err = cache.Key("analyze", req)
		if err != nil {
			h.respondError(w, r, http.StatusInternalServerError, err.Error(), op)
			return
		}
		if cached, ok := h.cache.Get(ctx, key); ok {
			metrics.CacheLookups.WithLabelValues("hit").Inc()
			metrics.Analyses.WithLabelValues("analyze", "cached").Inc()
			w.Header().Set("X-Cache", "HIT")
			h.writeRaw(w, http.StatusOK, []byte(cached))
			return
		}
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		w.Header().Set("X-Cache", "MISS")
	}

	logger := loggerFrom(r.Context(), h.logger)
	start := time.Now()
	result, err := analysis.Analyze(logger, req.Request)
	if err != nil {
		h.failAnalysis(w, r, span, "analyze", err, op)
		return
	}
	resp := analyzeResponse{Result: result}
	if req.Sensitivity {
		report, err := analysis.StandardSensitivity(logger, req.Request)
		if err != nil {
			h.failAnalysis(w, r, span, "analyze", err, op)
			return
		}
		resp.Sensitivity = report
	}
	metrics.Analyses.WithLabelValues("analyze", "ok").Inc()

	body, err := json.Marshal(resp)
	if err != nil {
		h.respondError(w, r, http.StatusInternalServerError, fmt.Sprintf("failed to encode result: %v", err), op)
		return
	}
	if h.cache != nil {
		if err := h.cache.Set(ctx, key, string(body), h.cacheTTL); err != nil {
			logger.Warn("failed to cache analysis",
				zap.String("op", op),
				zap.Error(err),
			)
		}
	}

	logger.Info("analysis computed",
		zap.String("op", op),
		zap.String("deal", result.Name),
		zap.Int("years", len(result.Years)),
		zap.Duration("duration", time.Since(start)),
	)
	h.writeRaw(w, http.StatusOK, body)
}

func (h *handler) handleSimulate(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleSimulate"
	ctx, span := tracing.Tracer().Start(r.Context(), op)
	defer span.End()

	var req simulateRequest
	if !h.decode(w, r, &req, op) {
		return
	}

	growth := req.Deal.ApplyPreset().Growth
	ranges := montecarlo.Ranges{
		RentGrowth:    montecarlo.Fixed(growth.RentPct),
		ExpenseGrowth: montecarlo.Fixed(growth.ExpensePct),
		Appreciation:  montecarlo.Fixed(growth.AppreciationPct),
	}
	if req.Ranges != nil {
		ranges = *req.Ranges
	}

	logger := loggerFrom(r.Context(), h.logger)
	sampler, err := montecarlo.NewSampler(logger, req.Config)
	if err != nil {
		h.failAnalysis(w, r, span, "simulate", err, op)
		return
	}
	result, err := sampler.Run(ctx, req.Deal, ranges, nil)
	if err != nil {
		h.failAnalysis(w, r, span, "simulate", err, op)
		return
	}
	metrics.Analyses.WithLabelValues("simulate", "ok").Inc()
	h.writeJSON(w, http.StatusOK, result)
}

func (h *handler) handleBreakEven(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleBreakEven"
	_, span := tracing.Tracer().Start(r.Context(), op)
	defer span.End()

	var req breakEvenRequest
	if !h.decode(w, r, &req, op) {
		return
	}
	summary, err := optimizer.NewRunner(loggerFrom(r.Context(), h.logger)).Run(req.Deal, req.Config)
	if err != nil {
		h.failAnalysis(w, r, span, "breakeven", err, op)
		return
	}
	metrics.Analyses.WithLabelValues("breakeven", "ok").Inc()
	h.writeJSON(w, http.StatusOK, summary)
}

func (h *handler) handleLending(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleLending"
	_, span := tracing.Tracer().Start(r.Context(), op)
	defer span.End()

	var req lending.Request
	if !h.decode(w, r, &req, op) {
		return
	}
	result, err := lending.Evaluate(loggerFrom(r.Context(), h.logger), req)
	if err != nil {
		h.failAnalysis(w, r, span, "lending", err, op)
		return
	}
	metrics.Analyses.WithLabelValues("lending", "ok").Inc()
	h.writeJSON(w, http.StatusOK, result)
}

func (h *handler) handleAffordability(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleAffordability"
	var req lending.AffordabilityRequest
	if !h.decode(w, r, &req, op) {
		return
	}
	result, err := lending.Affordability(req)
	if err != nil {
		h.failAnalysis(w, r, trace.SpanFromContext(r.Context()), "affordability", err, op)
		return
	}
	metrics.Analyses.WithLabelValues("affordability", "ok").Inc()
	h.writeJSON(w, http.StatusOK, result)
}

func (h *handler) handleRehab(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleRehab"
	_, span := tracing.Tracer().Start(r.Context(), op)
	defer span.End()

	var req analysis.RehabRequest
	if !h.decode(w, r, &req, op) {
		return
	}
	result, err := analysis.Rehab(req)
	if err != nil {
		h.failAnalysis(w, r, span, "rehab", err, op)
		return
	}
	metrics.Analyses.WithLabelValues("rehab", "ok").Inc()
	h.writeJSON(w, http.StatusOK, result)
}

func (h *handler) handleRefinance(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleRefinance"
	_, span := tracing.Tracer().Start(r.Context(), op)
	defer span.End()

	var req loans.RefinanceOptions
	if !h.decode(w, r, &req, op) {
		return
	}
	result, err := loans.NewRefinance(req)
	if err != nil {
		h.failAnalysis(w, r, span, "refinance", err, op)
		return
	}
	metrics.Analyses.WithLabelValues("refinance", "ok").Inc()
	h.writeJSON(w, http.StatusOK, result)
}

func (h *handler) handlePresets(w http.ResponseWriter, _ *http.Request) {
	presets := make(map[string]analysis.Growth)
	for _, name := range analysis.PresetNames() {
		g, _ := analysis.PresetGrowth(name)
		presets[name] = g
	}
	h.writeJSON(w, http.StatusOK, presets)
}

// decode reads a size-limited JSON body into v, answering the request itself
// on failure.
func (h *handler) decode(w http.ResponseWriter, r *http.Request, v any, op string) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.respondError(w, r, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request exceeds limit of %d bytes", h.maxUploadSize), op)
			return false
		}
		h.respondError(w, r, http.StatusBadRequest, fmt.Sprintf("failed to decode request: %v", err), op)
		return false
	}
	return true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, analysis.ErrInvalidRequest),
		errors.Is(err, montecarlo.ErrInvalidSimulation),
		errors.Is(err, optimizer.ErrInvalidConfig),
		errors.Is(err, lending.ErrInvalidInput),
		errors.Is(err, loans.ErrInvalidLoan):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *handler) failAnalysis(w http.ResponseWriter, r *http.Request, span trace.Span, kind string, err error, op string) {
	status := statusFor(err)
	label := "error"
	if status == http.StatusBadRequest {
		label = "invalid"
	}
	metrics.Analyses.WithLabelValues(kind, label).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	h.respondError(w, r, status, err.Error(), op)
}

func (h *handler) respondError(w http.ResponseWriter, r *http.Request, status int, msg string, op string) {
	loggerFrom(r.Context(), h.logger).Error("request failed",
		zap.String("op", op),
		zap.Int("status", status),
		zap.String("error", msg),
	)

	h.writeJSON(w, status, map[string]string{"error": msg})
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", zap.Error(err))
	}
}

func (h *handler) writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(body, '\n')); err != nil {
		h.logger.Error("failed to write JSON response", zap.Error(err))
	}
}
