package health

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nodebridge/rpc-gateway/internal/httpserver"
)

// Handler exposes GET /health/{chain}.
type Handler struct {
	aggregator *Aggregator
}

// NewHandler creates a health Handler.
func NewHandler(aggregator *Aggregator) *Handler {
	return &Handler{aggregator: aggregator}
}

// Routes returns a chi.Router with the health endpoint mounted.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/{chain}", h.handleCheck)
	return r
}

func (h *Handler) handleCheck(w http.ResponseWriter, r *http.Request) {
	chainName := chi.URLParam(r, "chain")

	report, ok := h.aggregator.Check(r.Context(), chainName)
	if !ok {
		httpserver.RespondError(w, http.StatusNotFound, "not_found", "unknown chain")
		return
	}

	status := http.StatusOK
	if report.Execution.Status == StatusUnhealthy || report.Consensus.Status == StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	httpserver.Respond(w, status, report)
}

// Sampler periodically calls Aggregator.Check for every registered chain,
// which re-probes and re-caches a chain whose cached report has expired, and
// hands each report to onReport. Whether a GET /health/{chain} request finds
// a cached report depends on the cache TTL relative to the sampling interval.
type Sampler struct {
	aggregator *Aggregator
	chains     func() []string
	interval   time.Duration
	logger     *slog.Logger
	onReport   func(Report)

	stop chan struct{}
	done chan struct{}
}

// NewSampler creates a Sampler. chains is called on every tick to get the
// current set of chain names to sample (so admin-added chains are picked up
// without a restart). onReport, if non-nil, is invoked with every freshly
// sampled Report (used by pkg/alerting to detect status transitions).
func NewSampler(aggregator *Aggregator, chains func() []string, interval time.Duration, logger *slog.Logger, onReport func(Report)) *Sampler {
	return &Sampler{
		aggregator: aggregator,
		chains:     chains,
		interval:   interval,
		logger:     logger,
		onReport:   onReport,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start runs the sampling loop in the background.
func (s *Sampler) Start(ctx context.Context) {
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.sampleAll(ctx)
			case <-s.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts the sampling loop and waits for it to exit.
func (s *Sampler) Stop() {
	close(s.stop)
	<-s.done
}

func (s *Sampler) sampleAll(ctx context.Context) {
	for _, name := range s.chains() {
		report, ok := s.aggregator.Check(ctx, name)
		if !ok {
			s.logger.Warn("sampling unknown chain", "chain", name)
			continue
		}
		if s.onReport != nil {
			s.onReport(report)
		}
	}
}
