package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/rewardflow/rewardflow-backend/internal/domain"
	"github.com/rewardflow/rewardflow-backend/internal/usecase/calculator"
	"github.com/rewardflow/rewardflow-backend/internal/usecase/claim"
	"github.com/rewardflow/rewardflow-backend/internal/usecase/dashboard"
	"github.com/rewardflow/rewardflow-backend/internal/usecase/window"
)

// Server exposes the distribution engine over HTTP/JSON
type Server struct {
	Calculator *calculator.Service
	Windows    *window.Controller
	Claims     *claim.Service
	Dashboard  *dashboard.Service
	Log        *slog.Logger
}

// NewServer creates a new HTTP server instance
func NewServer(
	calculatorService *calculator.Service,
	windows *window.Controller,
	claims *claim.Service,
	dashboardService *dashboard.Service,
	log *slog.Logger,
) *Server {
	return &Server{
		Calculator: calculatorService,
		Windows:    windows,
		Claims:     claims,
		Dashboard:  dashboardService,
		Log:        log,
	}
}

// Routes builds the HTTP router. Health and metrics stay unauthenticated;
// everything under /v1 requires the API token.
func (s *Server) Routes(apiToken string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(BearerAuth(apiToken))

		r.Post("/distributions", s.handleCalculate)
		r.Get("/distributions", s.handleGetByMonth)
		r.Get("/distributions/summary", s.handleOverallSummary)
		r.Route("/distributions/{distributionID}", func(r chi.Router) {
			r.Get("/", s.handleGetDistribution)
			r.Get("/summary", s.handleSummary)
			r.Post("/open", s.handleOpenWindow)
			r.Post("/close", s.handleCloseWindow)
			r.Post("/claims", s.handleClaim)
		})
	})

	return r
}

type calculateRequest struct {
	Month         string `json:"month"`
	RevenueAmount string `json:"revenue_amount"`
}

func (s *Server) handleCalculate(w http.ResponseWriter, r *http.Request) {
	var req calculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	revenue, err := decimal.NewFromString(req.RevenueAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid revenue_amount format")
		return
	}

	dist, allocations, err := s.Calculator.CalculateMonthly(r.Context(), req.Month, revenue)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"distribution": renderDistribution(dist),
		"allocations":  renderAllocations(allocations),
	})
}

func (s *Server) handleOpenWindow(w http.ResponseWriter, r *http.Request) {
	distributionID, ok := s.parseDistributionID(w, r)
	if !ok {
		return
	}

	dist, err := s.Windows.OpenWindow(r.Context(), distributionID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, renderDistribution(dist))
}

type closeRequest struct {
	Force bool `json:"force"`
}

func (s *Server) handleCloseWindow(w http.ResponseWriter, r *http.Request) {
	distributionID, ok := s.parseDistributionID(w, r)
	if !ok {
		return
	}

	// An empty body means a regular, non-forced close
	var req closeRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	record, err := s.Windows.CloseWindow(r.Context(), distributionID, req.Force)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, renderBurnRecord(record))
}

type claimRequest struct {
	WalletAddress string `json:"wallet_address"`
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	distributionID, ok := s.parseDistributionID(w, r)
	if !ok {
		return
	}

	var req claimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.WalletAddress == "" {
		writeError(w, http.StatusBadRequest, "wallet_address is required")
		return
	}

	transfer, err := s.Claims.Claim(r.Context(), distributionID, req.WalletAddress)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, renderTransfer(transfer))
}

func (s *Server) handleGetDistribution(w http.ResponseWriter, r *http.Request) {
	distributionID, ok := s.parseDistributionID(w, r)
	if !ok {
		return
	}

	detail, err := s.Dashboard.GetDistribution(r.Context(), distributionID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, renderDetail(detail))
}

func (s *Server) handleGetByMonth(w http.ResponseWriter, r *http.Request) {
	month := r.URL.Query().Get("month")
	if month == "" {
		writeError(w, http.StatusBadRequest, "month query parameter is required")
		return
	}

	detail, err := s.Dashboard.GetDistributionByMonth(r.Context(), month)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, renderDetail(detail))
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	distributionID, ok := s.parseDistributionID(w, r)
	if !ok {
		return
	}

	summary, err := s.Dashboard.Summarize(r.Context(), distributionID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"distribution_id":    summary.DistributionID.String(),
		"month":              summary.Month,
		"status":             summary.Status,
		"holder_count":       summary.HolderCount,
		"collected_amount":   summary.CollectedAmount.String(),
		"collected_count":    summary.CollectedCount,
		"uncollected_amount": summary.UncollectedAmount.String(),
		"total_burnt":        summary.TotalBurnt.String(),
	})
}

func (s *Server) handleOverallSummary(w http.ResponseWriter, r *http.Request) {
	overall, err := s.Dashboard.SummarizeAll(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"distribution_count": overall.DistributionCount,
		"total_allocated":    overall.TotalAllocated.String(),
		"total_collected":    overall.TotalCollected.String(),
		"total_burnt":        overall.TotalBurnt.String(),
	})
}

func (s *Server) parseDistributionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	distributionID, err := uuid.Parse(chi.URLParam(r, "distributionID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid distribution id format")
		return uuid.Nil, false
	}
	return distributionID, true
}

// writeDomainError converts engine errors to HTTP status codes
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInsufficientData):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrDuplicateMonth),
		errors.Is(err, domain.ErrInvalidState):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrWindowClosed):
		status = http.StatusGone
	case errors.Is(err, domain.ErrTransferFailed):
		status = http.StatusBadGateway
	case errors.Is(err, domain.ErrSnapshotUnavailable):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		s.Log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}

	writeError(w, status, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func renderDistribution(dist *domain.MonthlyRewardDistribution) map[string]interface{} {
	body := map[string]interface{}{
		"id":                       dist.ID.String(),
		"month":                    dist.Month,
		"revenue_amount":           dist.RevenueAmount.String(),
		"holder_allocation_amount": dist.HolderAllocationAmount.String(),
		"status":                   dist.Status,
		"total_burnt":              dist.TotalBurnt.String(),
		"uncollected_count":        dist.UncollectedCount,
		"created_at":               dist.CreatedAt.Format(time.RFC3339),
	}
	if dist.WindowOpenedAt != nil {
		body["window_opened_at"] = dist.WindowOpenedAt.Format(time.RFC3339)
	}
	if dist.WindowDeadline != nil {
		body["window_deadline"] = dist.WindowDeadline.Format(time.RFC3339)
	}
	return body
}

func renderAllocations(allocations []domain.HolderAllocation) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(allocations))
	for _, alloc := range allocations {
		out = append(out, map[string]interface{}{
			"wallet_address": alloc.WalletAddress,
			"user_handle":    alloc.UserHandle,
			"weight":         alloc.Weight,
			"amount":         alloc.Amount.String(),
		})
	}
	return out
}

func renderTransfer(transfer *domain.RewardTransfer) map[string]interface{} {
	body := map[string]interface{}{
		"id":              transfer.ID.String(),
		"distribution_id": transfer.DistributionID.String(),
		"wallet_address":  transfer.WalletAddress,
		"amount":          transfer.Amount.String(),
		"status":          transfer.Status,
		"attempts":        transfer.Attempts,
	}
	if transfer.TxHash != "" {
		body["tx_hash"] = transfer.TxHash
	}
	if transfer.CompletedAt != nil {
		body["completed_at"] = transfer.CompletedAt.Format(time.RFC3339)
	}
	return body
}

func renderBurnRecord(record *domain.BurnRecord) map[string]interface{} {
	body := map[string]interface{}{
		"distribution_id":   record.DistributionID.String(),
		"total_burnt":       record.TotalBurnt.String(),
		"uncollected_count": record.UncollectedCount,
		"executed_at":       record.ExecutedAt.Format(time.RFC3339),
	}
	if record.BurnTxRef != "" {
		body["burn_tx_ref"] = record.BurnTxRef
	}
	if err := record.ReconciliationError(); err != nil {
		body["reconciliation_error"] = err.Error()
	}
	return body
}

func renderDetail(detail *dashboard.DistributionDetail) map[string]interface{} {
	body := map[string]interface{}{
		"distribution": renderDistribution(detail.Distribution),
	}

	transfers := make([]map[string]interface{}, 0, len(detail.Transfers))
	for i := range detail.Transfers {
		transfers = append(transfers, renderTransfer(&detail.Transfers[i]))
	}
	body["transfers"] = transfers

	if detail.BurnRecord != nil {
		body["burn_record"] = renderBurnRecord(detail.BurnRecord)
	}

	return body
}
