// Package api exposes the revenue pool and its token ledger over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sheikh-saqib/revenue-sharing-ledger/internal/ledger"
	"github.com/sheikh-saqib/revenue-sharing-ledger/internal/models"
	"github.com/sheikh-saqib/revenue-sharing-ledger/internal/models/events"
	"github.com/sheikh-saqib/revenue-sharing-ledger/internal/registry"
	"github.com/sheikh-saqib/revenue-sharing-ledger/internal/sharing"
	"github.com/shopspring/decimal"
)

// callerHeader names the identity a claim is made for.
const callerHeader = "X-Caller"

type Pool interface {
	CumulativeRevenue(ctx context.Context) (uint64, error)
	EntitlementOf(ctx context.Context, shareholder string) (uint64, error)
	Claim(ctx context.Context, caller string) (*events.DividendsPaid, error)
	Allocations() []models.ShareAllocation
	Checkpoint() models.Checkpoint
}

type Ledger interface {
	PostTransaction(ctx context.Context, tx models.Transaction) error
	GetBalance(ctx context.Context, accountId string) (decimal.Decimal, error)
	GetLedgerEntries(ctx context.Context) ([]models.LedgerEntry, error)
}

type Handler struct {
	Pool   Pool
	Ledger Ledger
	Logger *slog.Logger
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type shareholdersResponse struct {
	TotalUnits   uint64                   `json:"total_units"`
	Shareholders []models.ShareAllocation `json:"shareholders"`
}

type claimResponse struct {
	Shareholder string `json:"shareholder"`
	Claimed     uint64 `json:"claimed"`
	ClaimID     string `json:"claim_id,omitempty"`
}

type transactionRequest struct {
	FromAccount string          `json:"from_account"`
	ToAccount   string          `json:"to_account"`
	Amount      decimal.Decimal `json:"amount"`
}

func New(pool Pool, l Ledger, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{Pool: pool, Ledger: l, Logger: logger}
}

func (h *Handler) Register(r *gin.Engine) {
	r.GET("/healthz", h.Health)
	r.GET("/revenue", h.Revenue)
	r.GET("/shareholders", h.Shareholders)
	r.GET("/shareholders/:address/entitlement", h.Entitlement)
	r.GET("/payouts", h.Payouts)
	r.POST("/claims", h.Claim)

	r.POST("/transactions", h.PostTransaction)
	r.GET("/accounts/balance", h.Balance)
	r.GET("/ledgerEntries", h.LedgerEntries)
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) Revenue(c *gin.Context) {
	revenue, err := h.Pool.CumulativeRevenue(c.Request.Context())
	if err != nil {
		h.writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cumulative_revenue": revenue})
}

func (h *Handler) Shareholders(c *gin.Context) {
	c.JSON(http.StatusOK, shareholdersResponse{
		TotalUnits:   registry.TotalUnits,
		Shareholders: h.Pool.Allocations(),
	})
}

func (h *Handler) Entitlement(c *gin.Context) {
	address := c.Param("address")
	owed, err := h.Pool.EntitlementOf(c.Request.Context(), address)
	if err != nil {
		h.writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"shareholder": address, "entitlement": owed})
}

func (h *Handler) Payouts(c *gin.Context) {
	c.JSON(http.StatusOK, h.Pool.Checkpoint())
}

func (h *Handler) Claim(c *gin.Context) {
	caller := strings.TrimSpace(c.GetHeader(callerHeader))
	if caller == "" {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", callerHeader+" header is required")
		return
	}

	paid, err := h.Pool.Claim(c.Request.Context(), caller)
	if err != nil {
		h.writeEngineError(c, err)
		return
	}

	resp := claimResponse{Shareholder: caller}
	if paid != nil {
		resp.Claimed = paid.Value
		resp.ClaimID = paid.ClaimID
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) PostTransaction(c *gin.Context) {
	var req transactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
		return
	}

	tx := models.Transaction{
		ID:             uuid.NewString(),
		IdempotencyKey: strings.TrimSpace(c.GetHeader("Idempotency-Key")),
		FromAccount:    req.FromAccount,
		ToAccount:      req.ToAccount,
		Amount:         req.Amount,
	}
	if err := h.Ledger.PostTransaction(c.Request.Context(), tx); err != nil {
		switch {
		case errors.Is(err, ledger.ErrInvalidAmount), errors.Is(err, ledger.ErrInvalidAccount):
			writeError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		case errors.Is(err, ledger.ErrInsufficientFunds):
			writeError(c, http.StatusBadRequest, "INSUFFICIENT_FUNDS", err.Error())
		case errors.Is(err, ledger.ErrProtectedAccount):
			writeError(c, http.StatusForbidden, "FORBIDDEN", "custody funds only leave through claims")
		default:
			h.Logger.Error("post transaction failed", "error", err)
			writeError(c, http.StatusInternalServerError, "INTERNAL", "internal error")
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"status": "Created Transaction", "transaction_id": tx.ID})
}

func (h *Handler) Balance(c *gin.Context) {
	accountId := c.Query("account_id")
	if accountId == "" {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "account_id is a mandatory field")
		return
	}

	balance, err := h.Ledger.GetBalance(c.Request.Context(), accountId)
	if err != nil {
		h.Logger.Error("balance lookup failed", "account_id", accountId, "error", err)
		writeError(c, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}
	c.JSON(http.StatusOK, gin.H{"account_id": accountId, "balance": balance})
}

func (h *Handler) LedgerEntries(c *gin.Context) {
	entries, err := h.Ledger.GetLedgerEntries(c.Request.Context())
	if err != nil {
		h.Logger.Error("list ledger entries failed", "error", err)
		writeError(c, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (h *Handler) writeEngineError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, sharing.ErrTransferFailed):
		writeError(c, http.StatusServiceUnavailable, "TRANSFER_FAILED", "payout transfer failed, retry later")
	case errors.Is(err, sharing.ErrOverflow):
		h.Logger.Error("arithmetic overflow", "error", err)
		writeError(c, http.StatusInternalServerError, "OVERFLOW", "arithmetic overflow")
	default:
		h.Logger.Error("engine request failed", "error", err)
		writeError(c, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}

func writeError(c *gin.Context, status int, code, message string) {
	c.JSON(status, errorResponse{Code: code, Message: message})
}
