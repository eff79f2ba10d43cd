// Package api serves account operations over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/banksim-dev/banksim/internal/bank"
	"github.com/banksim-dev/banksim/internal/id"
	"github.com/banksim-dev/banksim/internal/model"
)

// Operations is the subset of *bank.Service the API drives.
type Operations interface {
	Deposit(ctx context.Context, accountID int, amount decimal.Decimal) (model.Transaction, error)
	Withdraw(ctx context.Context, accountID int, amount decimal.Decimal) (model.Transaction, error)
	Account(ctx context.Context, accountID int) (model.Account, error)
}

// Server routes /api/v1 requests to the account operations.
type Server struct {
	ops     Operations
	lister  bank.AccountLister
	history bank.HistoryReader
	logger  zerolog.Logger
	router  *gin.Engine
}

// NewServer builds the router. history may be nil, in which case the
// transactions route answers 501.
func NewServer(ops Operations, lister bank.AccountLister, history bank.HistoryReader, logger zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		ops:     ops,
		lister:  lister,
		history: history,
		logger:  logger.With().Str("pkg", "api").Logger(),
		router:  gin.New(),
	}
	s.router.Use(gin.Recovery(), s.logRequests())

	v1 := s.router.Group("/api/v1")
	v1.GET("/accounts", s.listAccounts)
	v1.GET("/accounts/:id", s.getAccount)
	v1.POST("/accounts/:id/deposit", s.deposit)
	v1.POST("/accounts/:id/withdraw", s.withdraw)
	v1.GET("/accounts/:id/transactions", s.transactions)

	for _, routeInfo := range s.router.Routes() {
		s.logger.Debug().
			Str("path", routeInfo.Path).
			Str("handler", routeInfo.Handler).
			Str("method", routeInfo.Method).
			Msg("registered routes")
	}
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving http: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http: %w", err)
	}
	return nil
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

// AccountView is the JSON shape of an account.
type AccountView struct {
	ID         int       `json:"id"`
	HolderName string    `json:"holder_name"`
	Type       string    `json:"account_type"`
	Status     string    `json:"status"`
	Balance    string    `json:"balance"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func viewOf(a model.Account) AccountView {
	return AccountView{
		ID:         a.ID,
		HolderName: a.HolderName,
		Type:       string(a.Type),
		Status:     string(a.Status),
		Balance:    a.Balance.StringFixed(2),
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
}

type amountRequest struct {
	Amount json.Number `json:"amount" binding:"required"`
}

func (s *Server) listAccounts(c *gin.Context) {
	accts, err := s.lister.List(c.Request.Context())
	if err != nil {
		s.fail(c, http.StatusInternalServerError, fmt.Errorf("listing accounts: %w", err))
		return
	}
	views := make([]AccountView, 0, len(accts))
	for _, a := range accts {
		views = append(views, viewOf(a))
	}
	ok(c, http.StatusOK, views)
}

func (s *Server) getAccount(c *gin.Context) {
	acctID, err := id.ParseAccountID(c.Param("id"))
	if err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}
	acct, err := s.ops.Account(c.Request.Context(), acctID)
	if err != nil {
		s.fail(c, statusOf(err), err)
		return
	}
	ok(c, http.StatusOK, viewOf(acct))
}

func (s *Server) deposit(c *gin.Context) {
	s.mutate(c, s.ops.Deposit)
}

func (s *Server) withdraw(c *gin.Context) {
	s.mutate(c, s.ops.Withdraw)
}

type mutation func(ctx context.Context, accountID int, amount decimal.Decimal) (model.Transaction, error)

func (s *Server) mutate(c *gin.Context, op mutation) {
	acctID, err := id.ParseAccountID(c.Param("id"))
	if err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}
	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, http.StatusBadRequest, fmt.Errorf("binding json: %w", err))
		return
	}
	amount, err := bank.ParseAmount(req.Amount.String())
	if err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}

	txn, err := op(c.Request.Context(), acctID, amount)
	switch {
	case errors.Is(err, bank.ErrLog):
		// The balance changed; report the entry with the failure.
		s.failWith(c, http.StatusInternalServerError, err, txn)
	case err != nil:
		s.fail(c, statusOf(err), err)
	case txn.Error:
		s.failWith(c, http.StatusUnprocessableEntity, bank.Rejected(txn), txn)
	default:
		ok(c, http.StatusOK, txn)
	}
}

func (s *Server) transactions(c *gin.Context) {
	acctID, err := id.ParseAccountID(c.Param("id"))
	if err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}
	if s.history == nil {
		s.fail(c, http.StatusNotImplemented, bank.ErrHistoryUnsupported)
		return
	}
	if _, err := s.ops.Account(c.Request.Context(), acctID); err != nil {
		s.fail(c, statusOf(err), err)
		return
	}
	txns, err := s.history.History(c.Request.Context(), acctID)
	if err != nil {
		s.fail(c, statusOf(err), err)
		return
	}
	if txns == nil {
		txns = []model.Transaction{}
	}
	ok(c, http.StatusOK, txns)
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, bank.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, bank.ErrAccountNotFound):
		return http.StatusNotFound
	case errors.Is(err, bank.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity
	case errors.Is(err, bank.ErrHistoryUnsupported):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

func ok(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

func (s *Server) fail(c *gin.Context, status int, err error) {
	s.failWith(c, status, err, nil)
}

func (s *Server) failWith(c *gin.Context, status int, err error, data any) {
	if status >= http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	body := gin.H{
		"success": false,
		"error":   gin.H{"message": err.Error()},
	}
	if data != nil {
		body["data"] = data
	}
	c.AbortWithStatusJSON(status, body)
}
