package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	accountdomain "github.com/smallbiznis/atelier/internal/account/domain"
	ledgerdomain "github.com/smallbiznis/atelier/internal/ledger/domain"
	"github.com/smallbiznis/atelier/internal/observability/logger"
	"github.com/smallbiznis/atelier/pkg/db/pagination"
	"go.uber.org/zap"
)

type adjustBalanceRequest struct {
	Balance *int64 `json:"balance"`
}

func (s *Server) ListAccounts(c *gin.Context) {
	var query pagination.Pagination
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.accounts.List(c.Request.Context(), accountdomain.ListRequest{Pagination: query})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CreateAccount(c *gin.Context) {
	var req accountdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	req.DisplayName = strings.TrimSpace(req.DisplayName)

	resp, err := s.accounts.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) GetAccount(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	resp, err := s.accounts.Get(c.Request.Context(), id.String())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateAccount(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req accountdomain.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.ID = id.String()

	resp, err := s.accounts.UpdateProfile(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteAccount(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := s.accounts.Delete(c.Request.Context(), id.String()); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) AdjustBalance(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	actor, ok := principal(c)
	if !ok {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	var req adjustBalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Balance == nil {
		AbortWithError(c, newValidationError("balance", "invalid_balance", "balance is required"))
		return
	}

	resp, err := s.ledger.Adjust(c.Request.Context(), ledgerdomain.AdjustRequest{
		AccountID:    id,
		NewBalance:   *req.Balance,
		ActorIsAdmin: actor.IsAdmin(),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	logger.WithContext(c.Request.Context(), s.log).Info("balance adjusted",
		zap.String("account_id", id.String()),
		zap.String("actor_id", actor.AccountID.String()),
		zap.Int64("previous_balance", resp.PreviousBalance),
		zap.Int64("balance", resp.Balance),
	)

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ReconcileAccount(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	resp, err := s.ledger.Reconcile(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
