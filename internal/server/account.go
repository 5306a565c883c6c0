package server

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	ledgerdomain "github.com/smallbiznis/atelier/internal/ledger/domain"
	"github.com/smallbiznis/atelier/pkg/db/pagination"
)

func (s *Server) GetOwnAccount(c *gin.Context) {
	accountID, ok := callerID(c)
	if !ok {
		return
	}

	resp, err := s.accounts.Get(c.Request.Context(), accountID.String())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListOwnUsage(c *gin.Context) {
	accountID, ok := callerID(c)
	if !ok {
		return
	}

	var query pagination.Pagination
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.ledger.ListUsage(c.Request.Context(), ledgerdomain.ListUsageRequest{
		AccountID:  accountID,
		Pagination: query,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DownloadStatement(c *gin.Context) {
	accountID, ok := callerID(c)
	if !ok {
		return
	}

	doc, err := s.statements.Render(c.Request.Context(), accountID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	body, err := io.ReadAll(doc)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	filename := fmt.Sprintf("statement-%s-%s.pdf", accountID.String(), s.clock.Now().UTC().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/pdf", body)
}
