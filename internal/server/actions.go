package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/atelier/internal/orchestrator"
)

const defaultMaxActionBody = 16 << 20

func (s *Server) PerformAction(c *gin.Context) {
	accountID, ok := callerID(c)
	if !ok {
		return
	}

	limit := s.cfg.MaxActionBodyBytes
	if limit <= 0 {
		limit = defaultMaxActionBody
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)

	var req orchestrator.ActionSpec
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			AbortWithError(c, ErrBodyTooLarge)
			return
		}
		AbortWithError(c, invalidRequestError())
		return
	}
	c.Set("action_kind", string(req.Kind))

	res, err := s.actions.PerformAction(c.Request.Context(), accountID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": res})
}
