package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	historydomain "github.com/smallbiznis/atelier/internal/history/domain"
	"github.com/smallbiznis/atelier/pkg/db/pagination"
)

type createSessionRequest struct {
	Mode string `json:"mode"`
}

type updateTitleRequest struct {
	Title string `json:"title"`
}

func (s *Server) ListChatSessions(c *gin.Context) {
	accountID, ok := callerID(c)
	if !ok {
		return
	}

	limit, err := parseOptionalInt(c.Query("limit"))
	if err != nil || limit < 0 {
		AbortWithError(c, newValidationError("limit", "invalid_limit", "invalid limit"))
		return
	}
	if limit == 0 || limit > pagination.MaxPageSize {
		limit = pagination.MaxPageSize
	}

	sessions, err := s.history.ListSessions(c.Request.Context(), accountID, limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": sessions})
}

func (s *Server) CreateChatSession(c *gin.Context) {
	accountID, ok := callerID(c)
	if !ok {
		return
	}

	var req createSessionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	session, err := s.history.CreateSession(c.Request.Context(), accountID, historydomain.Mode(strings.ToLower(strings.TrimSpace(req.Mode))))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": session})
}

func (s *Server) GetChatSession(c *gin.Context) {
	accountID, ok := callerID(c)
	if !ok {
		return
	}
	sessionID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	session, err := s.history.GetSession(c.Request.Context(), accountID, sessionID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": session})
}

func (s *Server) UpdateChatSessionTitle(c *gin.Context) {
	accountID, ok := callerID(c)
	if !ok {
		return
	}
	sessionID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req updateTitleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	session, err := s.history.UpdateTitle(c.Request.Context(), accountID, sessionID, req.Title)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": session})
}

func (s *Server) DeleteChatSession(c *gin.Context) {
	accountID, ok := callerID(c)
	if !ok {
		return
	}
	sessionID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := s.history.DeleteSession(c.Request.Context(), accountID, sessionID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) ListChatMessages(c *gin.Context) {
	accountID, ok := callerID(c)
	if !ok {
		return
	}
	sessionID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	limit, err := parseOptionalInt(c.Query("limit"))
	if err != nil || limit < 0 {
		AbortWithError(c, newValidationError("limit", "invalid_limit", "invalid limit"))
		return
	}

	messages, err := s.history.ListMessages(c.Request.Context(), accountID, sessionID, limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": messages})
}

func (s *Server) ListImages(c *gin.Context) {
	accountID, ok := callerID(c)
	if !ok {
		return
	}

	var query pagination.Pagination
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.history.ListImages(c.Request.Context(), historydomain.ListImagesRequest{
		AccountID:  accountID,
		Pagination: query,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
