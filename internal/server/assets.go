package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// signedAssetReader is implemented by backends that serve their own signed URLs.
type signedAssetReader interface {
	Verify(key, expires, signature string) error
	Get(ctx context.Context, key string) ([]byte, string, error)
}

func (s *Server) ServeAsset(c *gin.Context) {
	reader, ok := s.assets.(signedAssetReader)
	if !ok {
		AbortWithError(c, ErrNotFound)
		return
	}

	key := strings.TrimPrefix(c.Param("key"), "/")
	if err := reader.Verify(key, c.Query("expires"), c.Query("sig")); err != nil {
		AbortWithError(c, err)
		return
	}

	data, contentType, err := reader.Get(c.Request.Context(), key)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Cache-Control", "private, max-age=300")
	c.Data(http.StatusOK, contentType, data)
}

func (s *Server) Health(c *gin.Context) {
	status := gin.H{"status": "ok", "store": s.cfg.StoreBackend}
	if s.db == nil {
		c.JSON(http.StatusOK, status)
		return
	}

	sqlDB, err := s.db.DB()
	if err == nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		s.log.Warn("health check store ping failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "store": s.cfg.StoreBackend})
		return
	}
	c.JSON(http.StatusOK, status)
}
