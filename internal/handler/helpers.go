package handler

import (
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/podsage/internal/pkg/dbutil"
	"github.com/xxxsen/podsage/internal/pkg/errs"
	"github.com/xxxsen/podsage/internal/pkg/response"
)

var deviceIDRe = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// callerKey identifies the requester for budgeting. An explicit
// X-User-Key wins, then a well-formed X-Device-Id, then the client IP.
// Malformed device ids are ignored to keep the key space clean.
func callerKey(c *gin.Context) string {
	if key := strings.TrimSpace(c.GetHeader("X-User-Key")); key != "" {
		return "usr:" + key
	}
	if id := c.GetHeader("X-Device-Id"); deviceIDRe.MatchString(id) {
		return "dev:" + id
	}
	return "ip:" + c.ClientIP()
}

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	logutil.GetLogger(c.Request.Context()).Warn("request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err))
	switch {
	case errors.Is(err, errs.ErrInvalidInput):
		response.Error(c, http.StatusBadRequest, "invalid_input", "message is empty or too long")
	case errors.Is(err, errs.ErrBlockedPhrase):
		response.Error(c, http.StatusBadRequest, "blocked_phrase", "that question cannot be answered")
	case errors.Is(err, errs.ErrNotFound):
		response.Error(c, http.StatusNotFound, "not_found", "not found")
	case errors.Is(err, errs.ErrExtractionRunning):
		response.Error(c, http.StatusConflict, "extraction_running", "an extraction is already running for this podcast")
	case errors.Is(err, errs.ErrQualityGate):
		response.Error(c, http.StatusUnprocessableEntity, "quality_gate", "extraction did not produce enough grounded items")
	case errors.Is(err, errs.ErrRateLimited):
		response.Error(c, http.StatusTooManyRequests, "rate_limited", "request budget exhausted, try again later")
	case errors.Is(err, errs.ErrRepeatedInput):
		response.Error(c, http.StatusBadRequest, "repeated_input", "same question, same answer, try rephrasing")
	case errors.Is(err, errs.ErrEmbeddingUnavailable):
		response.Error(c, http.StatusBadGateway, "embedding_unavailable", "embedding providers are unavailable")
	case errors.Is(err, errs.ErrGenerationUnavailable):
		response.Error(c, http.StatusBadGateway, "generation_unavailable", "generation providers are unavailable")
	case dbutil.IsConflict(err):
		response.Error(c, http.StatusConflict, "conflict", "a stored artifact with that identity already exists")
	default:
		response.Error(c, http.StatusInternalServerError, "internal", "internal error")
	}
}
