// Package handlers adapts the pipeline, upload, invalidation, and job-queue
// packages to Gin's request/response model, per spec §6's HTTP surface.
package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"mediaforge/internal/apperr"
	"mediaforge/internal/pipeline"
	"mediaforge/internal/signature"
	"mediaforge/internal/transform"
)

// TransformHandler serves GET/HEAD "/t/..." and "/s/<sig>/..." requests.
type TransformHandler struct {
	Pipeline   *pipeline.Pipeline
	HMACSecret string
}

// NewTransformHandler builds a TransformHandler.
func NewTransformHandler(p *pipeline.Pipeline, hmacSecret string) *TransformHandler {
	return &TransformHandler{Pipeline: p, HMACSecret: hmacSecret}
}

// Unsigned serves "/t/<transformations>/<filepath>".
func (h *TransformHandler) Unsigned(c *gin.Context) {
	h.serve(c, c.Param("rest"))
}

// Signed serves "/s/<sig>/<transformations>/<filepath>", verifying the
// signature before doing any work per spec §4.15.
func (h *TransformHandler) Signed(c *gin.Context) {
	sig := c.Param("sig")
	rest := strings.TrimPrefix(c.Param("rest"), "/")

	if h.HMACSecret == "" {
		writeError(c, apperr.Forbidden("signed URLs are not configured", nil))
		return
	}

	parsed, err := transform.Parse(rest)
	if err != nil {
		writeError(c, apperr.InvalidRequest("malformed transform path", err))
		return
	}
	if !signature.Verify(h.HMACSecret, parsed.Directives, parsed.OriginalPath, sig) {
		writeError(c, apperr.Unauthorized("invalid signature", nil))
		return
	}
	h.serve(c, rest)
}

func (h *TransformHandler) serve(c *gin.Context, rest string) {
	accept := c.GetHeader("Accept")
	userAgent := c.GetHeader("User-Agent")

	outcome, err := h.Pipeline.Handle(c.Request.Context(), rest, accept, userAgent)
	if err != nil {
		writeError(c, err)
		return
	}

	if outcome.Queued {
		c.JSON(http.StatusAccepted, gin.H{
			"status":    "queued",
			"job_id":    outcome.JobID,
			"cache_key": outcome.CacheKey,
		})
		return
	}

	c.Header("Cache-Control", outcome.CacheControl)
	c.Header("X-Source-Size", strconv.Itoa(outcome.SourceBytes))
	c.Header("X-Output-Size", strconv.Itoa(outcome.OutputBytes))
	if outcome.Width > 0 {
		c.Header("X-Image-Width", strconv.Itoa(outcome.Width))
		c.Header("X-Image-Height", strconv.Itoa(outcome.Height))
	}

	if c.Request.Method == http.MethodHead {
		c.Status(http.StatusOK)
		return
	}
	c.Data(http.StatusOK, outcome.ContentType, outcome.Data)
}

func writeError(c *gin.Context, err error) {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		c.JSON(apperr.HTTPStatus(appErr.Kind), gin.H{"error": appErr.Message})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
