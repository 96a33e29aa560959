// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pdiddy/verity/internal/pipeline"
	"github.com/pdiddy/verity/pkg/types"
)

// verifyRequest is the POST /api/verify body. Length bounds are enforced by
// the claim validator so its suggestions reach the caller.
type verifyRequest struct {
	Claim   string `json:"claim" binding:"required"`
	Refresh bool   `json:"refresh"`
}

type verifyResponse struct {
	*types.PipelineResult
	CacheHit bool `json:"cache_hit"`
}

type errorBody struct {
	Error       string   `json:"error"`
	Message     string   `json:"message"`
	Suggestions []string `json:"suggestions,omitempty"`
}

func (s *Server) handleVerify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{
			Error:   "bad_request",
			Message: "request body must be JSON with a non-empty \"claim\" field",
		})
		return
	}

	out, err := s.verifier.Run(c.Request.Context(), req.Claim, pipeline.Options{Refresh: req.Refresh})
	if err != nil {
		status, body := errorResponse(err)
		if status >= http.StatusInternalServerError {
			s.logger.Warn("verification failed", "status", status, "err", err)
		}
		c.JSON(status, body)
		return
	}

	c.JSON(http.StatusOK, verifyResponse{PipelineResult: out.Result, CacheHit: out.CacheHit})
}

// errorResponse maps a pipeline error to a status code and body. Internal
// details are logged, not returned.
func errorResponse(err error) (int, errorBody) {
	var ve *types.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, errorBody{
			Error:       "invalid_claim",
			Message:     ve.Reason,
			Suggestions: ve.Suggestions,
		}
	case types.IsTimeout(err):
		return http.StatusGatewayTimeout, errorBody{
			Error:   "timeout",
			Message: "verification timed out, try again",
		}
	default:
		return http.StatusBadGateway, errorBody{
			Error:   "verification_failed",
			Message: "verification failed, try again",
		}
	}
}
