package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/openenroll/portal/internal/enrollment"
	"github.com/openenroll/portal/internal/tokens"
	"github.com/openenroll/portal/pkg/logger"
	"github.com/openenroll/portal/pkg/metrics"
)

// TokenVerifier checks enrollment tokens signed by the enrollment client.
type TokenVerifier interface {
	Verify(raw string) (tokens.Claims, error)
}

// Ingester reconciles verified claims into an enrollment record.
type Ingester interface {
	Ingest(ctx context.Context, claims map[string]interface{}) (*enrollment.Record, error)
}

// EnrollmentHandler accepts signed enrollment submissions.
type EnrollmentHandler struct {
	verifier TokenVerifier
	svc      Ingester
}

func NewEnrollmentHandler(v TokenVerifier, svc Ingester) *EnrollmentHandler {
	return &EnrollmentHandler{verifier: v, svc: svc}
}

func (h *EnrollmentHandler) Register(r gin.IRouter) {
	r.POST("/endpoint", h.Submit)
}

type submitRequest struct {
	Token string `json:"token"`
}

// Submit verifies the token and stores its claims.
func (h *EnrollmentHandler) Submit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if req.Token == "" {
		h.fail(c, http.StatusBadRequest, "bad_request", "Token is required")
		return
	}
	claims, err := h.verifier.Verify(req.Token)
	if err != nil {
		logger.Debugf("enrollment token rejected: %v", err)
		h.fail(c, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if len(claims) == 0 {
		h.fail(c, http.StatusUnauthorized, "unauthorized", "Invalid token")
		return
	}
	rec, err := h.svc.Ingest(c.Request.Context(), claims)
	if err != nil {
		if !errors.Is(err, enrollment.ErrMissingUserIdentifier) {
			logger.Errorf("enrollment ingest: %v", err)
		}
		h.fail(c, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	metrics.EnrollmentIngestions.WithLabelValues("ok").Inc()
	c.JSON(http.StatusOK, gin.H{
		"message":      "Enrollment data received successfully",
		"confirmation": rec.ConfirmationCode,
	})
}

func (h *EnrollmentHandler) fail(c *gin.Context, status int, result, msg string) {
	metrics.EnrollmentIngestions.WithLabelValues(result).Inc()
	c.JSON(status, gin.H{"error": msg})
}
