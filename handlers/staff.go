package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/openenroll/portal/internal/accounts"
	"github.com/openenroll/portal/internal/enrollment"
	"github.com/openenroll/portal/internal/sessions"
	"github.com/openenroll/portal/pkg/logger"
	"github.com/openenroll/portal/pkg/middleware"
)

// StaffHandler serves the approval-guarded management pages.
type StaffHandler struct {
	enrollments *enrollment.Service
	accounts    *accounts.Service
}

func NewStaffHandler(e *enrollment.Service, a *accounts.Service) *StaffHandler {
	return &StaffHandler{enrollments: e, accounts: a}
}

// Register mounts the pages on an already guarded router.
func (h *StaffHandler) Register(r gin.IRouter) {
	r.GET("/enrollments", h.Enrollments)
	r.GET("/enrollments/csv", h.EnrollmentsCSV)
	r.GET("/manage", h.Manage)
	r.POST("/manage", h.Manage)
}

func (h *StaffHandler) Enrollments(c *gin.Context) {
	table, err := h.enrollments.ListForDisplay(c.Request.Context())
	if err != nil {
		logger.Errorf("list enrollments: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list enrollments"})
		return
	}
	c.JSON(http.StatusOK, table)
}

func (h *StaffHandler) EnrollmentsCSV(c *gin.Context) {
	table, err := h.enrollments.ListForDisplay(c.Request.Context())
	if err != nil {
		logger.Errorf("list enrollments: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list enrollments"})
		return
	}
	var buf bytes.Buffer
	if err := table.WriteCSV(&buf); err != nil {
		logger.Errorf("write enrollments csv: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to export enrollments"})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="enrollment_data.csv"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// Manage lists pending and approved staff accounts and, on POST, approves
// or unapproves one of them. The caller is left out of the approved list so
// they cannot lock themselves out.
func (h *StaffHandler) Manage(c *gin.Context) {
	resp := gin.H{}
	if c.Request.Method == http.MethodPost {
		username := strings.TrimSpace(c.PostForm("username"))
		switch action := c.PostForm("action"); {
		case username == "":
			resp["error"] = "Username is required"
		case action == "approve" || action == "unapprove":
			err := h.accounts.SetApproved(c.Request.Context(), username, action == "approve")
			switch {
			case errors.Is(err, accounts.ErrNotFound):
				resp["error"] = fmt.Sprintf("User '%s' not found.", username)
			case errors.Is(err, accounts.ErrStaffAccount):
				resp["error"] = fmt.Sprintf("User '%s' is a staff administrator.", username)
			case err != nil:
				logger.Errorf("set approval for %s: %v", username, err)
				resp["error"] = "Operation failed."
			default:
				resp["success"] = fmt.Sprintf("User '%s' has been %sd.", username, action)
			}
		}
	}

	ctx := c.Request.Context()
	pending, err := h.accounts.ListByApproval(ctx, false)
	if err != nil {
		logger.Errorf("list pending accounts: %v", err)
		resp["error"] = "failed to list accounts"
	}
	approved, err := h.accounts.ListByApproval(ctx, true)
	if err != nil {
		logger.Errorf("list approved accounts: %v", err)
		resp["error"] = "failed to list accounts"
	}
	if me := middleware.CurrentAccount(c); me != nil {
		kept := approved[:0]
		for _, a := range approved {
			if a.Sub != me.Sub {
				kept = append(kept, a)
			}
		}
		approved = kept
	}
	resp["unapproved_users"] = pending
	resp["approved_users"] = approved
	c.JSON(http.StatusOK, resp)
}

// LogoutHandler revokes the caller's bearer token for the rest of its lifetime.
func LogoutHandler(revoked sessions.Revocations) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetString(middleware.TokenKey)
		claims, _ := middleware.Claims(c)
		ttl := time.Minute
		if exp, ok := claims["exp"].(float64); ok {
			ttl = time.Until(time.Unix(int64(exp), 0))
		}
		if ttl > 0 {
			if err := revoked.Revoke(c.Request.Context(), token, ttl); err != nil {
				logger.Errorf("revoke token: %v", err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to revoke token"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"message": "logged out"})
	}
}
