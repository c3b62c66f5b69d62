package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/openenroll/portal/internal/accounts"
	"github.com/openenroll/portal/internal/badges"
	"github.com/openenroll/portal/internal/enrollment"
	"github.com/openenroll/portal/internal/sessions"
	"github.com/openenroll/portal/internal/storage"
	"github.com/openenroll/portal/pkg/middleware"
)

// Deps collects everything the HTTP surface needs.
type Deps struct {
	EnrollmentTokens TokenVerifier
	Enrollments      *enrollment.Service
	Badges           *badges.Service
	Accounts         *accounts.Service
	Images           storage.ImageStore

	// StaffTokens is nil when no identity provider is configured; the
	// staff pages then redirect everyone home.
	StaffTokens middleware.Verifier
	Revocations sessions.Revocations

	// IngestLimit and PublicLimit throttle the unauthenticated routes.
	IngestLimit gin.HandlerFunc
	PublicLimit gin.HandlerFunc
}

// LoginURL is where unauthenticated staff are sent.
const LoginURL = "/"

// Mount registers every application route on r.
func Mount(r *gin.Engine, d Deps) {
	ingest := r.Group("/", limit(d.IngestLimit))
	NewEnrollmentHandler(d.EnrollmentTokens, d.Enrollments).Register(ingest)

	badgeHandler := NewBadgeHandler(d.Badges, d.Images)
	badgeHandler.RegisterPublic(r.Group("/", limit(d.PublicLimit)))

	staff := r.Group("/",
		middleware.Authenticate(d.StaffTokens, d.Revocations),
		middleware.Gate(middleware.RequireLogin(LoginURL), middleware.RequireApproved(d.Accounts, "/")),
	)
	badgeHandler.RegisterAdmin(staff)
	NewStaffHandler(d.Enrollments, d.Accounts).Register(staff)

	if d.StaffTokens != nil {
		r.POST("/auth/logout", middleware.AuthMiddleware(d.StaffTokens, d.Revocations), LogoutHandler(d.Revocations))
	} else {
		r.POST("/auth/logout", func(c *gin.Context) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "OIDC not configured"})
		})
	}
}

func limit(h gin.HandlerFunc) gin.HandlerFunc {
	if h == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return h
}
