package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/openenroll/portal/internal/badges"
	"github.com/openenroll/portal/internal/codes"
	"github.com/openenroll/portal/internal/storage"
	"github.com/openenroll/portal/pkg/logger"
)

// BadgeHandler serves the public badge lookups and the staff badge admin page.
type BadgeHandler struct {
	svc    *badges.Service
	images storage.ImageStore
}

// NewBadgeHandler builds the handler. images may be nil, in which case
// badges only accept an image URL.
func NewBadgeHandler(svc *badges.Service, images storage.ImageStore) *BadgeHandler {
	return &BadgeHandler{svc: svc, images: images}
}

// RegisterPublic mounts the unauthenticated lookups.
func (h *BadgeHandler) RegisterPublic(r gin.IRouter) {
	r.GET("/user-badges", h.UserBadges)
	r.GET("/badge/:code", h.Verify)
}

// RegisterAdmin mounts the admin page on an already guarded router.
func (h *BadgeHandler) RegisterAdmin(r gin.IRouter) {
	r.GET("/badges", h.Admin)
	r.POST("/badges", h.Admin)
}

func (h *BadgeHandler) UserBadges(c *gin.Context) {
	username := strings.TrimSpace(c.Query("username"))
	if username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username parameter is required"})
		return
	}
	list, err := h.svc.ListForUser(c.Request.Context(), username)
	if err != nil {
		logger.Errorf("list badges for %s: %v", username, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list badges"})
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *BadgeHandler) Verify(c *gin.Context) {
	v, err := h.svc.Verify(c.Request.Context(), c.Param("code"))
	if errors.Is(err, badges.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "badge not found"})
		return
	}
	if err != nil {
		logger.Errorf("verify badge: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "verification failed"})
		return
	}
	c.JSON(http.StatusOK, v)
}

// Admin lists badges and awards and, on POST, applies one action first.
// Outcomes are reported inline and the status is always 200.
func (h *BadgeHandler) Admin(c *gin.Context) {
	resp := gin.H{}
	if c.Request.Method == http.MethodPost {
		success, failure := h.apply(c)
		if failure != "" {
			resp["error"] = failure
		} else if success != "" {
			resp["success"] = success
		}
	}
	ctx := c.Request.Context()
	list, err := h.svc.ListBadges(ctx)
	if err != nil {
		logger.Errorf("list badges: %v", err)
		resp["error"] = "failed to list badges"
	}
	awards, err := h.svc.ListAwards(ctx)
	if err != nil {
		logger.Errorf("list awards: %v", err)
		resp["error"] = "failed to list awards"
	}
	resp["badges"] = list
	resp["awards"] = awards
	c.JSON(http.StatusOK, resp)
}

// apply runs the posted action and returns a success or a failure message.
func (h *BadgeHandler) apply(c *gin.Context) (string, string) {
	ctx := c.Request.Context()
	switch action := c.PostForm("action"); action {
	case "add_badge":
		image, err := h.image(c)
		if err != nil {
			return "", err.Error()
		}
		b, err := h.svc.CreateBadge(ctx, c.PostForm("name"), c.PostForm("description"), image)
		if err != nil {
			return "", adminMessage(err)
		}
		return fmt.Sprintf("Badge '%s' added.", b.Name), ""
	case "edit_badge":
		id, err := formID(c, "badge_id")
		if err != nil {
			return "", err.Error()
		}
		image, err := h.image(c)
		if err != nil {
			return "", err.Error()
		}
		b, err := h.svc.UpdateBadge(ctx, id, c.PostForm("name"), c.PostForm("description"), image)
		if err != nil {
			return "", adminMessage(err)
		}
		return fmt.Sprintf("Badge '%s' updated.", b.Name), ""
	case "grant_badge":
		id, err := formID(c, "badge_id")
		if err != nil {
			return "", err.Error()
		}
		username := strings.TrimSpace(c.PostForm("username"))
		a, err := h.svc.Grant(ctx, id, username)
		if errors.Is(err, badges.ErrDuplicateAward) {
			return "", fmt.Sprintf("User '%s' already has this badge.", username)
		}
		if err != nil {
			return "", adminMessage(err)
		}
		return fmt.Sprintf("Badge granted to '%s' (code %s).", a.Username, codes.DisplayCode(a.VerificationCode)), ""
	case "revoke_badge":
		id, err := formID(c, "award_id")
		if err != nil {
			return "", err.Error()
		}
		if err := h.svc.Revoke(ctx, id); err != nil {
			return "", adminMessage(err)
		}
		return "Badge revoked.", ""
	case "delete_badge":
		id, err := formID(c, "badge_id")
		if err != nil {
			return "", err.Error()
		}
		if err := h.svc.DeleteBadge(ctx, id); err != nil {
			return "", adminMessage(err)
		}
		return "Badge deleted.", ""
	case "":
		return "", ""
	default:
		return "", fmt.Sprintf("Unknown action '%s'.", action)
	}
}

// image returns the uploaded image URL when a file was sent, else the image field.
func (h *BadgeHandler) image(c *gin.Context) (string, error) {
	fh, err := c.FormFile("image_file")
	if err != nil {
		return c.PostForm("image"), nil
	}
	if h.images == nil {
		return "", errors.New("image upload is not configured")
	}
	f, err := fh.Open()
	if err != nil {
		return "", errors.New("could not read uploaded image")
	}
	defer f.Close()
	url, err := h.images.PutImage(c.Request.Context(), fh.Filename, f, fh.Size)
	if errors.Is(err, storage.ErrUnsupportedImage) {
		return "", errors.New("unsupported image type")
	}
	if err != nil {
		logger.Errorf("upload badge image: %v", err)
		return "", errors.New("image upload failed")
	}
	return url, nil
}

func formID(c *gin.Context, field string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(c.PostForm(field)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", field)
	}
	return id, nil
}

// adminMessage turns service errors into messages fit for the admin page.
func adminMessage(err error) string {
	switch {
	case errors.Is(err, badges.ErrBadgeNotFound):
		return "Badge not found."
	case errors.Is(err, badges.ErrAwardNotFound):
		return "Award not found."
	case errors.Is(err, badges.ErrNameRequired):
		return "Badge name is required."
	case errors.Is(err, badges.ErrUsernameRequired):
		return "Username is required."
	case errors.Is(err, codes.ErrCodeSpaceExhausted):
		return "Could not allocate a verification code, try again."
	}
	logger.Errorf("badge admin: %v", err)
	return "Operation failed."
}
