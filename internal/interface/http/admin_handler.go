package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/pesdo/placement-portal/internal/domain/entity"
	"github.com/pesdo/placement-portal/internal/interface/middleware"
	"github.com/pesdo/placement-portal/pkg/response"
)

// LoginSearcher queries the indexed login log.
type LoginSearcher interface {
	SearchLogins(ctx context.Context, q string, size int) ([]map[string]any, error)
}

type AdminHandler struct {
	Sessions Sessions
	Search   LoginSearcher
	Logger   *logrus.Logger
}

func NewAdminHandler(sessions Sessions, search LoginSearcher, logger *logrus.Logger) *AdminHandler {
	return &AdminHandler{Sessions: sessions, Search: search, Logger: logger}
}

// RequireAdmin lets the request through only when the device's session
// carries an admin profile for the authenticated user.
func (h *AdminHandler) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		cl, err := h.Sessions.Get(c.Request.Context(), c.GetString(middleware.CtxDeviceID))
		if err != nil {
			response.Error[any](c, http.StatusServiceUnavailable, "session unavailable", nil)
			return
		}
		st := cl.Snapshot()
		if st.Identity == nil || st.Identity.ID != c.GetString(middleware.CtxUserID) {
			response.Error[any](c, http.StatusUnauthorized, "not authenticated", nil)
			return
		}
		if _, ok := st.Profile.(*entity.AdminProfile); !ok {
			response.Error[any](c, http.StatusForbidden, "admin access required", nil)
			return
		}
		c.Next()
	}
}

// SearchLogins GET /api/admin/logins/search?q=&size=
func (h *AdminHandler) SearchLogins(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		response.Error[any](c, http.StatusBadRequest, "q is required", nil)
		return
	}
	size, _ := strconv.Atoi(c.DefaultQuery("size", "10"))
	hits, err := h.Search.SearchLogins(c.Request.Context(), q, size)
	if err != nil {
		if h.Logger != nil {
			h.Logger.WithError(err).Warn("login search failed")
		}
		response.Error[any](c, http.StatusBadGateway, "search failed", nil)
		return
	}
	response.Success(c, http.StatusOK, hits, "ok", map[string]any{"count": len(hits)})
}
