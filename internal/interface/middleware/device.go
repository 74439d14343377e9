package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pesdo/placement-portal/pkg/helpers"
)

const deviceCookieTTL = 365 * 24 * time.Hour

// Device makes sure every caller carries a device_id cookie; the id selects
// the caller's session client.
func Device(cookies *helpers.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(helpers.DeviceCookie)
		if _, perr := uuid.Parse(id); err != nil || perr != nil {
			id = uuid.NewString()
			cookies.SetDeviceID(c, id, time.Now().Add(deviceCookieTTL))
		}
		c.Set(CtxDeviceID, id)
		c.Next()
	}
}
