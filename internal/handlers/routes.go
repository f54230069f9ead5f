package handlers

import (
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/router"
)

// RegisterRoutes mounts the guest list API. enrollGuards run before the
// enroll handler only.
func RegisterRoutes(r *router.Router[*core.RequestEvent], h *GuestListHandler, logger func(*core.RequestEvent) error, enrollGuards ...func(*core.RequestEvent) error) {
	g := r.Group("/api/v1/guest-list")
	if logger != nil {
		g.BindFunc(logger)
	}

	enroll := g.POST("/enroll", h.Enroll)
	for _, guard := range enrollGuards {
		enroll.BindFunc(guard)
	}

	g.POST("/check-in", h.CheckIn)
	g.GET("/{eventId}", h.List)
	g.GET("/{eventId}/status", h.Status)
}
