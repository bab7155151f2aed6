package server

import (
	"context"

	"github.com/gin-gonic/gin"

	"docqr-backend/internal/notify"
	"docqr-backend/internal/shared/server/middleware"
	"docqr-backend/internal/shared/server/respond"
	"docqr-backend/internal/shared/telemetry"
)

// documentCounter is satisfied by documents.Repo.
type documentCounter interface {
	CountByUser(ctx context.Context, userID string) (int, error)
}

type meResponse struct {
	UserID        string `json:"userId"`
	Email         string `json:"email,omitempty"`
	Name          string `json:"name,omitempty"`
	Role          string `json:"role,omitempty"`
	IsAdmin       bool   `json:"isAdmin"`
	DocumentCount *int   `json:"documentCount,omitempty"`
	// LiveConnections is the number of open notification sockets for the caller.
	LiveConnections int `json:"liveConnections"`
}

type meHandler struct {
	docs   documentCounter
	broker *notify.Broker
}

func registerMeRoutes(rg *gin.RouterGroup, docs documentCounter, broker *notify.Broker) {
	h := &meHandler{docs: docs, broker: broker}
	rg.GET("/me", h.get)
}

func (h *meHandler) get(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	if userID == "" {
		respond.Unauthorized(c)
		return
	}

	resp := meResponse{
		UserID:  userID,
		Email:   middleware.UserEmailFromContext(c),
		Name:    middleware.UserNameFromContext(c),
		Role:    middleware.UserRoleFromContext(c),
		IsAdmin: middleware.IsAdmin(c),
	}
	if h.docs != nil {
		n, err := h.docs.CountByUser(c.Request.Context(), userID)
		if err != nil {
			// profile still renders without the count
			telemetry.Warn("me.count_failed", map[string]any{"user_id": userID, "error": err.Error()})
		} else {
			resp.DocumentCount = &n
		}
	}
	if h.broker != nil {
		resp.LiveConnections = h.broker.Count(notify.GroupKey(userID))
	}
	respond.OK(c, resp)
}
