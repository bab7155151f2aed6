package activity

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"docqr-backend/internal/shared/server/middleware"
	"docqr-backend/internal/shared/server/respond"
)

// Handler exposes the activity log over HTTP.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches log routes. The group must run Auth.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/logs", h.list)
	rg.GET("/logs/my-stats", h.myStats)
	rg.GET("/logs/action-types", h.actionTypes)
}

type listResponse struct {
	Items    []Entry `json:"items"`
	Total    int     `json:"total"`
	Page     int     `json:"page"`
	PageSize int     `json:"pageSize"`
}

func (h *Handler) list(c *gin.Context) {
	page := queryInt(c, "page", 1)
	if page < 1 {
		page = 1
	}
	pageSize := queryInt(c, "pageSize", defaultLimit)
	if pageSize < 1 {
		pageSize = defaultLimit
	}
	if pageSize > maxLimit {
		pageSize = maxLimit
	}

	f := Filter{
		UserID: c.Query("userId"),
		Action: Action(c.Query("action")),
		Limit:  pageSize,
		Offset: (page - 1) * pageSize,
	}
	var err error
	if f.From, err = queryTime(c, "from"); err != nil {
		respond.Error(c, http.StatusBadRequest, respond.CodeInvalidInput, "from must be RFC3339", nil)
		return
	}
	if f.To, err = queryTime(c, "to"); err != nil {
		respond.Error(c, http.StatusBadRequest, respond.CodeInvalidInput, "to must be RFC3339", nil)
		return
	}

	items, total, err := h.Svc.List(c.Request.Context(), middleware.UserIDFromContext(c), middleware.IsAdmin(c), f)
	if err != nil {
		if errors.Is(err, ErrInvalidFilter) {
			respond.Error(c, http.StatusBadRequest, respond.CodeInvalidInput, err.Error(), nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, "failed to list activity", nil)
		return
	}
	respond.OK(c, listResponse{Items: items, Total: total, Page: page, PageSize: pageSize})
}

func (h *Handler) myStats(c *gin.Context) {
	stats, err := h.Svc.Stats(c.Request.Context(), middleware.UserIDFromContext(c))
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, "failed to load stats", nil)
		return
	}
	respond.OK(c, stats)
}

func (h *Handler) actionTypes(c *gin.Context) {
	respond.OK(c, Actions())
}

func queryInt(c *gin.Context, key string, def int) int {
	v := c.Query(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func queryTime(c *gin.Context, key string) (*time.Time, error) {
	v := c.Query(key)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
