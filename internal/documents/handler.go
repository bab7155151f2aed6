package documents

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"docqr-backend/internal/shared/server/middleware"
	"docqr-backend/internal/shared/server/respond"
	"docqr-backend/internal/shared/telemetry"
)

// multipart overhead allowed on top of the file size limit
const formOverheadBytes = 1 << 20

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches owner-scoped document routes. The group must run Auth.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, upload ...gin.HandlerFunc) {
	rg.POST("/documents/upload", append(upload, h.upload)...)
	rg.GET("/documents", h.list)
	rg.GET("/documents/:id", h.get)
	rg.GET("/documents/:id/download", h.download)
	rg.POST("/documents/:id/qr", h.generateQR)
	rg.DELETE("/documents/:id", h.delete)
	rg.GET("/search", h.search)
}

// RegisterAdminRoutes attaches admin listings. The group must run Auth and RequireAdmin.
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.GET("/documents", h.listAll)
}

// RegisterPublicRoutes attaches token downloads. The group should run OptionalAuth.
func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.GET("/shared/:accessToken", h.downloadShared)
}

func actorFrom(c *gin.Context) Actor {
	return Actor{
		UserID:    middleware.UserIDFromContext(c),
		Admin:     middleware.IsAdmin(c),
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}

func (h *Handler) upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.Svc.maxUploadBytes()+formOverheadBytes)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respond.Error(c, http.StatusRequestEntityTooLarge, respond.CodeFileTooLarge, "file exceeds maximum size", gin.H{"maxBytes": h.Svc.maxUploadBytes()})
			return
		}
		respond.Error(c, http.StatusBadRequest, respond.CodeInvalidInput, "file is required", nil)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, respond.CodeInvalidInput, "unable to read file", nil)
		return
	}
	defer file.Close()

	res, err := h.Svc.Ingest(c.Request.Context(), actorFrom(c), Upload{
		FileName: fileHeader.Filename,
		MimeType: fileHeader.Header.Get("Content-Type"),
		Size:     fileHeader.Size,
		Body:     file,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Set("documentId", res.Document.ID)

	resp := h.Svc.toResponse(res.Document, false)
	resp.AccessLink = res.AccessLink
	resp.QRCode = res.QRCode
	respond.Created(c, "/api/documents/"+res.Document.ID, resp)
}

func (h *Handler) list(c *gin.Context) {
	page, pageSize := pageParams(c)
	docs, err := h.Svc.List(c.Request.Context(), actorFrom(c), pageSize, (page-1)*pageSize)
	if err != nil {
		h.fail(c, err)
		return
	}
	items := make([]DocumentResponse, 0, len(docs))
	for _, d := range docs {
		items = append(items, h.Svc.toResponse(d, false))
	}
	respond.OK(c, items)
}

func (h *Handler) listAll(c *gin.Context) {
	page, pageSize := pageParams(c)
	docs, total, err := h.Svc.ListAll(c.Request.Context(), actorFrom(c), pageSize, (page-1)*pageSize)
	if err != nil {
		h.fail(c, err)
		return
	}
	items := make([]DocumentResponse, 0, len(docs))
	for _, d := range docs {
		items = append(items, h.Svc.toResponse(d, false))
	}
	respond.OK(c, PageResponse[DocumentResponse]{Items: items, Total: total, Page: page, PageSize: pageSize})
}

func (h *Handler) get(c *gin.Context) {
	c.Set("documentId", c.Param("id"))
	doc, err := h.Svc.Get(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond.OK(c, h.Svc.toResponse(doc, true))
}

func (h *Handler) download(c *gin.Context) {
	c.Set("documentId", c.Param("id"))
	dl, err := h.Svc.DownloadByID(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.stream(c, dl)
}

func (h *Handler) downloadShared(c *gin.Context) {
	dl, err := h.Svc.DownloadByToken(c.Request.Context(), actorFrom(c), c.Param("accessToken"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Set("documentId", dl.Document.ID)
	h.stream(c, dl)
}

func (h *Handler) stream(c *gin.Context, dl Download) {
	defer dl.Body.Close()
	doc := dl.Document
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": doc.FileName}))
	c.Header("Content-Type", doc.MimeType)
	if doc.SizeBytes > 0 {
		c.Header("Content-Length", strconv.FormatInt(doc.SizeBytes, 10))
	}
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, dl.Body); err != nil {
		telemetry.Warn("document.stream_failed", map[string]any{"document_id": doc.ID, "error": err.Error()})
	}
}

func (h *Handler) generateQR(c *gin.Context) {
	c.Set("documentId", c.Param("id"))
	res, err := h.Svc.GenerateQR(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond.OK(c, gin.H{
		"documentId":        res.Document.ID,
		"accessLink":        res.AccessLink,
		"qrCode":            res.QRCode,
		"qrGenerationCount": res.Document.QRGenerationCount,
	})
}

func (h *Handler) delete(c *gin.Context) {
	c.Set("documentId", c.Param("id"))
	if err := h.Svc.Delete(c.Request.Context(), actorFrom(c), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	respond.NoContent(c)
}

func (h *Handler) search(c *gin.Context) {
	page, pageSize := pageParams(c)
	res, err := h.Svc.Search(c.Request.Context(), actorFrom(c), c.Query("q"), page, pageSize)
	if err != nil {
		h.fail(c, err)
		return
	}
	items := make([]SearchResultResponse, 0, len(res.Hits))
	for _, hit := range res.Hits {
		items = append(items, SearchResultResponse{
			DocumentResponse: h.Svc.toResponse(hit.Document, false),
			UserAccessCount:  hit.UserAccessCount,
		})
	}
	respond.OK(c, PageResponse[SearchResultResponse]{Items: items, Total: res.Total, Page: res.Page, PageSize: res.PageSize})
}

func (h *Handler) fail(c *gin.Context, err error) {
	var vErr *ValidationError
	switch {
	case errors.Is(err, ErrTooLarge):
		respond.Error(c, http.StatusRequestEntityTooLarge, respond.CodeFileTooLarge, err.Error(), gin.H{"maxBytes": h.Svc.maxUploadBytes()})
	case errors.As(err, &vErr):
		respond.Error(c, http.StatusBadRequest, respond.CodeInvalidInput, vErr.Error(), gin.H{"field": vErr.Field})
	case errors.Is(err, ErrFileNotFound):
		respond.Error(c, http.StatusNotFound, respond.CodeFileNotFound, "file not found", nil)
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, respond.CodeNotFound, "document not found", nil)
	case errors.Is(err, ErrForbidden):
		respond.Error(c, http.StatusForbidden, respond.CodeForbidden, "access denied", nil)
	case errors.Is(err, ErrBusy):
		c.Header("Retry-After", "30")
		respond.Error(c, http.StatusServiceUnavailable, respond.CodeBusy, "processing queue is full, retry later", nil)
	default:
		telemetry.Error("document.request_failed", map[string]any{
			"request_id": middleware.RequestIDFromContext(c),
			"route":      c.FullPath(),
			"error":      err.Error(),
		})
		respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, "internal error", nil)
	}
}

func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.Query("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(c.Query("pageSize"))
	pageSize, _ = clampPage(pageSize, 0)
	return page, pageSize
}
