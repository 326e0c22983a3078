package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"avatar-uploader/internal/domain"
	"avatar-uploader/internal/mediatype"
	"avatar-uploader/internal/service"
	"avatar-uploader/internal/storage"
	"avatar-uploader/internal/widget"
)

const defaultMaxUploadBytes = 10 << 20

// Handler wires HTTP routes to the widget registry and upload records.
type Handler struct {
	widgets  service.WidgetService
	uploads  service.UploadService
	gatherer prometheus.Gatherer
	maxBytes int64
}

func NewHandler(widgets service.WidgetService, uploads service.UploadService, gatherer prometheus.Gatherer, maxBytes int64) *Handler {
	if maxBytes <= 0 {
		maxBytes = defaultMaxUploadBytes
	}
	return &Handler{
		widgets:  widgets,
		uploads:  uploads,
		gatherer: gatherer,
		maxBytes: maxBytes,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware())

	api := router.Group("/api")
	{
		api.POST("/widgets", h.mountWidget)
		api.GET("/widgets/:id", h.getWidget)
		api.GET("/widgets/:id/events", h.streamWidget)
		api.POST("/widgets/:id/file", h.selectFile)
		api.GET("/widgets/:id/preview/:ref", h.preview)
		api.POST("/widgets/:id/upload", h.startUpload)
		api.POST("/widgets/:id/cancel", h.cancelUpload)
		api.DELETE("/widgets/:id", h.unmountWidget)

		api.GET("/uploads", h.listUploads)
		api.GET("/uploads/:id", h.getUpload)
		api.DELETE("/uploads/:id", h.deleteUpload)
		api.GET("/storage/objects", h.listObjects)
		api.GET("/health", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"ok": "ok"})
		})
	}

	if h.gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})))
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// WidgetResponse is the rendered state of a widget.
type WidgetResponse struct {
	ID string `json:"id"`
	widget.View
}

func widgetToResponse(w *widget.Widget, s widget.Snapshot) WidgetResponse {
	view := s.View()
	if view.Preview != "" {
		view.Preview = fmt.Sprintf("/api/widgets/%s/preview/%s", w.ID(), view.Preview)
	}
	return WidgetResponse{ID: w.ID(), View: view}
}

func (h *Handler) lookup(c *gin.Context) (*widget.Widget, bool) {
	w, err := h.widgets.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return nil, false
	}
	return w, true
}

func (h *Handler) mountWidget(c *gin.Context) {
	w := h.widgets.Mount()
	c.JSON(http.StatusCreated, widgetToResponse(w, w.Snapshot()))
}

func (h *Handler) getWidget(c *gin.Context) {
	w, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, widgetToResponse(w, w.Snapshot()))
}

func (h *Handler) streamWidget(c *gin.Context) {
	w, ok := h.lookup(c)
	if !ok {
		return
	}

	updates, unsubscribe := w.Subscribe()
	defer unsubscribe()

	ctx := c.Request.Context()
	c.Stream(func(out io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case s, open := <-updates:
			if !open {
				return false
			}
			c.SSEvent("state", widgetToResponse(w, s))
			return true
		}
	})
}

func (h *Handler) selectFile(c *gin.Context) {
	w, ok := h.lookup(c)
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+(1<<20))
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("file is required: %v", err)})
		return
	}
	if header.Size > h.maxBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("file exceeds %d bytes", h.maxBytes)})
		return
	}

	f, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.maxBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if int64(len(data)) > h.maxBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("file exceeds %d bytes", h.maxBytes)})
		return
	}

	err = w.SelectFile(widget.File{
		Name:        header.Filename,
		ContentType: mediatype.Declared(header.Header.Get("Content-Type"), data),
		Data:        data,
	})
	resp := widgetToResponse(w, w.Snapshot())

	var verr *widget.ValidationError
	switch {
	case err == nil:
		c.JSON(http.StatusOK, resp)
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "widget": resp})
	case errors.Is(err, widget.ErrUploadInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "widget": resp})
	default:
		c.JSON(http.StatusGone, gin.H{"error": err.Error()})
	}
}

func (h *Handler) preview(c *gin.Context) {
	w, ok := h.lookup(c)
	if !ok {
		return
	}
	f, found := w.Preview(c.Param("ref"))
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "preview not found"})
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, f.ContentType, f.Data)
}

func (h *Handler) startUpload(c *gin.Context) {
	w, ok := h.lookup(c)
	if !ok {
		return
	}

	err := w.StartUpload()
	resp := widgetToResponse(w, w.Snapshot())
	switch {
	case err == nil:
		c.JSON(http.StatusAccepted, resp)
	case errors.Is(err, widget.ErrNotReady):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "widget": resp})
	default:
		c.JSON(http.StatusGone, gin.H{"error": err.Error()})
	}
}

func (h *Handler) cancelUpload(c *gin.Context) {
	w, ok := h.lookup(c)
	if !ok {
		return
	}
	w.Cancel()
	c.JSON(http.StatusOK, widgetToResponse(w, w.Snapshot()))
}

func (h *Handler) unmountWidget(c *gin.Context) {
	id := c.Param("id")
	if err := h.widgets.Unmount(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

type UploadResponse struct {
	ID          int64  `json:"id"`
	WidgetID    string `json:"widget_id"`
	Key         string `json:"key"`
	Location    string `json:"location"`
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	CreatedAt   string `json:"created_at"`
}

func uploadToResponse(u domain.Upload) UploadResponse {
	return UploadResponse{
		ID:          u.ID,
		WidgetID:    u.WidgetID,
		Key:         u.ObjectKey,
		Location:    u.Location,
		FileName:    u.FileName,
		ContentType: u.ContentType,
		Size:        u.Size,
		CreatedAt:   u.CreatedAt.Format(time.RFC3339),
	}
}

func (h *Handler) listUploads(c *gin.Context) {
	uploads, err := h.uploads.ListUploads(c.Request.Context(), c.Query("widget_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]UploadResponse, len(uploads))
	for i := range uploads {
		resp[i] = uploadToResponse(uploads[i])
	}
	c.JSON(http.StatusOK, resp)
}

func parseUploadID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid upload id"})
		return 0, false
	}
	return id, true
}

func (h *Handler) getUpload(c *gin.Context) {
	id, ok := parseUploadID(c)
	if !ok {
		return
	}

	upload, err := h.uploads.GetUpload(c.Request.Context(), id)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, uploadToResponse(*upload))
}

func (h *Handler) deleteUpload(c *gin.Context) {
	id, ok := parseUploadID(c)
	if !ok {
		return
	}

	deleteRemote, err := strconv.ParseBool(c.DefaultQuery("delete_remote", "false"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid flag delete_remote"})
		return
	}

	upload, err := h.uploads.DeleteUpload(c.Request.Context(), id, deleteRemote)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": upload.ID})
}

func (h *Handler) listObjects(c *gin.Context) {
	objects, err := h.uploads.ListObjects(c.Request.Context(), c.Query("prefix"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]StorageObjectResponse, len(objects))
	for i := range objects {
		resp[i] = objectToResponse(objects[i])
	}
	c.JSON(http.StatusOK, resp)
}

type StorageObjectResponse struct {
	Key          string  `json:"key"`
	Size         int64   `json:"size"`
	LastModified *string `json:"last_modified,omitempty"`
}

func objectToResponse(obj storage.ObjectInfo) StorageObjectResponse {
	resp := StorageObjectResponse{
		Key:  obj.Key,
		Size: obj.Size,
	}
	if obj.LastModified != nil && !obj.LastModified.IsZero() {
		v := obj.LastModified.Format(time.RFC3339)
		resp.LastModified = &v
	}
	return resp
}

func statusFor(err error) int {
	if errors.Is(err, service.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
