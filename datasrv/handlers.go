package datasrv

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/eringen/bulletin/content"
)

// maxBodySize bounds POST bodies. Embedded videos and images travel inline
// as data URIs, so this is generous.
const maxBodySize = content.MaxDocumentSize

// Handler serves the document over HTTP.
type Handler struct {
	store *FileStore
	log   logrus.FieldLogger
}

// NewHandler creates a Handler. A nil logger uses the logrus standard logger.
func NewHandler(store *FileStore, log logrus.FieldLogger) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{store: store, log: log.WithField("component", "datasrv")}
}

// RegisterRoutes mounts GET and POST /data on g.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/data", h.Get)
	g.POST("/data", h.Post)
}

// Get returns the stored document.
func (h *Handler) Get(c echo.Context) error {
	c.Response().Header().Set("Cache-Control", "no-store")
	return c.JSONBlob(http.StatusOK, h.store.Load())
}

// Post replaces the document. The body must be a JSON object; anything else
// is rejected and leaves the stored document alone. Beyond that the shape
// is not checked.
func (h *Handler) Post(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodySize+1))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid payload"})
	}
	if len(body) > maxBodySize {
		return c.JSON(http.StatusRequestEntityTooLarge, map[string]string{"error": "Payload too large"})
	}
	if !content.IsObject(body) {
		h.log.WithField("bytes", len(body)).Warn("rejected non-object payload")
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid payload"})
	}
	if err := h.store.Save(body); err != nil {
		h.log.WithError(err).Error("failed to write data file")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to save"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
