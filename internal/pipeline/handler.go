package pipeline

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"smsrelay/internal/constants"
	"smsrelay/internal/logger"
)

type Handler struct {
	pipeline     *Pipeline
	maxBodyBytes int64
	logger       logger.Logger
}

func NewHandler(p *Pipeline, maxBodyBytes int64, log logger.Logger) *Handler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = constants.DefaultMaxBodyBytes
	}
	return &Handler{
		pipeline:     p,
		maxBodyBytes: maxBodyBytes,
		logger:       log,
	}
}

func (h *Handler) RegisterRoutes(router gin.IRouter) {
	api := router.Group("/api/sms")
	{
		api.POST("/forward", h.Forward)
	}
}

// Forward handles POST /api/sms/forward.
func (h *Handler) Forward(c *gin.Context) {
	req := Request{
		AuthHeader: c.GetHeader("Authorization"),
		Body:       http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBodyBytes),
		Debug:      c.Query("debug") == "true",
	}

	d := h.pipeline.Process(c.Request.Context(), req)

	if d.RateLimit != nil {
		c.Header("X-RateLimit-Limit", strconv.Itoa(d.RateLimit.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(d.RateLimit.Remaining))
	}

	c.JSON(d.HTTPStatus(), d.Body())
}
