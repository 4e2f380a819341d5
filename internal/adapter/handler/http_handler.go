package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/rl1809/autoparts-inventory/internal/adapter/upload"
	"github.com/rl1809/autoparts-inventory/internal/core/domain"
	"github.com/rl1809/autoparts-inventory/internal/core/service"
	"github.com/rl1809/autoparts-inventory/internal/logger"
	"github.com/rl1809/autoparts-inventory/internal/observe"
)

const (
	idempotencyHeader = "Idempotency-Key"
	audioFormField    = "audio"

	// multipartOverhead is allowed on top of the audio size limit for form
	// boundaries and headers.
	multipartOverhead = 1 << 20
)

type HTTPHandler struct {
	commands  *service.CommandService
	reconcile *service.ReconcileService
	parts     *service.PartService
	stager    *upload.Stager
	log       *zap.Logger
}

func NewHTTPHandler(
	commands *service.CommandService,
	reconcile *service.ReconcileService,
	parts *service.PartService,
	stager *upload.Stager,
	log *zap.Logger,
) *HTTPHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &HTTPHandler{
		commands:  commands,
		reconcile: reconcile,
		parts:     parts,
		stager:    stager,
		log:       log,
	}
}

type RouterConfig struct {
	MaxBodySize   int64
	MaxUploadSize int64

	// MetricsPath is where Prometheus metrics are served. Empty disables it.
	MetricsPath    string
	MetricsHandler http.Handler
	Metrics        *observe.Metrics
}

// Router builds the gin engine with middleware and every route registered.
func (h *HTTPHandler) Router(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(RequestID(h.log), Recovery(h.log), AccessLog(h.log))
	if cfg.Metrics != nil {
		r.Use(Metrics(cfg.Metrics))
	}

	r.GET("/health", h.HealthCheck)
	if cfg.MetricsPath != "" {
		mh := cfg.MetricsHandler
		if mh == nil {
			mh = promhttp.Handler()
		}
		r.GET(cfg.MetricsPath, gin.WrapH(mh))
	}

	uploadLimit := cfg.MaxUploadSize
	if uploadLimit > 0 {
		uploadLimit += multipartOverhead
	}
	r.POST("/api/voice-command", BodyLimit(uploadLimit), h.VoiceCommand)

	api := r.Group("/api", BodyLimit(cfg.MaxBodySize))
	api.POST("/process-command", h.ProcessCommand)
	api.POST("/execute-changes", h.ExecuteChanges)
	api.GET("/parts", h.ListParts)
	api.PUT("/parts/:id", h.UpdatePart)
	api.DELETE("/parts", h.DeleteParts)

	return r
}

func (h *HTTPHandler) ProcessCommand(c *gin.Context) {
	var req ProcessCommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body: "+err.Error())
		return
	}

	res, err := h.commands.ProcessText(c.Request.Context(), req.Command)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ProcessCommandResponse{Changes: nonNilChanges(res.Changes)})
}

func (h *HTTPHandler) VoiceCommand(c *gin.Context) {
	fh, err := c.FormFile(audioFormField)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.fail(c, err)
			return
		}
		h.badRequest(c, "audio file is required")
		return
	}
	f, err := fh.Open()
	if err != nil {
		h.fail(c, err)
		return
	}
	defer f.Close()

	var res *service.CommandResult
	err = h.stager.WithAudio(f, fh.Filename, fh.Header.Get("Content-Type"), func(a domain.Audio) error {
		var perr error
		res, perr = h.commands.ProcessVoice(c.Request.Context(), a)
		return perr
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ProcessCommandResponse{
		Changes:     nonNilChanges(res.Changes),
		CommandText: res.CommandText,
	})
}

func (h *HTTPHandler) ExecuteChanges(c *gin.Context) {
	var req ExecuteChangesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body: "+err.Error())
		return
	}

	key := c.GetHeader(idempotencyHeader)
	if key == "" {
		key = req.IdempotencyKey
	}

	res, err := h.reconcile.Execute(c.Request.Context(), toChangeSet(req.Changes), key)
	if err != nil {
		if res != nil {
			h.failWithOutcomes(c, err, res.Outcomes)
			return
		}
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ExecuteChangesResponse{
		Success:  res.Success,
		Outcomes: nonNilOutcomes(res.Outcomes),
	})
}

func (h *HTTPHandler) ListParts(c *gin.Context) {
	parts, err := h.parts.List(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNilParts(parts))
}

func (h *HTTPHandler) UpdatePart(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		h.badRequest(c, "invalid part id")
		return
	}

	var req UpdatePartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body: "+err.Error())
		return
	}

	if err := h.parts.Update(c.Request.Context(), req.toPart(id)); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, UpdatePartResponse{Success: true})
}

func (h *HTTPHandler) DeleteParts(c *gin.Context) {
	var req DeletePartsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "ids must be a non-empty array")
		return
	}

	n, err := h.parts.Delete(c.Request.Context(), req.IDs)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, DeletePartsResponse{Success: true, Deleted: n})
}

func (h *HTTPHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HTTPHandler) badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg, Code: CodeBadRequest})
}

func (h *HTTPHandler) fail(c *gin.Context, err error) {
	h.failWithOutcomes(c, err, nil)
}

func (h *HTTPHandler) failWithOutcomes(c *gin.Context, err error, outcomes []domain.Outcome) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		err = upload.ErrTooLarge
	}

	kind, msg := classify(err)
	_ = c.Error(err)
	switch {
	case kind.code == CodeInternal:
		logger.FromContext(c.Request.Context(), h.log).Error("request failed", zap.Error(err))
	case kind.status >= http.StatusInternalServerError:
		logger.FromContext(c.Request.Context(), h.log).Warn("upstream failed", zap.Error(err))
	}
	c.JSON(kind.status, ErrorResponse{Error: msg, Code: kind.code, Outcomes: outcomes})
}
