package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nexconsult/simples-nacional/internal/models"
	"github.com/nexconsult/simples-nacional/internal/services"
	"github.com/sirupsen/logrus"
)

// statusCodes maps a single lookup outcome to the HTTP answer
var statusCodes = map[models.Status]int{
	models.StatusOK:            http.StatusOK,
	models.StatusInvalido:      http.StatusBadRequest,
	models.StatusNaoEncontrado: http.StatusNotFound,
	models.StatusRateLimit:     http.StatusServiceUnavailable,
	models.StatusTimeout:       http.StatusGatewayTimeout,
	models.StatusErro:          http.StatusBadGateway,
}

// SimplesHandler handles Simples Nacional lookups
type SimplesHandler struct {
	simplesService services.SimplesServiceInterface
	maxBatchSize   int
	logger         *logrus.Logger
}

// NewSimplesHandler creates a new Simples Nacional handler
func NewSimplesHandler(simplesService services.SimplesServiceInterface, maxBatchSize int, logger *logrus.Logger) *SimplesHandler {
	return &SimplesHandler{
		simplesService: simplesService,
		maxBatchSize:   maxBatchSize,
		logger:         logger,
	}
}

// GetSimples handles a single CNPJ lookup
// @Summary Get Simples Nacional status
// @Description Resolve Simples Nacional and MEI enrollment of one CNPJ
// @Tags Simples
// @Produce json
// @Param cnpj path string true "CNPJ (14 digits)" example(07526557011659)
// @Success 200 {object} models.Result
// @Failure 400 {object} models.Result
// @Failure 404 {object} models.Result
// @Failure 503 {object} models.ErrorResponse
// @Router /simples/{cnpj} [get]
func (h *SimplesHandler) GetSimples(c *gin.Context) {
	requestID := c.GetString("request_id")
	cnpjParam := c.Param("cnpj")

	run, err := h.simplesService.Run(batchContext(c), []string{cnpjParam})
	if run == nil {
		h.cacheError(c, requestID, err)
		return
	}
	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Warn("Lookup finished but cache was not saved")
	}

	result := run.Results[0]

	if run.Summary.Cached > 0 {
		c.Header("X-Cache", "HIT")
	} else {
		c.Header("X-Cache", "MISS")
	}

	code, ok := statusCodes[result.Status]
	if !ok {
		code = http.StatusInternalServerError
	}
	c.JSON(code, result)
}

// ResolveBatch handles an ordered batch of CNPJs
// @Summary Resolve a batch of CNPJs
// @Description Resolve CNPJs sequentially, pacing requests to respect the registry rate limit
// @Tags Simples
// @Accept json
// @Produce json
// @Param request body models.BatchRequest true "Batch request"
// @Success 200 {object} models.BatchResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 413 {object} models.ErrorResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /simples/batch [post]
func (h *SimplesHandler) ResolveBatch(c *gin.Context) {
	start := time.Now()
	requestID := c.GetString("request_id")

	var request models.BatchRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		h.logger.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Warn("Invalid batch request format")

		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:     "Invalid request format",
			Message:   err.Error(),
			Code:      models.ErrorCodeInvalidRequest,
			Timestamp: time.Now(),
			Path:      c.Request.URL.Path,
		})
		return
	}

	if h.maxBatchSize > 0 && len(request.CNPJs) > h.maxBatchSize {
		c.JSON(http.StatusRequestEntityTooLarge, models.ErrorResponse{
			Error:     "Batch too large",
			Message:   fmt.Sprintf("a batch accepts at most %d CNPJs, got %d", h.maxBatchSize, len(request.CNPJs)),
			Code:      models.ErrorCodeBatchTooLarge,
			Timestamp: time.Now(),
			Path:      c.Request.URL.Path,
		})
		return
	}

	h.logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"total":      len(request.CNPJs),
	}).Info("Processing batch")

	run, err := h.simplesService.Run(batchContext(c), request.CNPJs)
	if run == nil {
		h.cacheError(c, requestID, err)
		return
	}

	response := models.BatchResponse{
		Results:    run.Results,
		Summary:    run.Summary,
		DurationMs: time.Since(start).Milliseconds(),
		Timestamp:  time.Now(),
	}

	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Warn("Batch finished but cache was not saved")
		response.Warning = err.Error()
	}

	c.JSON(http.StatusOK, response)
}

// batchContext keeps request values but not its cancellation: a started
// batch runs to completion and saves its cache even if the client goes away.
func batchContext(c *gin.Context) context.Context {
	return context.WithoutCancel(c.Request.Context())
}

func (h *SimplesHandler) cacheError(c *gin.Context, requestID string, err error) {
	h.logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"error":      fmt.Sprint(err),
	}).Error("Lookup aborted")

	code := models.ErrorCodeInternalError
	if errors.Is(err, services.ErrCacheLoad) {
		code = models.ErrorCodeCacheError
	}

	c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{
		Error:     "Service unavailable",
		Message:   "The result cache could not be read",
		Code:      code,
		Timestamp: time.Now(),
		Path:      c.Request.URL.Path,
	})
}
