package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"trivia-service/internal/app"
	"trivia-service/internal/domain"
)

// Handler exposes the quiz use cases over REST.
type Handler struct {
	service *app.QuizService
	logger  *zap.Logger
}

func NewHandler(service *app.QuizService, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, logger: logger}
}

type answerRequest struct {
	Option *int `json:"option" binding:"required"`
}

type submissionResponse struct {
	Session app.SessionView `json:"session"`
	Preview domain.Tally    `json:"preview"`
}

type resultResponse struct {
	Result domain.Result `json:"result"`
	Saved  bool          `json:"saved"`
	Error  string        `json:"error,omitempty"`
}

func (h *Handler) StartSession(c *gin.Context) {
	view, err := h.service.Start(c.Request.Context(), identityFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (h *Handler) GetSession(c *gin.Context) {
	view, err := h.service.Get(c.Request.Context(), identityFrom(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) SelectOption(c *gin.Context) {
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, fmt.Errorf("%w: %v", domain.ErrValidation, err))
		return
	}
	view, err := h.service.SelectOption(c.Request.Context(), identityFrom(c), c.Param("id"), *req.Option)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) Advance(c *gin.Context) {
	view, err := h.service.Advance(c.Request.Context(), identityFrom(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) OpenSubmission(c *gin.Context) {
	view, preview, err := h.service.OpenSubmission(c.Request.Context(), identityFrom(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, submissionResponse{Session: view, Preview: preview})
}

func (h *Handler) Complete(c *gin.Context) {
	result, err := h.service.Complete(c.Request.Context(), identityFrom(c), c.Param("id"))
	h.writeResult(c, result, err)
}

func (h *Handler) RetrySave(c *gin.Context) {
	result, err := h.service.RetrySave(c.Request.Context(), identityFrom(c), c.Param("id"))
	h.writeResult(c, result, err)
}

// writeResult reports a failed write together with the scored result so the client can offer a retry.
func (h *Handler) writeResult(c *gin.Context, result domain.Result, err error) {
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, resultResponse{Result: result, Saved: true})
	case errors.Is(err, domain.ErrPersistence) && result.ID != "":
		c.JSON(http.StatusBadGateway, resultResponse{Result: result, Error: err.Error()})
	default:
		h.fail(c, err)
	}
}

func (h *Handler) Leaderboard(c *gin.Context) {
	lb, err := h.service.Leaderboard(c.Request.Context(), identityFrom(c).ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, lb)
}

func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context(), identityFrom(c).ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) fail(c *gin.Context, err error) {
	if statusFor(err) >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	writeError(c, err)
}
