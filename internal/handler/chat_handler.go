package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/podsage/internal/pkg/errs"
	"github.com/xxxsen/podsage/internal/pkg/response"
	"github.com/xxxsen/podsage/internal/service"
)

type ChatHandler struct {
	chat *service.ChatService
}

func NewChatHandler(chat *service.ChatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

type chatRequest struct {
	Podcast string `json:"podcast"`
	Message string `json:"message"`
}

func (h *ChatHandler) Ask(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	resp, err := h.chat.Ask(c.Request.Context(), &service.ChatRequest{
		Podcast:   req.Podcast,
		Message:   req.Message,
		CallerKey: callerKey(c),
	})
	if err != nil {
		var rejection *service.RejectionError
		if errors.As(err, &rejection) {
			status := http.StatusTooManyRequests
			code := "rate_limited"
			message := "request budget exhausted, try again later"
			if errors.Is(err, errs.ErrRepeatedInput) {
				status = http.StatusBadRequest
				code = "repeated_input"
				message = "same question, same answer, try rephrasing"
			}
			response.ErrorWithData(c, status, code, message, gin.H{"credits": rejection.Credits})
			return
		}
		handleError(c, err)
		return
	}
	response.Success(c, resp)
}
