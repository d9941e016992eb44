package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/podsage/internal/middleware"
)

type RouterDeps struct {
	Chat    *ChatHandler
	Extract *ExtractHandler
	Content *ContentHandler

	ChatDebounce time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	chatGroup := api.Group("")
	chatGroup.Use(middleware.Debounce(deps.ChatDebounce))
	chatGroup.POST("/chat", deps.Chat.Ask)

	api.POST("/extract", deps.Extract.Run)

	api.GET("/podcasts/:slug/concepts", deps.Content.ListConcepts)
	api.GET("/podcasts/:slug/insights", deps.Content.ListInsights)
}
