package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/podsage/internal/model"
	"github.com/xxxsen/podsage/internal/pkg/response"
	"github.com/xxxsen/podsage/internal/service"
)

type conceptLister interface {
	ListByPodcast(ctx context.Context, podcastID string) ([]*model.Concept, error)
}

type insightLister interface {
	ListByPodcast(ctx context.Context, podcastID string) ([]*model.Insight, error)
}

// ContentHandler serves the published artifacts extraction produces.
type ContentHandler struct {
	podcasts service.PodcastStore
	concepts conceptLister
	insights insightLister
}

func NewContentHandler(podcasts service.PodcastStore, concepts conceptLister, insights insightLister) *ContentHandler {
	return &ContentHandler{podcasts: podcasts, concepts: concepts, insights: insights}
}

func (h *ContentHandler) ListConcepts(c *gin.Context) {
	podcast, err := h.podcasts.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		handleError(c, err)
		return
	}
	items, err := h.concepts.ListByPodcast(c.Request.Context(), podcast.ID)
	if err != nil {
		handleError(c, err)
		return
	}
	if items == nil {
		items = []*model.Concept{}
	}
	response.Success(c, gin.H{"concepts": items})
}

func (h *ContentHandler) ListInsights(c *gin.Context) {
	podcast, err := h.podcasts.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		handleError(c, err)
		return
	}
	items, err := h.insights.ListByPodcast(c.Request.Context(), podcast.ID)
	if err != nil {
		handleError(c, err)
		return
	}
	if items == nil {
		items = []*model.Insight{}
	}
	response.Success(c, gin.H{"insights": items})
}
