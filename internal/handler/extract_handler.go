package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/podsage/internal/pkg/response"
	"github.com/xxxsen/podsage/internal/service"
)

type ExtractHandler struct {
	extract *service.ExtractService
	reports *service.ReportService
}

func NewExtractHandler(extract *service.ExtractService, reports *service.ReportService) *ExtractHandler {
	return &ExtractHandler{extract: extract, reports: reports}
}

type extractRequest struct {
	Podcast string `json:"podcast"`
	service.RunOptions
}

type extractResponse struct {
	*service.ExtractResult
	ReportURL string `json:"report_url,omitempty"`
}

// Run triggers a synchronous extraction. Runs take a while, so callers
// should expect to wait; a second request for the same podcast gets 409.
// Dry runs return previews and publish nothing.
func (h *ExtractHandler) Run(c *gin.Context) {
	var req extractRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Podcast == "" {
		response.Error(c, http.StatusBadRequest, "invalid_request", "podcast is required")
		return
	}
	result, err := h.extract.RunWith(c.Request.Context(), req.Podcast, req.RunOptions)
	if err != nil {
		handleError(c, err)
		return
	}
	resp := &extractResponse{ExtractResult: result}
	if h.reports != nil && !result.DryRun {
		resp.ReportURL = h.reports.Publish(c.Request.Context(), result)
	}
	response.Success(c, resp)
}
