package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	domainScan "stokmanager/internal/domain/scan"
	"stokmanager/internal/middleware"
	"stokmanager/internal/usecase/scan"
	"stokmanager/pkg/utils"
)

type ScanHandler struct {
	service *scan.Service
}

func NewScanHandler(service *scan.Service) *ScanHandler {
	return &ScanHandler{service: service}
}

func (h *ScanHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/barcode-scan", h.BarcodeScan)
	router.GET("/current-page", h.CurrentPage)
	router.POST("/current-page", h.CurrentPage)
}

// BarcodeScan answers 200 even when the scan could not be stored; the body
// then carries localSave so the device keeps the scan instead of retrying.
func (h *ScanHandler) BarcodeScan(c *gin.Context) {
	var req scan.IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := h.service.Ingest(c.Request.Context(), &req, middleware.ClientIP(c))
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// CurrentPageResponse tells scanners which mode the dashboard is in. Only
// inventory mode exists, so setting the mode is accepted and ignored.
type CurrentPageResponse struct {
	Page      string `json:"page"`
	Mode      string `json:"mode"`
	Timestamp int64  `json:"timestamp"`
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
}

func (h *ScanHandler) CurrentPage(c *gin.Context) {
	resp := CurrentPageResponse{
		Page:      domainScan.ModeInventory,
		Mode:      domainScan.ModeInventory,
		Timestamp: time.Now().UnixMilli(),
		Success:   true,
	}
	if c.Request.Method == http.MethodPost {
		resp.Message = "Page mode set to inventory"
	}
	c.JSON(http.StatusOK, resp)
}
