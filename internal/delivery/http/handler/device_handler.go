package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"stokmanager/internal/middleware"
	"stokmanager/internal/usecase/device"
	"stokmanager/internal/usecase/presence"
	"stokmanager/pkg/utils"
)

type DeviceHandler struct {
	service    *device.Service
	reconciler *presence.Reconciler
}

func NewDeviceHandler(service *device.Service, reconciler *presence.Reconciler) *DeviceHandler {
	return &DeviceHandler{service: service, reconciler: reconciler}
}

// RegisterDeviceRoutes registers the endpoints called by the scanners.
func (h *DeviceHandler) RegisterDeviceRoutes(router *gin.RouterGroup) {
	router.POST("/heartbeat", h.Heartbeat)
}

func (h *DeviceHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/devices-status", h.ListDevices)
	router.GET("/devices/:id", h.GetDevice)
}

// RegisterCronRoutes registers the scheduler trigger; callers add the cron
// secret guard.
func (h *DeviceHandler) RegisterCronRoutes(router *gin.RouterGroup) {
	router.POST("/check-device-status", h.CheckDeviceStatus)
}

func (h *DeviceHandler) Heartbeat(c *gin.Context) {
	var req device.HeartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := h.service.Heartbeat(c.Request.Context(), &req, middleware.ClientIP(c))
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *DeviceHandler) ListDevices(c *gin.Context) {
	resp, err := h.service.ListDevices(c.Request.Context())
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *DeviceHandler) GetDevice(c *gin.Context) {
	resp, err := h.service.GetDevice(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Device retrieved successfully", resp)
}

type checkStatusResponse struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	UpdatedDevices int    `json:"updatedDevices"`
	Online         int    `json:"online"`
	Offline        int    `json:"offline"`
	Timestamp      string `json:"timestamp"`
}

// CheckDeviceStatus runs one reconciler tick now.
func (h *DeviceHandler) CheckDeviceStatus(c *gin.Context) {
	result, err := h.reconciler.Tick(c.Request.Context())
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, checkStatusResponse{
		Success:        true,
		Message:        "Device status check completed",
		UpdatedDevices: result.Updated,
		Online:         result.Online,
		Offline:        result.Offline,
		Timestamp:      result.At.UTC().Format(time.RFC3339Nano),
	})
}
