package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"stokmanager/internal/usecase/inventory"
	"stokmanager/pkg/utils"
)

type InventoryHandler struct {
	service *inventory.Service
}

func NewInventoryHandler(service *inventory.Service) *InventoryHandler {
	return &InventoryHandler{service: service}
}

func (h *InventoryHandler) RegisterRoutes(router *gin.RouterGroup) {
	items := router.Group("/inventory")
	{
		items.GET("", h.ListItems)
		items.GET("/lookup", h.Lookup)
	}
}

// RegisterAdminRoutes registers catalog writes; callers add auth.
func (h *InventoryHandler) RegisterAdminRoutes(router *gin.RouterGroup) {
	items := router.Group("/inventory")
	{
		items.POST("", h.CreateItem)
		items.DELETE("/:id", h.DeleteItem)
	}
}

func (h *InventoryHandler) ListItems(c *gin.Context) {
	resp, err := h.service.ListItems(c.Request.Context())
	if err != nil {
		respondWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Items retrieved successfully", resp)
}

func (h *InventoryHandler) Lookup(c *gin.Context) {
	item, err := h.service.Lookup(c.Request.Context(), c.Query("barcode"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Item found", item)
}

func (h *InventoryHandler) CreateItem(c *gin.Context) {
	var req inventory.CreateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	item, err := h.service.CreateItem(c.Request.Context(), &req)
	if err != nil {
		respondWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusCreated, "Item created successfully", item)
}

func (h *InventoryHandler) DeleteItem(c *gin.Context) {
	if err := h.service.DeleteItem(c.Request.Context(), c.Param("id")); err != nil {
		respondWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Item deleted successfully", nil)
}
