package handler

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"net/http"

	"github.com/gin-gonic/gin"

	"stokmanager/internal/usecase/attendance"
	"stokmanager/pkg/utils"
)

const csvContentType = "text/csv; charset=utf-8"

type AttendanceHandler struct {
	service *attendance.Service
}

func NewAttendanceHandler(service *attendance.Service) *AttendanceHandler {
	return &AttendanceHandler{service: service}
}

func (h *AttendanceHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/attendance", h.Record)
	router.GET("/attendance", h.Stats)
	router.GET("/attendance-export", h.Export)
}

type duplicateAttendanceResponse struct {
	Error    string `json:"error"`
	Message  string `json:"message"`
	TimeDiff int    `json:"timeDiff"`
}

func (h *AttendanceHandler) Record(c *gin.Context) {
	var req attendance.RecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	record, err := h.service.Record(c.Request.Context(), &req)
	if err != nil {
		var dup *attendance.DuplicateError
		if errors.As(err, &dup) {
			c.JSON(http.StatusConflict, duplicateAttendanceResponse{
				Error:    "Duplicate attendance detected",
				Message:  dup.Error(),
				TimeDiff: int(math.Round(dup.Since.Seconds())),
			})
			return
		}
		respondWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Attendance recorded successfully", record)
}

func (h *AttendanceHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		respondWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", stats)
}

type exportResponse struct {
	Success bool                        `json:"success"`
	Date    string                      `json:"date"`
	Data    []attendance.RecordResponse `json:"data"`
	Count   int                         `json:"count"`
}

// Export returns one day of attendance as CSV (default) or JSON.
func (h *AttendanceHandler) Export(c *gin.Context) {
	var req attendance.ExportRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid query parameters")
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	export, err := h.service.Export(c.Request.Context(), req.Date)
	if err != nil {
		respondWithError(c, err)
		return
	}

	if req.Format == "json" {
		c.JSON(http.StatusOK, exportResponse{
			Success: true,
			Date:    export.Date,
			Data:    attendance.ToRecordResponses(export.Records),
			Count:   len(export.Records),
		})
		return
	}

	var buf bytes.Buffer
	if err := attendance.WriteCSV(&buf, export.Records, h.service.CSVDefaults()); err != nil {
		respondWithError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", attendance.ExportFilename(export.Date)))
	c.Data(http.StatusOK, csvContentType, buf.Bytes())
}
