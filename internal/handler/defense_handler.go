package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/defense-allocation-api/internal/dto"
	"github.com/noah-isme/defense-allocation-api/internal/models"
	"github.com/noah-isme/defense-allocation-api/internal/service"
	appErrors "github.com/noah-isme/defense-allocation-api/pkg/errors"
	"github.com/noah-isme/defense-allocation-api/pkg/export"
	"github.com/noah-isme/defense-allocation-api/pkg/response"
)

type defenseAllocator interface {
	AllocateDefenses(ctx context.Context, req dto.AllocateDefensesRequest) ([]dto.DefenseSummary, error)
}

type defenseRecords interface {
	Get(ctx context.Context, id string) (*dto.DefenseSummary, error)
	List(ctx context.Context, filter models.DefenseFilter) ([]dto.DefenseSummary, *models.Pagination, error)
	RecordGrade(ctx context.Context, id string, req dto.RecordGradeRequest) (*dto.DefenseSummary, error)
	RecordRoom(ctx context.Context, id string, req dto.RecordRoomRequest) (*dto.DefenseSummary, error)
	ExportSchedule(ctx context.Context, filter models.DefenseFilter, format export.Format) (*service.ExportFile, error)
}

// DefenseHandler exposes allocation and defense record endpoints.
type DefenseHandler struct {
	allocator defenseAllocator
	records   defenseRecords
}

// NewDefenseHandler constructs the handler.
func NewDefenseHandler(allocator defenseAllocator, records defenseRecords) *DefenseHandler {
	return &DefenseHandler{allocator: allocator, records: records}
}

// Allocate godoc
// @Summary Allocate defenses for a batch of students
// @Description Creates one defense per student in a single transaction. Any failure rolls back the whole batch.
// @Tags Defenses
// @Accept json
// @Produce json
// @Param payload body dto.AllocateDefensesRequest true "Allocation payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /defenses/allocations [post]
func (h *DefenseHandler) Allocate(c *gin.Context) {
	var req dto.AllocateDefensesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid allocation payload"))
		return
	}
	result, err := h.allocator.AllocateDefenses(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// List godoc
// @Summary List defenses
// @Tags Defenses
// @Produce json
// @Param student_id query string false "Student ID"
// @Param status query string false "Status" Enums(PENDIENTE, ASIGNADO, APROBADO, REPROBADO)
// @Param date query string false "Scheduled day (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /defenses [get]
func (h *DefenseHandler) List(c *gin.Context) {
	filter, err := parseDefenseFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, pagination, err := h.records.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, pagination)
}

// Get godoc
// @Summary Get defense detail
// @Tags Defenses
// @Produce json
// @Param id path string true "Defense ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /defenses/{id} [get]
func (h *DefenseHandler) Get(c *gin.Context) {
	result, err := h.records.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// RecordGrade godoc
// @Summary Record the final grade of a defense
// @Description Grades of 51 or more approve the defense, lower grades fail it.
// @Tags Defenses
// @Accept json
// @Produce json
// @Param id path string true "Defense ID"
// @Param payload body dto.RecordGradeRequest true "Grade payload"
// @Success 200 {object} response.Envelope
// @Router /defenses/{id}/grade [put]
func (h *DefenseHandler) RecordGrade(c *gin.Context) {
	var req dto.RecordGradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid grade payload"))
		return
	}
	result, err := h.records.RecordGrade(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// RecordRoom godoc
// @Summary Assign the room of a defense
// @Tags Defenses
// @Accept json
// @Produce json
// @Param id path string true "Defense ID"
// @Param payload body dto.RecordRoomRequest true "Room payload"
// @Success 200 {object} response.Envelope
// @Router /defenses/{id}/room [put]
func (h *DefenseHandler) RecordRoom(c *gin.Context) {
	var req dto.RecordRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid room payload"))
		return
	}
	result, err := h.records.RecordRoom(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// Export godoc
// @Summary Export the defense schedule
// @Tags Defenses
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "Export format" Enums(csv, pdf)
// @Param student_id query string false "Student ID"
// @Param status query string false "Status"
// @Param date query string false "Scheduled day (YYYY-MM-DD)"
// @Success 200 {file} file
// @Router /defenses/export [get]
func (h *DefenseHandler) Export(c *gin.Context) {
	filter, err := parseDefenseFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	format := export.Format(strings.ToLower(c.DefaultQuery("format", string(export.FormatCSV))))
	file, err := h.records.ExportSchedule(c.Request.Context(), filter, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	c.Data(http.StatusOK, file.ContentType, file.Content)
}

func parseDefenseFilter(c *gin.Context) (models.DefenseFilter, error) {
	filter := models.DefenseFilter{StudentID: strings.TrimSpace(c.Query("student_id"))}

	if raw := strings.ToUpper(strings.TrimSpace(c.Query("status"))); raw != "" {
		status := models.DefenseStatus(raw)
		switch status {
		case models.DefenseStatusPending, models.DefenseStatusAssigned, models.DefenseStatusApproved, models.DefenseStatusFailed:
			filter.Status = &status
		default:
			return filter, appErrors.Clone(appErrors.ErrValidation, "unknown status "+raw)
		}
	}

	if raw := strings.TrimSpace(c.Query("date")); raw != "" {
		day, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return filter, appErrors.Clone(appErrors.ErrValidation, "date must be formatted as YYYY-MM-DD")
		}
		filter.Date = &day
	}

	filter.Page = queryInt(c, "page")
	filter.PageSize = queryInt(c, "page_size")
	return filter, nil
}

func queryInt(c *gin.Context, key string) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return 0
	}
	return n
}
