package api

import (
	"alcyxob/wellness-portal/internal/domain"
	"alcyxob/wellness-portal/internal/progression"
	"alcyxob/wellness-portal/internal/repository"
	"alcyxob/wellness-portal/internal/service"
	"alcyxob/wellness-portal/internal/storage"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ProgramHandler serves the signed-in customer's own program.
type ProgramHandler struct {
	programService service.ProgramService
}

func NewProgramHandler(programService service.ProgramService) *ProgramHandler {
	return &ProgramHandler{programService: programService}
}

// --- DTOs ---

type RescheduleRequest struct {
	Date   string `json:"date" binding:"required"`
	Time   string `json:"time" binding:"required"`
	Reason string `json:"reason" binding:"required"`
}

type PhotoUploadRequest struct {
	ContentType string `json:"contentType" binding:"required"`
}

// writeProgramError maps service and progression errors onto HTTP statuses.
func writeProgramError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, progression.ErrWeekNotFound),
		errors.Is(err, progression.ErrVideoNotFound),
		errors.Is(err, progression.ErrAppointmentNotFound),
		errors.Is(err, service.ErrLogNotFound),
		errors.Is(err, service.ErrCustomerNotFound),
		errors.Is(err, repository.ErrNotFound):
		abortWithError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, progression.ErrWeekLocked),
		errors.Is(err, progression.ErrDayLocked),
		errors.Is(err, progression.ErrVideoLocked),
		errors.Is(err, service.ErrPhotoNotOwned),
		errors.Is(err, service.ErrCustomerNotManaged),
		errors.Is(err, service.ErrPartnerNotApproved):
		abortWithError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrWeekIncomplete),
		errors.Is(err, service.ErrRescheduleNotPending):
		abortWithError(c, http.StatusConflict, err.Error())
	case errors.Is(err, progression.ErrInvalidEntry),
		errors.Is(err, storage.ErrUnsupportedContentType):
		abortWithError(c, http.StatusBadRequest, err.Error())
	default:
		abortWithError(c, http.StatusInternalServerError, "Internal server error.")
	}
}

// customerAndWeek reads the caller's ID and the :week path parameter.
func customerAndWeek(c *gin.Context) (primitive.ObjectID, int, bool) {
	customerID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify customer.")
		return primitive.NilObjectID, 0, false
	}
	week, err := strconv.Atoi(c.Param("week"))
	if err != nil || week < 1 {
		abortWithError(c, http.StatusBadRequest, "Invalid week number.")
		return primitive.NilObjectID, 0, false
	}
	return customerID, week, true
}

// GetProgram godoc
// @Summary Get my program
// @Description Returns the customer's program with derived week status, completion and gates. The program is created on first access.
// @Tags Program
// @Produce json
// @Security BearerAuth
// @Success 200 {object} progression.ProgramView
// @Router /program [get]
func (h *ProgramHandler) GetProgram(c *gin.Context) {
	customerID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify customer.")
		return
	}
	view, err := h.programService.GetProgram(c.Request.Context(), customerID)
	if err != nil {
		writeProgramError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// GetWeek godoc
// @Summary Get one week of my program
// @Tags Program
// @Produce json
// @Security BearerAuth
// @Param week path int true "Week number"
// @Success 200 {object} progression.WeekView
// @Failure 404 {object} gin.H "Week not found"
// @Router /program/weeks/{week} [get]
func (h *ProgramHandler) GetWeek(c *gin.Context) {
	customerID, week, ok := customerAndWeek(c)
	if !ok {
		return
	}
	view, err := h.programService.GetWeek(c.Request.Context(), customerID, week)
	if err != nil {
		writeProgramError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// MarkVideoWatched godoc
// @Summary Mark a video as watched
// @Tags Program
// @Produce json
// @Security BearerAuth
// @Param week path int true "Week number"
// @Param videoId path string true "Video ID"
// @Success 200 {object} progression.WeekView
// @Failure 403 {object} gin.H "Week or video locked"
// @Failure 404 {object} gin.H "Unknown week or video"
// @Router /program/weeks/{week}/videos/{videoId}/watched [post]
func (h *ProgramHandler) MarkVideoWatched(c *gin.Context) {
	customerID, week, ok := customerAndWeek(c)
	if !ok {
		return
	}
	view, err := h.programService.MarkVideoWatched(c.Request.Context(), customerID, week, c.Param("videoId"))
	if err != nil {
		writeProgramError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// AddMealLog godoc
// @Summary Add a meal log
// @Tags Program
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param week path int true "Week number"
// @Param entry body domain.MealLog true "Meal log"
// @Success 201 {object} domain.MealLog
// @Failure 400 {object} gin.H "Invalid entry"
// @Failure 403 {object} gin.H "Week or day locked, or photo not owned"
// @Router /program/weeks/{week}/meal-logs [post]
func (h *ProgramHandler) AddMealLog(c *gin.Context) {
	customerID, week, ok := customerAndWeek(c)
	if !ok {
		return
	}
	var entry domain.MealLog
	if err := c.ShouldBindJSON(&entry); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	added, err := h.programService.AddMealLog(c.Request.Context(), customerID, week, entry)
	if err != nil {
		writeProgramError(c, err)
		return
	}
	c.JSON(http.StatusCreated, added)
}

// EditMealLog godoc
// @Summary Edit a meal log
// @Description Applies a partial update. A replaced photo is deleted from storage.
// @Tags Program
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param week path int true "Week number"
// @Param id path string true "Meal log ID"
// @Param update body domain.MealLogUpdate true "Fields to change"
// @Success 200 {object} progression.WeekView
// @Failure 400 {object} gin.H "Invalid update"
// @Failure 404 {object} gin.H "Unknown week or log"
// @Router /program/weeks/{week}/meal-logs/{id} [patch]
func (h *ProgramHandler) EditMealLog(c *gin.Context) {
	customerID, week, ok := customerAndWeek(c)
	if !ok {
		return
	}
	var update domain.MealLogUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	view, err := h.programService.EditMealLog(c.Request.Context(), customerID, week, c.Param("id"), update)
	if err != nil {
		writeProgramError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// DeleteMealLog godoc
// @Summary Delete a meal log
// @Tags Program
// @Security BearerAuth
// @Param week path int true "Week number"
// @Param id path string true "Meal log ID"
// @Success 204 "Deleted"
// @Failure 404 {object} gin.H "Unknown week"
// @Router /program/weeks/{week}/meal-logs/{id} [delete]
func (h *ProgramHandler) DeleteMealLog(c *gin.Context) {
	customerID, week, ok := customerAndWeek(c)
	if !ok {
		return
	}
	if err := h.programService.DeleteMealLog(c.Request.Context(), customerID, week, c.Param("id")); err != nil {
		writeProgramError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// AddWeightLog godoc
// @Summary Add a weight log
// @Tags Program
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param week path int true "Week number"
// @Param entry body domain.WeightLog true "Weight log"
// @Success 201 {object} domain.WeightLog
// @Failure 400 {object} gin.H "Invalid entry"
// @Failure 403 {object} gin.H "Week or day locked, or photo not owned"
// @Router /program/weeks/{week}/weight-logs [post]
func (h *ProgramHandler) AddWeightLog(c *gin.Context) {
	customerID, week, ok := customerAndWeek(c)
	if !ok {
		return
	}
	var entry domain.WeightLog
	if err := c.ShouldBindJSON(&entry); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	added, err := h.programService.AddWeightLog(c.Request.Context(), customerID, week, entry)
	if err != nil {
		writeProgramError(c, err)
		return
	}
	c.JSON(http.StatusCreated, added)
}

// EditWeightLog godoc
// @Summary Edit a weight log
// @Description Applies a partial update. A replaced photo is deleted from storage.
// @Tags Program
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param week path int true "Week number"
// @Param id path string true "Weight log ID"
// @Param update body domain.WeightLogUpdate true "Fields to change"
// @Success 200 {object} progression.WeekView
// @Failure 400 {object} gin.H "Invalid update"
// @Failure 404 {object} gin.H "Unknown week or log"
// @Router /program/weeks/{week}/weight-logs/{id} [patch]
func (h *ProgramHandler) EditWeightLog(c *gin.Context) {
	customerID, week, ok := customerAndWeek(c)
	if !ok {
		return
	}
	var update domain.WeightLogUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	view, err := h.programService.EditWeightLog(c.Request.Context(), customerID, week, c.Param("id"), update)
	if err != nil {
		writeProgramError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// DeleteWeightLog godoc
// @Summary Delete a weight log
// @Tags Program
// @Security BearerAuth
// @Param week path int true "Week number"
// @Param id path string true "Weight log ID"
// @Success 204 "Deleted"
// @Failure 404 {object} gin.H "Unknown week"
// @Router /program/weeks/{week}/weight-logs/{id} [delete]
func (h *ProgramHandler) DeleteWeightLog(c *gin.Context) {
	customerID, week, ok := customerAndWeek(c)
	if !ok {
		return
	}
	if err := h.programService.DeleteWeightLog(c.Request.Context(), customerID, week, c.Param("id")); err != nil {
		writeProgramError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// CompleteWeek godoc
// @Summary Complete a week
// @Description Closes the week and unlocks the next one. Requires every video watched, 7 meal logs and a weight log.
// @Tags Program
// @Produce json
// @Security BearerAuth
// @Param week path int true "Week number"
// @Success 200 {object} progression.ProgramView
// @Failure 409 {object} gin.H "Week requirements not met"
// @Router /program/weeks/{week}/complete [post]
func (h *ProgramHandler) CompleteWeek(c *gin.Context) {
	customerID, week, ok := customerAndWeek(c)
	if !ok {
		return
	}
	view, err := h.programService.CompleteWeek(c.Request.Context(), customerID, week)
	if err != nil {
		writeProgramError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// RequestPhotoUploadURL godoc
// @Summary Get a presigned URL for a log photo
// @Tags Program
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param week path int true "Week number"
// @Param body body PhotoUploadRequest true "Photo content type"
// @Success 200 {object} service.UploadURLResponse
// @Router /program/weeks/{week}/photos/upload-url [post]
func (h *ProgramHandler) RequestPhotoUploadURL(c *gin.Context) {
	customerID, week, ok := customerAndWeek(c)
	if !ok {
		return
	}
	var req PhotoUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	resp, err := h.programService.RequestPhotoUploadURL(c.Request.Context(), customerID, week, req.ContentType)
	if err != nil {
		writeProgramError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// PhotoDownloadURL godoc
// @Summary Get a presigned download URL for an owned photo
// @Tags Program
// @Produce json
// @Security BearerAuth
// @Param key query string true "Photo object key"
// @Success 200 {object} gin.H "downloadUrl"
// @Failure 400 {object} gin.H "Missing key"
// @Failure 403 {object} gin.H "Photo not owned"
// @Router /program/photos/download-url [get]
func (h *ProgramHandler) PhotoDownloadURL(c *gin.Context) {
	customerID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify customer.")
		return
	}
	key := c.Query("key")
	if key == "" {
		abortWithError(c, http.StatusBadRequest, "Query parameter 'key' is required.")
		return
	}
	url, err := h.programService.PhotoDownloadURL(c.Request.Context(), customerID, key)
	if err != nil {
		writeProgramError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"downloadUrl": url})
}

// RequestReschedule godoc
// @Summary Request an appointment reschedule
// @Tags Program
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param appointmentId path string true "Appointment ID"
// @Param body body RescheduleRequest true "Proposed date and time"
// @Success 200 {object} domain.Appointment
// @Failure 404 {object} gin.H "Unknown appointment"
// @Router /appointments/{appointmentId}/reschedule [post]
func (h *ProgramHandler) RequestReschedule(c *gin.Context) {
	customerID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify customer.")
		return
	}
	var req RescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	appt, err := h.programService.RequestReschedule(c.Request.Context(), customerID, c.Param("appointmentId"), req.Date, req.Time, req.Reason)
	if err != nil {
		writeProgramError(c, err)
		return
	}
	c.JSON(http.StatusOK, appt)
}
