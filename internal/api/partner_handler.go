package api

import (
	"alcyxob/wellness-portal/internal/domain"
	"alcyxob/wellness-portal/internal/service"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PartnerHandler serves partners and admins acting on a customer's program,
// and the admin's partner application decisions.
type PartnerHandler struct {
	programService service.ProgramService
	partnerService service.PartnerService
}

func NewPartnerHandler(programService service.ProgramService, partnerService service.PartnerService) *PartnerHandler {
	return &PartnerHandler{programService: programService, partnerService: partnerService}
}

type BookAppointmentRequest struct {
	Title string `json:"title" binding:"required"`
	Date  string `json:"date" binding:"required"`
	Time  string `json:"time" binding:"required"`
}

type DecisionRequest struct {
	Email  string                   `json:"email" binding:"required,email"`
	Status domain.ApplicationStatus `json:"status" binding:"required,oneof=approved rejected pending"`
	Note   string                   `json:"note"`
}

// actorAndCustomer reads the caller and the :customerId path parameter.
func actorAndCustomer(c *gin.Context) (service.Actor, primitive.ObjectID, bool) {
	actorID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify caller.")
		return service.Actor{}, primitive.NilObjectID, false
	}
	role, err := getUserRoleFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, err.Error())
		return service.Actor{}, primitive.NilObjectID, false
	}
	customerID, err := primitive.ObjectIDFromHex(c.Param("customerId"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid customer ID format.")
		return service.Actor{}, primitive.NilObjectID, false
	}
	return service.Actor{ID: actorID, Role: role}, customerID, true
}

// GetCustomerProgram godoc
// @Summary View a customer's program
// @Tags Partner
// @Produce json
// @Security BearerAuth
// @Param customerId path string true "Customer's ObjectID Hex"
// @Success 200 {object} progression.ProgramView
// @Failure 403 {object} gin.H "Customer not linked to this partner"
// @Router /customers/{customerId}/program [get]
func (h *PartnerHandler) GetCustomerProgram(c *gin.Context) {
	actor, customerID, ok := actorAndCustomer(c)
	if !ok {
		return
	}
	view, err := h.programService.GetCustomerProgram(c.Request.Context(), actor, customerID)
	if err != nil {
		writeProgramError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// BookAppointment godoc
// @Summary Book an appointment for a customer
// @Tags Partner
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param customerId path string true "Customer's ObjectID Hex"
// @Param body body BookAppointmentRequest true "Appointment details"
// @Success 201 {object} domain.Appointment
// @Failure 403 {object} gin.H "Customer not linked or partner not approved"
// @Failure 404 {object} gin.H "Customer not found"
// @Router /customers/{customerId}/appointments [post]
func (h *PartnerHandler) BookAppointment(c *gin.Context) {
	actor, customerID, ok := actorAndCustomer(c)
	if !ok {
		return
	}
	var req BookAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	appt, err := h.programService.BookAppointment(c.Request.Context(), actor, customerID, req.Title, req.Date, req.Time)
	if err != nil {
		writeProgramError(c, err)
		return
	}
	c.JSON(http.StatusCreated, appt)
}

// ApproveReschedule godoc
// @Summary Approve a customer's reschedule request
// @Tags Partner
// @Produce json
// @Security BearerAuth
// @Param customerId path string true "Customer's ObjectID Hex"
// @Param appointmentId path string true "Appointment ID"
// @Success 200 {object} domain.Appointment
// @Failure 409 {object} gin.H "No pending request"
// @Router /customers/{customerId}/appointments/{appointmentId}/approve [post]
func (h *PartnerHandler) ApproveReschedule(c *gin.Context) {
	actor, customerID, ok := actorAndCustomer(c)
	if !ok {
		return
	}
	appt, err := h.programService.ApproveReschedule(c.Request.Context(), actor, customerID, c.Param("appointmentId"))
	if err != nil {
		writeProgramError(c, err)
		return
	}
	c.JSON(http.StatusOK, appt)
}

// DecidePartnerApplication godoc
// @Summary Record a partner application decision
// @Description Appends a decision to the partner's application history.
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body DecisionRequest true "Decision"
// @Success 201 {object} domain.PartnerApplication
// @Failure 400 {object} gin.H "Invalid decision"
// @Failure 409 {object} gin.H "Email belongs to a non-partner"
// @Router /admin/partner-applications/decision [post]
func (h *PartnerHandler) DecidePartnerApplication(c *gin.Context) {
	adminID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify admin.")
		return
	}
	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	app, err := h.partnerService.Decide(c.Request.Context(), adminID, req.Email, req.Status, req.Note)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotPartner):
			abortWithError(c, http.StatusConflict, err.Error())
		case errors.Is(err, service.ErrInvalidDecision):
			abortWithError(c, http.StatusBadRequest, err.Error())
		default:
			abortWithError(c, http.StatusInternalServerError, "Failed to record decision.")
		}
		return
	}
	c.JSON(http.StatusCreated, app)
}

// LatestPartnerApplication godoc
// @Summary Get the latest partner application
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param email query string true "Partner email"
// @Success 200 {object} domain.PartnerApplication
// @Failure 404 {object} gin.H "No application"
// @Router /admin/partner-applications/latest [get]
func (h *PartnerHandler) LatestPartnerApplication(c *gin.Context) {
	email := c.Query("email")
	if email == "" {
		abortWithError(c, http.StatusBadRequest, "Query parameter 'email' is required.")
		return
	}
	app, err := h.partnerService.LatestApplication(c.Request.Context(), email)
	if err != nil {
		if errors.Is(err, service.ErrApplicationNotFound) {
			abortWithError(c, http.StatusNotFound, err.Error())
		} else {
			abortWithError(c, http.StatusInternalServerError, "Failed to load application.")
		}
		return
	}
	c.JSON(http.StatusOK, app)
}
