package patient

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/medichain/medichain-api/internal/handler"
	"github.com/medichain/medichain-api/internal/middleware"
	"github.com/medichain/medichain-api/internal/model"
	"github.com/medichain/medichain-api/internal/service/access"
	"github.com/medichain/medichain-api/internal/service/directory"
	"github.com/medichain/medichain-api/internal/service/prescription"
)

type Handler struct {
	dirSvc    *directory.Service
	accessSvc access.AccessService
	prescSvc  prescription.PrescriptionService
}

func NewHandler(dirSvc *directory.Service, accessSvc access.AccessService, prescSvc prescription.PrescriptionService) *Handler {
	return &Handler{dirSvc: dirSvc, accessSvc: accessSvc, prescSvc: prescSvc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	patient := r.Group("/patient")
	{
		patient.GET("/profile", h.GetProfile)
		patient.PUT("/profile", h.UpdateProfile)
		patient.GET("/prescriptions", h.ListPrescriptions)
		patient.POST("/access/doctors/:id/grant", h.GrantAccess)
		patient.POST("/access/doctors/:id/revoke", h.RevokeAccess)
	}
}

func (h *Handler) GetProfile(c *gin.Context) {
	patientID, ok := middleware.CallerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("missing authentication"))
		return
	}

	listing, err := h.dirSvc.GetPatientProfile(c.Request.Context(), patientID)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(listing))
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	patientID, ok := middleware.CallerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("missing authentication"))
		return
	}

	var req model.UpdatePatientProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	profile, err := h.dirSvc.UpdatePatientProfile(c.Request.Context(), patientID, &req)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(profile))
}

func (h *Handler) ListPrescriptions(c *gin.Context) {
	patientID, ok := middleware.CallerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("missing authentication"))
		return
	}

	prescriptions, err := h.prescSvc.ListForPatient(c.Request.Context(), patientID)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(prescriptions))
}

// GrantAccess lets the patient open their records to a doctor. Blocks until
// the chain confirms; the next access check reflects the new state.
func (h *Handler) GrantAccess(c *gin.Context) {
	h.setAccess(c, true)
}

func (h *Handler) RevokeAccess(c *gin.Context) {
	h.setAccess(c, false)
}

func (h *Handler) setAccess(c *gin.Context, allowed bool) {
	patientID, ok := middleware.CallerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("missing authentication"))
		return
	}

	doctorID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid doctor ID"))
		return
	}

	var summary *model.AccessSummary
	if allowed {
		summary, err = h.accessSvc.Grant(c.Request.Context(), patientID, doctorID)
	} else {
		summary, err = h.accessSvc.Revoke(c.Request.Context(), patientID, doctorID)
	}
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(summary))
}
