package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/medichain/medichain-api/internal/handler"
	"github.com/medichain/medichain-api/internal/model"
	"github.com/medichain/medichain-api/internal/service/access"
	"github.com/medichain/medichain-api/internal/service/audit"
	"github.com/medichain/medichain-api/internal/service/directory"
	"github.com/medichain/medichain-api/internal/service/registration"
)

type Handler struct {
	regSvc    registration.RegistrationService
	dirSvc    *directory.Service
	accessSvc access.AccessService
	auditSvc  *audit.Service
}

func NewHandler(
	regSvc registration.RegistrationService,
	dirSvc *directory.Service,
	accessSvc access.AccessService,
	auditSvc *audit.Service,
) *Handler {
	return &Handler{regSvc: regSvc, dirSvc: dirSvc, accessSvc: accessSvc, auditSvc: auditSvc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	admin := r.Group("/admin")
	{
		admin.POST("/doctors", h.RegisterDoctor)
		admin.GET("/doctors", h.ListDoctors)
		admin.PATCH("/doctors/:id/active", h.SetDoctorActive)
		admin.GET("/patients", h.ListPatients)

		admin.POST("/access/grant", h.GrantAccess)
		admin.POST("/access/revoke", h.RevokeAccess)
		admin.GET("/access/check", h.CheckAccess)

		admin.GET("/audit", h.AuditHistory)
		admin.GET("/reconciliation/orphans", h.ListOrphans)
	}
}

// RegisterDoctor creates a doctor with a full profile. Blocks until the
// on-chain registration confirms.
func (h *Handler) RegisterDoctor(c *gin.Context) {
	var req model.RegisterDoctorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	meta := &model.RequestMeta{IP: c.ClientIP(), UserAgent: c.Request.UserAgent()}
	result, err := h.regSvc.RegisterDoctor(c.Request.Context(), &req, meta)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(result))
}

func (h *Handler) ListDoctors(c *gin.Context) {
	doctors, err := h.dirSvc.ListDoctors(c.Request.Context())
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(doctors))
}

func (h *Handler) ListPatients(c *gin.Context) {
	patients, err := h.dirSvc.ListPatients(c.Request.Context())
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(patients))
}

func (h *Handler) SetDoctorActive(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid doctor ID"))
		return
	}

	var req struct {
		Active *bool `json:"active" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	user, err := h.dirSvc.SetDoctorActive(c.Request.Context(), id, *req.Active)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(user))
}

func (h *Handler) GrantAccess(c *gin.Context) {
	h.setAccess(c, true)
}

func (h *Handler) RevokeAccess(c *gin.Context) {
	h.setAccess(c, false)
}

func (h *Handler) setAccess(c *gin.Context, allowed bool) {
	var req model.GrantAccessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	patientID, err := uuid.Parse(req.PatientID)
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid patient ID"))
		return
	}
	doctorID, err := uuid.Parse(req.DoctorID)
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

// CheckAccess reads the current on-chain relation for a doctor/patient pair.
func (h *Handler) CheckAccess(c *gin.Context) {
	doctorWallet := c.Query("doctor_wallet")
	patientWallet := c.Query("patient_wallet")
	if doctorWallet == "" || patientWallet == "" {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("doctor_wallet and patient_wallet are required"))
		return
	}

	check, err := h.accessSvc.Check(c.Request.Context(), doctorWallet, patientWallet)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(check))
}

func (h *Handler) AuditHistory(c *gin.Context) {
	history, err := h.auditSvc.GetAuditHistory(c.Request.Context())
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(history))
}

// ListOrphans runs the reconciliation query on demand: identities that exist
// locally but have no confirmed on-chain registration.
func (h *Handler) ListOrphans(c *gin.Context) {
	orphans, err := h.regSvc.FindOrphanedIdentities(c.Request.Context())
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(orphans))
}
