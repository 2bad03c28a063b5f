package doctor

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/medichain/medichain-api/internal/handler"
	"github.com/medichain/medichain-api/internal/middleware"
	"github.com/medichain/medichain-api/internal/model"
	"github.com/medichain/medichain-api/internal/recommend"
	"github.com/medichain/medichain-api/internal/service/access"
	"github.com/medichain/medichain-api/internal/service/directory"
	"github.com/medichain/medichain-api/internal/service/prescription"
	"github.com/medichain/medichain-api/internal/service/registration"
)

type Handler struct {
	regSvc       registration.RegistrationService
	accessSvc    access.AccessService
	prescSvc     prescription.PrescriptionService
	dirSvc       *directory.Service
	recommendCli *recommend.Client
}

func NewHandler(
	regSvc registration.RegistrationService,
	accessSvc access.AccessService,
	prescSvc prescription.PrescriptionService,
	dirSvc *directory.Service,
	recommendCli *recommend.Client,
) *Handler {
	return &Handler{regSvc: regSvc, accessSvc: accessSvc, prescSvc: prescSvc, dirSvc: dirSvc, recommendCli: recommendCli}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	doctor := r.Group("/doctor")
	{
		doctor.GET("/profile", h.GetProfile)
		doctor.PUT("/profile", h.UpdateProfile)
		doctor.POST("/patients", h.RegisterPatient)
		doctor.GET("/patients", h.AccessiblePatients)
		doctor.POST("/prescriptions", h.CreatePrescription)
		doctor.GET("/patients/:id/prescriptions", h.ListPrescriptions)
		doctor.GET("/patients/:id/recommendation", h.GetRecommendation)
	}
}

func (h *Handler) GetProfile(c *gin.Context) {
	doctorID, ok := middleware.CallerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("missing authentication"))
		return
	}

	listing, err := h.dirSvc.GetDoctorProfile(c.Request.Context(), doctorID)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(listing))
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	doctorID, ok := middleware.CallerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("missing authentication"))
		return
	}

	var req model.UpdateDoctorProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	profile, err := h.dirSvc.UpdateDoctorProfile(c.Request.Context(), doctorID, &req)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(profile))
}

// RegisterPatient creates a patient on behalf of the calling doctor. The saga
// also grants the doctor access, so the new patient is immediately visible to
// them.
func (h *Handler) RegisterPatient(c *gin.Context) {
	doctorID, ok := middleware.CallerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("missing authentication"))
		return
	}

	var req model.RegisterPatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	meta := &model.RequestMeta{IP: c.ClientIP(), UserAgent: c.Request.UserAgent()}
	result, err := h.regSvc.RegisterPatientForDoctor(c.Request.Context(), doctorID, &req, meta)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(result))
}

func (h *Handler) AccessiblePatients(c *gin.Context) {
	doctorID, ok := middleware.CallerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("missing authentication"))
		return
	}

	patients, err := h.accessSvc.AccessiblePatients(c.Request.Context(), doctorID)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(patients))
}

// CreatePrescription accepts a multipart form so an attachment can ride along
// with the prescription fields.
func (h *Handler) CreatePrescription(c *gin.Context) {
	doctorID, ok := middleware.CallerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("missing authentication"))
		return
	}

	var req model.CreatePrescriptionRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	var attachment io.Reader
	var filename string
	if fileHeader, err := c.FormFile("file"); err == nil {
		f, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse("failed to read attachment"))
			return
		}
		defer f.Close()
		attachment = f
		filename = fileHeader.Filename
	}

	p, tx, err := h.prescSvc.Create(c.Request.Context(), doctorID, &req, attachment, filename)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(gin.H{
		"prescription": p,
		"tx":           tx,
	}))
}

func (h *Handler) ListPrescriptions(c *gin.Context) {
	doctorID, ok := middleware.CallerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("missing authentication"))
		return
	}

	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid patient ID"))
		return
	}

	prescriptions, err := h.prescSvc.ListForDoctor(c.Request.Context(), doctorID, patientID)
	if err != nil {
		handler.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(prescriptions))
}

// GetRecommendation proxies the external recommendation service for a patient
// the doctor can access.
func (h *Handler) GetRecommendation(c *gin.Context) {
	doctorID, ok := middleware.CallerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("missing authentication"))
		return
	}

	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid patient ID"))
		return
	}

	// Reuse the prescription listing gate: it verifies the on-chain access
	// flag for this pair before anything is returned.
	if _, err := h.prescSvc.ListForDoctor(c.Request.Context(), doctorID, patientID); err != nil {
		handler.Error(c, err)
		return
	}

	recommendation, err := h.recommendCli.GetRecommendation(c.Request.Context(), patientID, string(model.RoleDoctor))
	if err != nil {
		c.JSON(http.StatusBadGateway, handler.NewErrorResponse("recommendation service unavailable"))
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(recommendation))
}
