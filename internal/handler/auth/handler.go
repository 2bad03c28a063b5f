package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/medichain/medichain-api/internal/handler"
	"github.com/medichain/medichain-api/internal/model"
	"github.com/medichain/medichain-api/internal/service/auth"
	"github.com/medichain/medichain-api/internal/service/registration"
)

type Handler struct {
	authSvc auth.AuthService
	regSvc  registration.RegistrationService
}

func NewHandler(authSvc auth.AuthService, regSvc registration.RegistrationService) *Handler {
	return &Handler{authSvc: authSvc, regSvc: regSvc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	auth := r.Group("/auth")
	{
		auth.POST("/register", h.Register)
		auth.POST("/login", h.Login)
	}
}

// Register creates a patient account. The call blocks until the identity is
// registered on-chain; a chain failure means no usable account.
func (h *Handler) Register(c *gin.Context) {
	var req model.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	meta := &model.RequestMeta{IP: c.ClientIP(), UserAgent: c.Request.UserAgent()}
	result, err := h.regSvc.RegisterSelf(c.Request.Context(), &req, meta)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(result))
}

func (h *Handler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	meta := &model.RequestMeta{IP: c.ClientIP(), UserAgent: c.Request.UserAgent()}
	result, err := h.authSvc.Login(c.Request.Context(), &req, meta)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(result))
}
