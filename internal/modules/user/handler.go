package user

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/healthmate/core/internal/middleware"
	"github.com/healthmate/core/internal/pkg/response"
)

// Handler exposes the account endpoints.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/users")
	g.POST("/register", h.register)
	g.POST("/verify-otp", h.verifyOTP)
	g.POST("/resend-otp", h.resendOTP)
	g.POST("/login", h.login)
	g.POST("/forget-password", h.forgetPassword)
	g.POST("/reset-password", h.resetPassword)
	g.GET("/me", authMW, h.me)
}

func (h *Handler) register(c *gin.Context) {
	var dto RegisterDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	user, err := h.svc.Register(c.Request.Context(), dto)
	if err != nil {
		switch {
		case errors.Is(err, ErrEmailTaken), errors.Is(err, ErrCNICTaken):
			response.Conflict(c, err.Error())
		default:
			response.InternalError(c, err)
		}
		return
	}
	response.Created(c, gin.H{
		"user":    user,
		"message": "Verification code sent to your email",
	})
}

func (h *Handler) verifyOTP(c *gin.Context) {
	var dto VerifyOTPDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.svc.VerifyOTP(c.Request.Context(), dto)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound), errors.Is(err, ErrBadOTP):
			response.BadRequest(c, "Invalid verification code")
		default:
			response.InternalError(c, err)
		}
		return
	}
	response.OK(c, result)
}

func (h *Handler) resendOTP(c *gin.Context) {
	var dto EmailDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	err := h.svc.ResendOTP(c.Request.Context(), dto.Email)
	switch {
	case errors.Is(err, ErrThrottled):
		response.TooManyRequests(c, err.Error())
	case errors.Is(err, ErrNotFound):
		response.NotFoundMsg(c, "Account not found")
	case err != nil:
		response.InternalError(c, err)
	default:
		response.OK(c, gin.H{"message": "Verification code sent"})
	}
}

func (h *Handler) login(c *gin.Context) {
	var dto LoginDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.svc.Login(c.Request.Context(), dto)
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		response.UnauthorizedMsg(c, err.Error())
	case errors.Is(err, ErrNotVerified):
		response.ForbiddenMsg(c, "Verify your email before logging in")
	case err != nil:
		response.InternalError(c, err)
	default:
		response.OK(c, result)
	}
}

func (h *Handler) forgetPassword(c *gin.Context) {
	var dto EmailDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.svc.ForgetPassword(c.Request.Context(), dto.Email); err != nil {
		response.InternalError(c, err)
		return
	}
	// same answer whether or not the account exists
	response.OK(c, gin.H{"message": "If that email is registered, a reset link is on its way"})
}

func (h *Handler) resetPassword(c *gin.Context) {
	var dto ResetPasswordDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	err := h.svc.ResetPassword(c.Request.Context(), dto)
	switch {
	case errors.Is(err, ErrBadResetToken), errors.Is(err, ErrNotFound):
		response.BadRequest(c, "Invalid or expired reset token")
	case err != nil:
		response.InternalError(c, err)
	default:
		response.OK(c, gin.H{"message": "Password updated"})
	}
}

func (h *Handler) me(c *gin.Context) {
	user, err := h.svc.Me(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, user)
}
