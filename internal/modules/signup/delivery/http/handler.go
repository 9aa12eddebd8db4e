package http

import (
	"net/http"

	"anoa.com/bountyboard/internal/modules/signup/dto"
	signupService "anoa.com/bountyboard/internal/modules/signup/service"
	"anoa.com/bountyboard/pkg/response"
	"anoa.com/bountyboard/pkg/validator"
	"github.com/gin-gonic/gin"
)

type SignupHandler struct {
	service signupService.SignupService
}

func NewSignupHandler(service signupService.SignupService) *SignupHandler {
	return &SignupHandler{service: service}
}

func (h *SignupHandler) Signup(c *gin.Context) {
	var req dto.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}

	resp, err := h.service.Signup(c.Request.Context(), req, response.ClientIP(c))
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *SignupHandler) Verify(c *gin.Context) {
	resp, err := h.service.Verify(c.Request.Context(), c.Query("token"))
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
