package api

import (
	"net/http"

	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/Domenick1991/flightbooking/internal/logging"
	"github.com/Domenick1991/flightbooking/internal/service/company"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type CompanyHandler struct {
	service company.CompanyUseCase
	log     logrus.FieldLogger
}

func NewCompanyHandler(service company.CompanyUseCase, log logrus.FieldLogger) *CompanyHandler {
	if log == nil {
		log = logging.Discard()
	}
	return &CompanyHandler{service: service, log: log}
}

func (h *CompanyHandler) Register(router *gin.RouterGroup, auth *Authenticator) {
	router.GET("/company", h.get)
	router.POST("/company", auth.RequireUser(), auth.RequireAdmin(), h.save)
}

func (h *CompanyHandler) get(c *gin.Context) {
	info, err := h.service.Get(c.Request.Context())
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (h *CompanyHandler) save(c *gin.Context) {
	var req domain.CompanyInfo
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	info, err := h.service.Save(c.Request.Context(), req)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, info)
}
