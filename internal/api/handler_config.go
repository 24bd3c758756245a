package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"investmon/internal/service"
	"investmon/internal/settings"
)

type ConfigHandler struct {
	svc *service.Service
}

func NewConfigHandler(svc *service.Service) *ConfigHandler {
	return &ConfigHandler{svc: svc}
}

// GetConfig GET /api/config
// Reports configured/unconfigured per provider. Credential values are
// never echoed back.
func (h *ConfigHandler) GetConfig(c *gin.Context) {
	providers, err := h.svc.Providers(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, ConfigResponse{Providers: providers})
}

// SetConfig POST /api/config
func (h *ConfigHandler) SetConfig(c *gin.Context) {
	var req ConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErrorWithDetails(c, http.StatusBadRequest, ErrInvalidRequest, err.Error())
		return
	}

	if err := h.svc.SetProviders(c.Request.Context(), req); err != nil {
		respondErrorWithDetails(c, http.StatusBadRequest, ErrInvalidRequest, err.Error())
		return
	}

	providers, err := h.svc.Providers(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, ConfigResponse{Providers: providers})
}

// GetStyle GET /api/settings/style
// An absent blob yields the defaults, never an error.
func (h *ConfigHandler) GetStyle(c *gin.Context) {
	style, err := h.svc.Style(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, StyleResponse{Settings: style})
}

// SetStyle POST /api/settings/style
func (h *ConfigHandler) SetStyle(c *gin.Context) {
	var req settings.StyleSettings
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErrorWithDetails(c, http.StatusBadRequest, ErrInvalidRequest, err.Error())
		return
	}

	if err := h.svc.SetStyle(c.Request.Context(), req); err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, StyleResponse{Settings: req})
}
