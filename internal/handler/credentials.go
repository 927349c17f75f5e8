package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/haatos/conveyor/internal/service"
)

func SetupCredentialRoutes(g *echo.Group, credentialService *service.CredentialService) {
	h := NewCredentialHandler(credentialService)
	credentials := g.Group("/api/credentials")
	credentials.GET("", h.GetCredentials)
	credentials.POST("", h.PostCredential)
	credentials.DELETE("/:credential_id", h.DeleteCredential)
}

type CredentialHandler struct {
	credentialService *service.CredentialService
}

func NewCredentialHandler(credentialService *service.CredentialService) *CredentialHandler {
	return &CredentialHandler{credentialService: credentialService}
}

type credentialListing struct {
	CredentialID int64  `json:"credential_id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
}

func (h *CredentialHandler) GetCredentials(c echo.Context) error {
	credentials, err := h.credentialService.ListCredentials(c.Request().Context())
	if err != nil {
		return newError(err, http.StatusInternalServerError, "unable to list credentials")
	}
	// secrets never leave the server
	listings := make([]credentialListing, 0, len(credentials))
	for _, cr := range credentials {
		listings = append(listings, credentialListing{
			CredentialID: cr.CredentialID,
			Name:         cr.Name,
			Description:  cr.Description,
		})
	}
	return c.JSON(http.StatusOK, listings)
}

func (h *CredentialHandler) PostCredential(c echo.Context) error {
	params := new(CredentialParams)
	if err := c.Bind(params); err != nil {
		return newError(err, http.StatusBadRequest, "invalid credential parameters")
	}
	if params.Name == "" || params.Secret == "" {
		return newError(nil, http.StatusBadRequest, "name and secret are required")
	}

	cr, err := h.credentialService.CreateCredential(
		c.Request().Context(),
		params.Name,
		params.Description,
		params.Secret,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return newError(err, http.StatusConflict, "credential name already in use")
		}
		return newError(err, http.StatusInternalServerError, "unable to create credential")
	}
	return c.JSON(http.StatusCreated, credentialListing{
		CredentialID: cr.CredentialID,
		Name:         cr.Name,
		Description:  cr.Description,
	})
}

func (h *CredentialHandler) DeleteCredential(c echo.Context) error {
	params := new(CredentialParams)
	if err := c.Bind(params); err != nil {
		return newError(err, http.StatusBadRequest, "invalid credential id")
	}
	if err := h.credentialService.DeleteCredential(
		c.Request().Context(), params.CredentialID,
	); err != nil {
		return newError(err, http.StatusInternalServerError, "unable to delete credential")
	}
	return c.NoContent(http.StatusNoContent)
}
