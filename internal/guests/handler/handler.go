package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"guest_registry_backend/internal/guests/service"
	"guest_registry_backend/internal/guests/transport"
	"guest_registry_backend/platform/apperr"
	"guest_registry_backend/platform/httpkit"
)

const welcomeMessage = "welcome"

// Handler handles HTTP requests for guests.
type Handler struct {
	svc *service.Service
}

// New creates a new guests handler.
func New(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Welcome answers the root path.
// GET /
func (h *Handler) Welcome(c *gin.Context) {
	httpkit.OK(c, transport.WelcomeResponse{Message: welcomeMessage})
}

// Add registers a guest.
// POST /add-guest
func (h *Handler) Add(c *gin.Context) {
	var req transport.AddGuestRequest
	if !decodeBody(c, &req) {
		return
	}

	result, err := h.svc.Add(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Edit updates a guest found by its current phone.
// POST /edit-guest
func (h *Handler) Edit(c *gin.Context) {
	var req transport.EditGuestRequest
	if !decodeBody(c, &req) {
		return
	}

	result, err := h.svc.Edit(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// GetByEmail lists guests by email.
// GET /get-guest-by-email?email=
func (h *Handler) GetByEmail(c *gin.Context) {
	result, err := h.svc.GetByEmail(c.Request.Context(), transport.QueryValue(c.GetQuery("email")))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// GetByPhone lists guests by phone number given without "+".
// GET /get-guest-by-phone?number=
func (h *Handler) GetByPhone(c *gin.Context) {
	result, err := h.svc.GetByPhone(c.Request.Context(), transport.QueryValue(c.GetQuery("number")))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// GetByID retrieves a single guest.
// GET /get-guest-by-id/:id
func (h *Handler) GetByID(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	result, err := h.svc.GetByID(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// DeleteByPhone removes a guest by phone number given without "+".
// DELETE /delete-guest-by-phone?number=
func (h *Handler) DeleteByPhone(c *gin.Context) {
	result, err := h.svc.DeleteByPhone(c.Request.Context(), transport.QueryValue(c.GetQuery("number")))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// DeleteByID removes a guest by id.
// DELETE /delete-guest/:id
func (h *Handler) DeleteByID(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	result, err := h.svc.DeleteByID(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func decodeBody(c *gin.Context, dst interface{}) bool {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, httpkit.MaxBodyBytes)
	body, err := c.GetRawData()
	if err == nil {
		err = transport.DecodeObject(body, dst)
	}
	if err != nil {
		httpkit.HandleError(c, apperr.BadRequest(service.MsgInvalidBody))
		return false
	}
	return true
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		httpkit.Error(c, http.StatusBadRequest, service.MsgInvalidID, nil)
		return 0, false
	}
	return id, true
}
