package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/puchupala/hass-nature-remo/pkg/api/types"
	"github.com/puchupala/hass-nature-remo/pkg/device"
	"github.com/puchupala/hass-nature-remo/pkg/device/schema"
)

// ControlHandler handles device state control endpoints
type ControlHandler struct {
	controller device.Controller
	validator  *schema.Validator
}

// NewControlHandler creates a new control handler
func NewControlHandler(controller device.Controller, validator *schema.Validator) *ControlHandler {
	return &ControlHandler{controller: controller, validator: validator}
}

// GetState handles GET /devices/:id/state
// @Summary      Get device state
// @Description  Returns the assumed state of a device
// @Tags         devices
// @Produce      json
// @Param        id   path      string  true  "Appliance ID or device name"
// @Success      200  {object}  types.StateResponse
// @Failure      404  {object}  types.ErrorResponse  "Device not found"
// @Router       /devices/{id}/state [get]
func (h *ControlHandler) GetState(c *gin.Context) {
	ctx := c.Request.Context()

	d, err := h.controller.GetDevice(ctx, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	state, err := h.controller.GetDeviceState(ctx, d.ID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, types.StateResponse{
		Device:    d.Name,
		State:     state,
		Timestamp: time.Now(),
	})
}

// SetState handles POST /devices/:id/state
// @Summary      Set device state
// @Description  Sends the IR commands needed to reach the requested state. The payload is validated against the device's state schema, e.g. {"state": "ON"} for a light or {"source": "BS", "volume": "up"} for a TV.
// @Tags         devices
// @Accept       json
// @Produce      json
// @Param        id       path      string  true  "Appliance ID or device name"
// @Param        request  body      object  true  "State to set"
// @Success      200      {object}  types.StateResponse
// @Failure      400      {object}  types.ErrorResponse  "Invalid request"
// @Failure      404      {object}  types.ErrorResponse  "Device not found"
// @Failure      422      {object}  types.ErrorResponse  "Unsupported command"
// @Failure      429      {object}  types.ErrorResponse  "Nature Remo rate limit exceeded"
// @Failure      502      {object}  types.ErrorResponse  "Nature Remo error"
// @Failure      504      {object}  types.ErrorResponse  "Request timed out"
// @Router       /devices/{id}/state [post]
func (h *ControlHandler) SetState(c *gin.Context) {
	ctx := c.Request.Context()

	var req map[string]any
	if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
		return
	}

	d, err := h.controller.GetDevice(ctx, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	if err := h.validator.Validate(d.StateSchema, req); err != nil {
		writeError(c, err)
		return
	}

	state, err := h.controller.SetDeviceState(ctx, d.ID, req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, types.StateResponse{
		Device:    d.Name,
		State:     state,
		Timestamp: time.Now(),
	})
}
