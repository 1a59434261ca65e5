package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/puchupala/hass-nature-remo/pkg/api/types"
	"github.com/puchupala/hass-nature-remo/pkg/device"
)

// DevicesHandler handles device listing endpoints
type DevicesHandler struct {
	controller device.Controller
}

// NewDevicesHandler creates a new devices handler
func NewDevicesHandler(controller device.Controller) *DevicesHandler {
	return &DevicesHandler{controller: controller}
}

// ListDevices handles GET /devices
// @Summary      List all devices
// @Description  Returns every light and TV set up from Nature Remo appliances, with assumed state
// @Tags         devices
// @Produce      json
// @Success      200  {object}  types.ListDevicesResponse
// @Failure      500  {object}  types.ErrorResponse  "Controller error"
// @Router       /devices [get]
func (h *DevicesHandler) ListDevices(c *gin.Context) {
	ctx := c.Request.Context()

	devices, err := h.controller.ListDevices(ctx)
	if err != nil {
		writeError(c, err)
		return
	}

	result := make([]types.DeviceWithState, 0, len(devices))
	for i := range devices {
		// State is best effort
		state, _ := h.controller.GetDeviceState(ctx, devices[i].ID)
		result = append(result, toDeviceWithState(&devices[i], state))
	}

	c.JSON(http.StatusOK, types.ListDevicesResponse{
		Devices: result,
		Count:   len(result),
	})
}

// GetDevice handles GET /devices/:id
// @Summary      Get device details
// @Description  Returns details for a device by appliance ID or name
// @Tags         devices
// @Produce      json
// @Param        id   path      string  true  "Appliance ID or device name"
// @Success      200  {object}  types.DeviceResponse
// @Failure      404  {object}  types.ErrorResponse  "Device not found"
// @Router       /devices/{id} [get]
func (h *DevicesHandler) GetDevice(c *gin.Context) {
	ctx := c.Request.Context()

	d, err := h.controller.GetDevice(ctx, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	state, _ := h.controller.GetDeviceState(ctx, d.ID)
	c.JSON(http.StatusOK, types.DeviceResponse{
		Device: toDeviceWithState(d, state),
	})
}

// Refresh handles POST /devices/refresh
// @Summary      Refresh appliances
// @Description  Re-reads appliances from the Nature Remo cloud and sets up newly added ones
// @Tags         devices
// @Produce      json
// @Success      200  {object}  types.RefreshResponse
// @Failure      503  {object}  types.ErrorResponse  "Cloud not reachable"
// @Failure      504  {object}  types.ErrorResponse  "Request timed out"
// @Router       /devices/refresh [post]
func (h *DevicesHandler) Refresh(c *gin.Context) {
	ctx := c.Request.Context()

	if err := h.controller.Refresh(ctx); err != nil {
		writeError(c, err)
		return
	}

	devices, err := h.controller.ListDevices(ctx)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, types.RefreshResponse{
		Status: "refreshed",
		Count:  len(devices),
	})
}
