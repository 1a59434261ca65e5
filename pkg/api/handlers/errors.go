package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/puchupala/hass-nature-remo/pkg/api/types"
	"github.com/puchupala/hass-nature-remo/pkg/device"
	"github.com/puchupala/hass-nature-remo/pkg/device/schema"
)

// writeError maps controller errors to HTTP responses.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, device.ErrNotFound):
		c.JSON(http.StatusNotFound, types.ErrorResponse{
			Error:   "not_found",
			Message: "Device not found",
		})
	case errors.Is(err, device.ErrValidation):
		resp := types.ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		}
		var verr *schema.Error
		if errors.As(err, &verr) {
			resp.Properties = verr.Properties
		}
		c.JSON(http.StatusBadRequest, resp)
	case errors.Is(err, device.ErrUnsupported):
		c.JSON(http.StatusUnprocessableEntity, types.ErrorResponse{
			Error:   "unsupported",
			Message: err.Error(),
		})
	case errors.Is(err, device.ErrNotConnected):
		c.JSON(http.StatusServiceUnavailable, types.ErrorResponse{
			Error:   "controller_disconnected",
			Message: err.Error(),
		})
	case errors.Is(err, device.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, types.ErrorResponse{
			Error:   "rate_limited",
			Message: err.Error(),
		})
	case errors.Is(err, device.ErrTimeout):
		c.JSON(http.StatusGatewayTimeout, types.ErrorResponse{
			Error:   "timeout",
			Message: "Request timed out waiting for Nature Remo",
		})
	default:
		c.JSON(http.StatusBadGateway, types.ErrorResponse{
			Error:   "device_error",
			Message: err.Error(),
		})
	}
}

func toDeviceWithState(d *device.Device, state device.DeviceState) types.DeviceWithState {
	return types.DeviceWithState{
		ID:           d.ID,
		Name:         d.Name,
		Type:         d.Type,
		Protocol:     d.Protocol,
		Manufacturer: d.Manufacturer,
		Model:        d.Model,
		AssumedState: d.AssumedState,
		StateSchema:  d.StateSchema,
		State:        state,
	}
}
