package mcp

import "github.com/mark3labs/mcp-go/mcp"

const idDescription = "Appliance ID or device name (e.g. \"Bedroom Light\")"

// registerTools registers all MCP tools with the server
func (s *Server) registerTools() {
	// Health check
	s.mcpServer.AddTool(
		mcp.NewTool("get_health",
			mcp.WithDescription("Check the health of the service and whether the last Nature Remo cloud refresh succeeded"),
		),
		s.handleGetHealth,
	)

	// List devices
	s.mcpServer.AddTool(
		mcp.NewTool("list_devices",
			mcp.WithDescription("List all IR-controlled lights and TVs with their assumed state"),
		),
		s.handleListDevices,
	)

	// Get device
	s.mcpServer.AddTool(
		mcp.NewTool("get_device",
			mcp.WithDescription("Get detailed information about a device, including its state schema"),
			mcp.WithString("id",
				mcp.Required(),
				mcp.Description(idDescription),
			),
		),
		s.handleGetDevice,
	)

	// Get device state
	s.mcpServer.AddTool(
		mcp.NewTool("get_device_state",
			mcp.WithDescription("Get the assumed state of a device. IR devices cannot report state, so this is the last commanded state."),
			mcp.WithString("id",
				mcp.Required(),
				mcp.Description(idDescription),
			),
		),
		s.handleGetDeviceState,
	)

	// Set device state
	s.mcpServer.AddTool(
		mcp.NewTool("set_device_state",
			mcp.WithDescription("Set the state of a device. Properties are validated against the device's state schema."),
			mcp.WithString("id",
				mcp.Required(),
				mcp.Description(idDescription),
			),
			mcp.WithObject("state",
				mcp.Required(),
				mcp.Description("State properties to set (e.g. {\"state\": \"ON\"} or {\"source\": \"BS\", \"volume\": \"up\"})"),
			),
		),
		s.handleSetDeviceState,
	)

	// Turn on (convenience)
	s.mcpServer.AddTool(
		mcp.NewTool("turn_on",
			mcp.WithDescription("Turn on a light or TV"),
			mcp.WithString("id",
				mcp.Required(),
				mcp.Description(idDescription),
			),
		),
		s.handleTurnOn,
	)

	// Turn off (convenience)
	s.mcpServer.AddTool(
		mcp.NewTool("turn_off",
			mcp.WithDescription("Turn off a light or TV"),
			mcp.WithString("id",
				mcp.Required(),
				mcp.Description(idDescription),
			),
		),
		s.handleTurnOff,
	)

	// TV: select source
	s.mcpServer.AddTool(
		mcp.NewTool("select_source",
			mcp.WithDescription("Switch a TV to one of its input sources (see source_list in the device state)"),
			mcp.WithString("id",
				mcp.Required(),
				mcp.Description(idDescription),
			),
			mcp.WithString("source",
				mcp.Required(),
				mcp.Description("Source name, e.g. Terrestrial, BS, CS or Input"),
			),
		),
		s.handleSelectSource,
	)

	// TV: mute
	s.mcpServer.AddTool(
		mcp.NewTool("mute_volume",
			mcp.WithDescription("Mute or unmute a TV. Without the mute argument the mute state is toggled."),
			mcp.WithString("id",
				mcp.Required(),
				mcp.Description(idDescription),
			),
			mcp.WithBoolean("mute",
				mcp.Description("true to mute, false to unmute (optional)"),
			),
		),
		s.handleMuteVolume,
	)

	// TV: volume
	s.mcpServer.AddTool(
		mcp.NewTool("volume_step",
			mcp.WithDescription("Step a TV's volume up or down"),
			mcp.WithString("id",
				mcp.Required(),
				mcp.Description(idDescription),
			),
			mcp.WithString("direction",
				mcp.Required(),
				mcp.Enum("up", "down"),
				mcp.Description("Volume direction"),
			),
			mcp.WithNumber("steps",
				mcp.Description("Number of button presses (default 1, max 10)"),
			),
		),
		s.handleVolumeStep,
	)

	// TV: transport controls
	s.mcpServer.AddTool(
		mcp.NewTool("media_control",
			mcp.WithDescription("Send a transport command to a TV"),
			mcp.WithString("id",
				mcp.Required(),
				mcp.Description(idDescription),
			),
			mcp.WithString("command",
				mcp.Required(),
				mcp.Enum("play", "pause", "stop", "next", "previous"),
				mcp.Description("Transport command"),
			),
		),
		s.handleMediaControl,
	)

	// Refresh appliances
	s.mcpServer.AddTool(
		mcp.NewTool("refresh_devices",
			mcp.WithDescription("Re-read appliances from the Nature Remo cloud and set up any new lights or TVs"),
		),
		s.handleRefreshDevices,
	)
}
