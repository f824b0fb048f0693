package v1

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"physio-server/services/physio-api/internal/domain/device"
	"physio-server/services/physio-api/internal/domain/user"
	"physio-server/services/physio-api/internal/infrastructure/auth"
	"physio-server/services/physio-api/internal/interfaces/httpserver/handlers"
	"physio-server/services/physio-api/internal/interfaces/httpserver/requests"
	"physio-server/services/physio-api/internal/interfaces/httpserver/responses"
)

type DeviceRoute struct {
	handler   *handlers.DeviceHandler
	streamer  *handlers.Streamer
	deviceKey gin.HandlerFunc
}

func NewDeviceRoute(handler *handlers.DeviceHandler, streamer *handlers.Streamer, deviceKey gin.HandlerFunc) *DeviceRoute {
	return &DeviceRoute{handler: handler, streamer: streamer, deviceKey: deviceKey}
}

// RegisterIngest registers the controller push endpoint.
func (route *DeviceRoute) RegisterIngest(router gin.IRouter) {
	router.POST("/devices/status", route.deviceKey, route.ingestStatus)
}

func (route *DeviceRoute) RegisterRouter(router gin.IRouter) {
	router.GET("/devices/presets", route.presets)

	devices := router.Group("/devices", auth.RequireRole(user.RolePatient))
	devices.GET("", route.list)
	devices.GET("/:kind", route.withKind(route.get))
	devices.POST("/:kind/start", route.withKind(route.start))
	devices.POST("/:kind/stop", route.withKind(route.stop))
	devices.POST("/:kind/emergency-stop", route.withKind(route.emergencyStop))
	devices.POST("/:kind/preset", route.withKind(route.selectPreset))
	devices.GET("/:kind/stream", route.withKind(route.stream))
}

type kindHandler func(c *gin.Context, patientID string, kind device.Kind)

func (route *DeviceRoute) withKind(next kindHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		kind, err := handlers.ParseKind(c.Request.Context(), c.Param("kind"))
		if err != nil {
			responses.HandleError(c, err, "invalid device")
			return
		}
		next(c, auth.CurrentUserID(c), kind)
	}
}

// presets godoc
// @Summary      Preset catalogue
// @Description  Exercise programmes per device.
// @Tags         Devices
// @Produce      json
// @Success      200 {object} responses.PresetCatalogResponse
// @Security     BearerAuth
// @Router       /v1/devices/presets [get]
func (route *DeviceRoute) presets(c *gin.Context) {
	c.JSON(http.StatusOK, route.handler.Presets())
}

// list godoc
// @Summary      My devices
// @Description  State of every device; devices never used read as idle.
// @Tags         Devices
// @Produce      json
// @Success      200 {object} responses.DeviceSessionListResponse
// @Failure      403 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /v1/devices [get]
func (route *DeviceRoute) list(c *gin.Context) {
	resp, err := route.handler.List(c.Request.Context(), auth.CurrentUserID(c))
	if err != nil {
		responses.HandleError(c, err, "failed to list devices")
		return
	}
	c.JSON(http.StatusOK, resp)
}

// get godoc
// @Summary      Device state
// @Tags         Devices
// @Produce      json
// @Param        kind path string true "glove or exoskeleton"
// @Success      200 {object} responses.DeviceSessionResponse
// @Failure      400 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /v1/devices/{kind} [get]
func (route *DeviceRoute) get(c *gin.Context, patientID string, kind device.Kind) {
	resp, err := route.handler.Get(c.Request.Context(), patientID, kind)
	if err != nil {
		responses.HandleError(c, err, "failed to load device")
		return
	}
	c.JSON(http.StatusOK, resp)
}

// start godoc
// @Summary      Start an exercise
// @Tags         Devices
// @Accept       json
// @Produce      json
// @Param        kind path string true "glove or exoskeleton"
// @Param        request body requests.StartDeviceRequest false "Preset"
// @Success      200 {object} responses.DeviceSessionResponse
// @Failure      400 {object} responses.ErrorResponse
// @Failure      409 {object} responses.ErrorResponse
// @Failure      503 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /v1/devices/{kind}/start [post]
func (route *DeviceRoute) start(c *gin.Context, patientID string, kind device.Kind) {
	var req requests.StartDeviceRequest
	if c.Request.ContentLength != 0 {
		if err := requests.BindJSON(c, &req); err != nil {
			responses.HandleError(c, err, "invalid start request")
			return
		}
	}
	resp, err := route.handler.Start(c.Request.Context(), patientID, kind, req)
	if err != nil {
		responses.HandleError(c, err, "failed to start device")
		return
	}
	c.JSON(http.StatusOK, resp)
}

// stop godoc
// @Summary      Stop the exercise
// @Tags         Devices
// @Produce      json
// @Param        kind path string true "glove or exoskeleton"
// @Success      200 {object} responses.DeviceSessionResponse
// @Failure      503 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /v1/devices/{kind}/stop [post]
func (route *DeviceRoute) stop(c *gin.Context, patientID string, kind device.Kind) {
	resp, err := route.handler.Stop(c.Request.Context(), patientID, kind)
	if err != nil {
		responses.HandleError(c, err, "failed to stop device")
		return
	}
	c.JSON(http.StatusOK, resp)
}

// emergencyStop godoc
// @Summary      Emergency stop
// @Description  Always accepted; the state is forced even when the controller is unreachable.
// @Tags         Devices
// @Produce      json
// @Param        kind path string true "glove or exoskeleton"
// @Success      200 {object} responses.DeviceSessionResponse
// @Security     BearerAuth
// @Router       /v1/devices/{kind}/emergency-stop [post]
func (route *DeviceRoute) emergencyStop(c *gin.Context, patientID string, kind device.Kind) {
	resp, err := route.handler.EmergencyStop(c.Request.Context(), patientID, kind)
	if err != nil {
		responses.HandleError(c, err, "failed to emergency stop device")
		return
	}
	c.JSON(http.StatusOK, resp)
}

// selectPreset godoc
// @Summary      Select a preset
// @Tags         Devices
// @Accept       json
// @Produce      json
// @Param        kind path string true "glove or exoskeleton"
// @Param        request body requests.SelectPresetRequest true "Preset"
// @Success      200 {object} responses.DeviceSessionResponse
// @Failure      400 {object} responses.ErrorResponse
// @Failure      409 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /v1/devices/{kind}/preset [post]
func (route *DeviceRoute) selectPreset(c *gin.Context, patientID string, kind device.Kind) {
	var req requests.SelectPresetRequest
	if err := requests.BindJSON(c, &req); err != nil {
		responses.HandleError(c, err, "invalid preset request")
		return
	}
	resp, err := route.handler.SelectPreset(c.Request.Context(), patientID, kind, req)
	if err != nil {
		responses.HandleError(c, err, "failed to select preset")
		return
	}
	c.JSON(http.StatusOK, resp)
}

// stream godoc
// @Summary      Stream device state
// @Description  WebSocket. Sends the session state now and after every change.
// @Tags         Devices
// @Param        kind path string true "glove or exoskeleton"
// @Param        access_token query string false "Bearer token for browsers"
// @Success      101 {object} handlers.StreamFrame
// @Security     BearerAuth
// @Router       /v1/devices/{kind}/stream [get]
func (route *DeviceRoute) stream(c *gin.Context, patientID string, kind device.Kind) {
	handlers.Stream(route.streamer, c, "device",
		func(ctx context.Context) (<-chan *device.Session, error) {
			return route.handler.Subscribe(ctx, patientID, kind)
		},
		func(sess *device.Session) any {
			return responses.NewDeviceSessionResponse(sess)
		},
		nil,
	)
}

// ingestStatus godoc
// @Summary      Controller status report
// @Description  Lets a controller without a WebSocket link push status over HTTP.
// @Tags         Devices
// @Accept       json
// @Produce      json
// @Param        X-Device-Key header string true "Controller key"
// @Param        request body requests.DeviceStatusRequest true "Status report"
// @Success      200 {object} responses.DeviceSessionResponse
// @Failure      400 {object} responses.ErrorResponse
// @Failure      401 {object} responses.ErrorResponse
// @Router       /v1/devices/status [post]
func (route *DeviceRoute) ingestStatus(c *gin.Context) {
	var req requests.DeviceStatusRequest
	if err := requests.BindJSON(c, &req); err != nil {
		responses.HandleError(c, err, "invalid status report")
		return
	}
	resp, err := route.handler.ApplyStatus(c.Request.Context(), req)
	if err != nil {
		responses.HandleError(c, err, "failed to apply status")
		return
	}
	c.JSON(http.StatusOK, resp)
}
