package responses

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"physio-server/services/physio-api/internal/utils/platformerrors"
)

// HandleError logs err once and writes the JSON error envelope. Errors that
// are not platform errors become internal errors carrying message.
func HandleError(c *gin.Context, err error, message string) {
	logger := log.With().Str("path", c.Request.URL.Path).Logger()

	if platformerrors.GetPlatformError(err) == nil && err != nil {
		err = platformerrors.NewError(c.Request.Context(), platformerrors.LayerRoute, platformerrors.ErrorTypeInternal, message, err, "")
	}
	platformerrors.WriteError(c, err, logger)
}

// HandleNewError writes a typed error response for route-level failures.
func HandleNewError(c *gin.Context, errorType platformerrors.ErrorType, message string) {
	HandleError(c, platformerrors.NewError(c.Request.Context(), platformerrors.LayerRoute, errorType, message, nil, ""), message)
}
