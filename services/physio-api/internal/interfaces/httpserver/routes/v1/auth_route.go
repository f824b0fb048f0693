package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"physio-server/services/physio-api/internal/infrastructure/auth"
	"physio-server/services/physio-api/internal/interfaces/httpserver/handlers"
	"physio-server/services/physio-api/internal/interfaces/httpserver/requests"
	"physio-server/services/physio-api/internal/interfaces/httpserver/responses"
)

type AuthRoute struct {
	handler     *handlers.AuthHandler
	requireAuth gin.HandlerFunc
}

func NewAuthRoute(handler *handlers.AuthHandler, requireAuth gin.HandlerFunc) *AuthRoute {
	return &AuthRoute{handler: handler, requireAuth: requireAuth}
}

// RegisterPublic registers the endpoints that hand out tokens.
func (route *AuthRoute) RegisterPublic(router gin.IRouter) {
	group := router.Group("/auth")
	group.POST("/signup", route.signUp)
	group.POST("/signin", route.signIn)
	group.POST("/oidc", route.signInWithIDToken)
}

func (route *AuthRoute) RegisterRouter(router gin.IRouter) {
	router.POST("/auth/signout", route.signOut)
}

// signUp godoc
// @Summary      Create an account
// @Description  Creates the account, the profile and its role document, and returns a session token.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        request body requests.SignUpRequest true "Account details"
// @Success      201 {object} responses.SessionResponse
// @Failure      400 {object} responses.ErrorResponse
// @Failure      409 {object} responses.ErrorResponse
// @Router       /v1/auth/signup [post]
func (route *AuthRoute) signUp(c *gin.Context) {
	var req requests.SignUpRequest
	if err := requests.BindJSON(c, &req); err != nil {
		responses.HandleError(c, err, "invalid sign-up request")
		return
	}

	resp, err := route.handler.SignUp(c.Request.Context(), req)
	if err != nil {
		responses.HandleError(c, err, "failed to sign up")
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// signIn godoc
// @Summary      Sign in with email and password
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        request body requests.SignInRequest true "Credentials"
// @Success      200 {object} responses.SessionResponse
// @Failure      400 {object} responses.ErrorResponse
// @Failure      401 {object} responses.ErrorResponse
// @Router       /v1/auth/signin [post]
func (route *AuthRoute) signIn(c *gin.Context) {
	var req requests.SignInRequest
	if err := requests.BindJSON(c, &req); err != nil {
		responses.HandleError(c, err, "invalid sign-in request")
		return
	}

	resp, err := route.handler.SignIn(c.Request.Context(), req)
	if err != nil {
		responses.HandleError(c, err, "failed to sign in")
		return
	}
	c.JSON(http.StatusOK, resp)
}

// signInWithIDToken godoc
// @Summary      Sign in with an external identity token
// @Description  Verifies an OIDC id token. First-time users get a patient profile.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        request body requests.OIDCSignInRequest true "Identity token"
// @Success      200 {object} responses.SessionResponse
// @Failure      401 {object} responses.ErrorResponse
// @Failure      501 {object} responses.ErrorResponse
// @Router       /v1/auth/oidc [post]
func (route *AuthRoute) signInWithIDToken(c *gin.Context) {
	var req requests.OIDCSignInRequest
	if err := requests.BindJSON(c, &req); err != nil {
		responses.HandleError(c, err, "invalid sign-in request")
		return
	}

	resp, err := route.handler.SignInWithIDToken(c.Request.Context(), req)
	if err != nil {
		responses.HandleError(c, err, "failed to sign in")
		return
	}
	status := http.StatusOK
	if resp.Created {
		status = http.StatusCreated
	}
	c.JSON(status, resp)
}

// signOut godoc
// @Summary      Sign out
// @Description  Revokes the bearer token.
// @Tags         Auth
// @Produce      json
// @Success      200 {object} responses.StatusResponse
// @Failure      401 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /v1/auth/signout [post]
func (route *AuthRoute) signOut(c *gin.Context) {
	if err := route.handler.SignOut(c.Request.Context(), auth.CurrentToken(c)); err != nil {
		responses.HandleError(c, err, "failed to sign out")
		return
	}
	c.JSON(http.StatusOK, responses.OK)
}
