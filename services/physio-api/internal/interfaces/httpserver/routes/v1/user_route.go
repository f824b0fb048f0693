package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"physio-server/services/physio-api/internal/domain/user"
	"physio-server/services/physio-api/internal/infrastructure/auth"
	"physio-server/services/physio-api/internal/interfaces/httpserver/handlers"
	"physio-server/services/physio-api/internal/interfaces/httpserver/requests"
	"physio-server/services/physio-api/internal/interfaces/httpserver/responses"
)

type UserRoute struct {
	handler *handlers.UserHandler
}

func NewUserRoute(handler *handlers.UserHandler) *UserRoute {
	return &UserRoute{handler: handler}
}

func (route *UserRoute) RegisterRouter(router gin.IRouter) {
	router.GET("/me", route.me)
	router.GET("/users/search", route.search)
	router.GET("/users/:id", route.getUser)

	doctors := router.Group("/doctors/me", auth.RequireRole(user.RoleDoctor))
	doctors.POST("/patients", route.assignPatient)
	doctors.GET("/patients", route.listPatients)
	doctors.GET("/dashboard", route.dashboard)

	router.GET("/patients/me/exercises", auth.RequireRole(user.RolePatient), route.exercises)
	router.GET("/patients/:id/devices", auth.RequireRole(user.RoleDoctor), route.patientDevices)
}

// me godoc
// @Summary      Current profile
// @Description  Returns the caller's profile with the doctor or patient document.
// @Tags         Users
// @Produce      json
// @Success      200 {object} responses.ProfileResponse
// @Failure      401 {object} responses.ErrorResponse
// @Failure      404 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /v1/me [get]
func (route *UserRoute) me(c *gin.Context) {
	resp, err := route.handler.Me(c.Request.Context(), auth.CurrentUserID(c))
	if err != nil {
		responses.HandleError(c, err, "failed to load profile")
		return
	}
	c.JSON(http.StatusOK, resp)
}

// search godoc
// @Summary      Search users
// @Description  Active users of the opposite role whose name or email contains q, sorted by name, at most 10.
// @Tags         Users
// @Produce      json
// @Param        q query string true "Search text"
// @Success      200 {object} responses.UserListResponse
// @Failure      401 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /v1/users/search [get]
func (route *UserRoute) search(c *gin.Context) {
	resp, err := route.handler.Search(c.Request.Context(), c.Query("q"), auth.CurrentRole(c))
	if err != nil {
		responses.HandleError(c, err, "failed to search users")
		return
	}
	c.JSON(http.StatusOK, resp)
}

// getUser godoc
// @Summary      Get a profile
// @Tags         Users
// @Produce      json
// @Param        id path string true "User ID"
// @Success      200 {object} responses.UserResponse
// @Failure      404 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /v1/users/{id} [get]
func (route *UserRoute) getUser(c *gin.Context) {
	resp, err := route.handler.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		responses.HandleError(c, err, "failed to load user")
		return
	}
	c.JSON(http.StatusOK, resp)
}

// assignPatient godoc
// @Summary      Assign a patient
// @Tags         Doctors
// @Accept       json
// @Produce      json
// @Param        request body requests.AssignPatientRequest true "Patient"
// @Success      200 {object} responses.StatusResponse
// @Failure      400 {object} responses.ErrorResponse
// @Failure      403 {object} responses.ErrorResponse
// @Failure      404 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /v1/doctors/me/patients [post]
func (route *UserRoute) assignPatient(c *gin.Context) {
	var req requests.AssignPatientRequest
	if err := requests.BindJSON(c, &req); err != nil {
		responses.HandleError(c, err, "invalid assign request")
		return
	}
	if err := route.handler.AssignPatient(c.Request.Context(), auth.CurrentUserID(c), req.PatientID); err != nil {
		responses.HandleError(c, err, "failed to assign patient")
		return
	}
	c.JSON(http.StatusOK, responses.OK)
}

// listPatients godoc
// @Summary      List my patients
// @Tags         Doctors
// @Produce      json
// @Success      200 {object} responses.UserListResponse
// @Failure      403 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /v1/doctors/me/patients [get]
func (route *UserRoute) listPatients(c *gin.Context) {
	resp, err := route.handler.DoctorPatients(c.Request.Context(), auth.CurrentUserID(c))
	if err != nil {
		responses.HandleError(c, err, "failed to list patients")
		return
	}
	c.JSON(http.StatusOK, resp)
}

// dashboard godoc
// @Summary      Doctor dashboard
// @Description  Assigned patients with their exercise progress.
// @Tags         Doctors
// @Produce      json
// @Success      200 {object} responses.DashboardResponse
// @Failure      403 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /v1/doctors/me/dashboard [get]
func (route *UserRoute) dashboard(c *gin.Context) {
	resp, err := route.handler.Dashboard(c.Request.Context(), auth.CurrentUserID(c))
	if err != nil {
		responses.HandleError(c, err, "failed to load dashboard")
		return
	}
	c.JSON(http.StatusOK, resp)
}

// exercises godoc
// @Summary      My exercise history
// @Tags         Patients
// @Produce      json
// @Success      200 {object} responses.ExerciseListResponse
// @Failure      403 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /v1/patients/me/exercises [get]
func (route *UserRoute) exercises(c *gin.Context) {
	resp, err := route.handler.PatientExercises(c.Request.Context(), auth.CurrentUserID(c))
	if err != nil {
		responses.HandleError(c, err, "failed to load exercises")
		return
	}
	c.JSON(http.StatusOK, resp)
}

// patientDevices godoc
// @Summary      Devices of an assigned patient
// @Tags         Doctors
// @Produce      json
// @Param        id path string true "Patient ID"
// @Success      200 {object} responses.DeviceSessionListResponse
// @Failure      403 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /v1/patients/{id}/devices [get]
func (route *UserRoute) patientDevices(c *gin.Context) {
	resp, err := route.handler.PatientDevices(c.Request.Context(), auth.CurrentUserID(c), c.Param("id"))
	if err != nil {
		responses.HandleError(c, err, "failed to load patient devices")
		return
	}
	c.JSON(http.StatusOK, resp)
}
