package handlers

import (
	"context"

	"physio-server/services/physio-api/internal/domain/dashboard"
	"physio-server/services/physio-api/internal/domain/device"
	"physio-server/services/physio-api/internal/domain/user"
	"physio-server/services/physio-api/internal/interfaces/httpserver/responses"
	"physio-server/services/physio-api/internal/utils/platformerrors"
)

// UserHandler serves profiles, search and the doctor/patient views.
type UserHandler struct {
	users     *user.Service
	dashboard *dashboard.Service
	devices   *device.Service
}

func NewUserHandler(users *user.Service, dashboardService *dashboard.Service, devices *device.Service) *UserHandler {
	return &UserHandler{
		users:     users,
		dashboard: dashboardService,
		devices:   devices,
	}
}

// Me returns the caller's profile with their role document.
func (h *UserHandler) Me(ctx context.Context, userID string) (*responses.ProfileResponse, error) {
	u, err := h.users.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	data, err := h.users.GetRoleSpecificData(ctx, u.ID, u.Role)
	if err != nil {
		return nil, err
	}
	return responses.NewProfileResponse(u, data), nil
}

func (h *UserHandler) GetUser(ctx context.Context, id string) (*responses.UserResponse, error) {
	u, err := h.users.GetProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	return responses.NewUserResponse(u), nil
}

func (h *UserHandler) Search(ctx context.Context, query string, role user.Role) (*responses.UserListResponse, error) {
	users, err := h.users.SearchUsers(ctx, query, role)
	if err != nil {
		return nil, err
	}
	return responses.NewUserListResponse(users), nil
}

func (h *UserHandler) AssignPatient(ctx context.Context, doctorID, patientID string) error {
	return h.users.AssignPatient(ctx, doctorID, patientID)
}

func (h *UserHandler) DoctorPatients(ctx context.Context, doctorID string) (*responses.UserListResponse, error) {
	patients, err := h.users.GetDoctorPatients(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	return responses.NewUserListResponse(patients), nil
}

func (h *UserHandler) Dashboard(ctx context.Context, doctorID string) (*responses.DashboardResponse, error) {
	rows, err := h.dashboard.DoctorDashboard(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	return responses.NewDashboardResponse(rows), nil
}

func (h *UserHandler) PatientExercises(ctx context.Context, patientID string) (*responses.ExerciseListResponse, error) {
	records, err := h.users.GetPatientExercises(ctx, patientID)
	if err != nil {
		return nil, err
	}
	return responses.NewExerciseListResponse(records), nil
}

// PatientDevices lets a doctor look at the devices of an assigned patient.
func (h *UserHandler) PatientDevices(ctx context.Context, doctorID, patientID string) (*responses.DeviceSessionListResponse, error) {
	assigned, err := h.users.IsDoctorOf(ctx, doctorID, patientID)
	if err != nil {
		return nil, err
	}
	if !assigned {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerHandler, platformerrors.ErrorTypeForbidden, "patient is not assigned to you", nil, "")
	}
	sessions, err := h.devices.List(ctx, patientID)
	if err != nil {
		return nil, err
	}
	return responses.NewDeviceSessionListResponse(sessions), nil
}
