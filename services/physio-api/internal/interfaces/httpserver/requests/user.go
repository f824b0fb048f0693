package requests

// AssignPatientRequest links a patient to the calling doctor.
type AssignPatientRequest struct {
	PatientID string `json:"patient_id" validate:"required,max=128"`
}
