package requests

// SignUpRequest creates an account and its profile.
type SignUpRequest struct {
	Email          string `json:"email" validate:"required,email,max=254"`
	Password       string `json:"password" validate:"required,min=8,max=72"`
	FullName       string `json:"full_name" validate:"required,max=200"`
	Role           string `json:"role" validate:"required,oneof=patient doctor"`
	LicenseNumber  string `json:"license_number" validate:"required_if=Role doctor,max=64"`
	Specialization string `json:"specialization" validate:"max=120"`
	Age            int    `json:"age" validate:"gte=0,lte=130"`
	Phone          string `json:"phone" validate:"max=32"`
}

// SignInRequest authenticates with email and password.
type SignInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// OIDCSignInRequest exchanges an external identity token for a session.
type OIDCSignInRequest struct {
	IDToken string `json:"id_token" validate:"required"`
}
