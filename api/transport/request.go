package transport

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type ProfileUpdateRequest struct {
	Email string            `json:"email"`
	Meta  map[string]string `json:"metadata"`
}

type PasswordChangeRequest struct {
	Current string `json:"current_password"`
	New     string `json:"new_password"`
}
