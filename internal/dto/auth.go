package dto

// LoginRequest captures admin panel credential input.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the JWT issued for an admin session.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
}
