package dto

type SignupRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type VerifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

// Upload is an in-memory file received from a client.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

type AckResponse struct {
	Message string `json:"message"`
}
