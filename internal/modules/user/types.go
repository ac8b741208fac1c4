package user

// RegisterDTO is the body for POST /users/register.
type RegisterDTO struct {
	Name     string `json:"name"     binding:"required"`
	Email    string `json:"email"    binding:"required,email"`
	CNIC     string `json:"cnic"     binding:"required"`
	Password string `json:"password" binding:"required,min=6"`
}

// LoginDTO is the body for POST /users/login.
type LoginDTO struct {
	Email    string `json:"email"    binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// VerifyOTPDTO is the body for POST /users/verify-otp.
type VerifyOTPDTO struct {
	Email string `json:"email" binding:"required,email"`
	OTP   string `json:"otp"   binding:"required,len=4"`
}

// EmailDTO covers resend-otp and forget-password.
type EmailDTO struct {
	Email string `json:"email" binding:"required,email"`
}

// ResetPasswordDTO is the body for POST /users/reset-password.
type ResetPasswordDTO struct {
	Token    string `json:"token"    binding:"required"`
	Password string `json:"password" binding:"required,min=6"`
}

// AuthResult is returned on successful login or OTP verification.
type AuthResult struct {
	Token string      `json:"token"`
	User  interface{} `json:"user"`
}
