package models

// UserModel represents an account holder.
type UserModel struct {
	Base
	Name       string `json:"name"        gorm:"not null"`
	Email      string `json:"email"       gorm:"uniqueIndex;not null"`
	Password   string `json:"-"           gorm:"not null"`
	CNIC       string `json:"cnic"        gorm:"column:cnic;uniqueIndex;not null"`
	IsAdmin    bool   `json:"is_admin"`
	Avatar     string `json:"avatar"`
	OTP        string `json:"-"           gorm:"column:otp"`
	IsVerified bool   `json:"is_verified"`
}

func (UserModel) TableName() string { return "users" }
