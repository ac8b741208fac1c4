package user

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"time"

	"github.com/healthmate/core/internal/models"
	"github.com/healthmate/core/internal/pkg/jwt"
	"github.com/healthmate/core/internal/pkg/mail"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	authTokenTTL  = 7 * 24 * time.Hour
	resetTokenTTL = time.Hour
	otpResendGap  = 60 * time.Second
	otpExpiryMins = 10
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrCNICTaken          = errors.New("cnic already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNotVerified        = errors.New("account not verified")
	ErrBadOTP             = errors.New("invalid verification code")
	ErrThrottled          = errors.New("please wait before requesting another code")
	ErrNotFound           = errors.New("user not found")
	ErrBadResetToken      = errors.New("invalid or expired reset token")
)

// Mailer sends account emails. Satisfied by *mail.Sender.
type Mailer interface {
	SendOTPVerify(to string, data mail.OTPVerifyData) error
	SendPasswordReset(to string, data mail.PasswordResetData) error
}

// Throttle rate-limits OTP resends. Satisfied by the redis client.
type Throttle interface {
	SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)
}

// Service implements registration, OTP verification, and password flows.
type Service struct {
	db          *gorm.DB
	mailer      Mailer
	throttle    Throttle
	frontendURL string
	log         *zap.Logger
}

func NewService(db *gorm.DB, mailer Mailer, throttle Throttle, frontendURL string, log *zap.Logger) *Service {
	return &Service{db: db, mailer: mailer, throttle: throttle, frontendURL: frontendURL, log: log}
}

// Register creates an unverified account and emails its OTP. The email send
// runs in the background so a slow SMTP hop never blocks signup.
func (s *Service) Register(ctx context.Context, dto RegisterDTO) (*models.UserModel, error) {
	if taken, err := s.exists(ctx, "email = ?", dto.Email); err != nil {
		return nil, err
	} else if taken {
		return nil, ErrEmailTaken
	}
	if taken, err := s.exists(ctx, "cnic = ?", dto.CNIC); err != nil {
		return nil, err
	} else if taken {
		return nil, ErrCNICTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(dto.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &models.UserModel{
		Name:     dto.Name,
		Email:    dto.Email,
		CNIC:     dto.CNIC,
		Password: string(hash),
		Avatar:   avatarURL(dto.Name),
		OTP:      newOTP(),
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}

	s.sendOTPAsync(user)
	return user, nil
}

// VerifyOTP marks the account verified and logs it in.
func (s *Service) VerifyOTP(ctx context.Context, dto VerifyOTPDTO) (*AuthResult, error) {
	user, err := s.byEmail(ctx, dto.Email)
	if err != nil {
		return nil, err
	}
	if user.OTP == "" || user.OTP != dto.OTP {
		return nil, ErrBadOTP
	}

	err = s.db.WithContext(ctx).Model(user).Updates(map[string]interface{}{
		"is_verified": true,
		"otp":         "",
	}).Error
	if err != nil {
		return nil, err
	}
	user.IsVerified = true
	user.OTP = ""

	return s.issueToken(user)
}

// ResendOTP rotates the stored code and emails it again, at most once per
// minute per account.
func (s *Service) ResendOTP(ctx context.Context, email string) error {
	user, err := s.byEmail(ctx, email)
	if err != nil {
		return err
	}
	if user.IsVerified {
		return nil
	}

	if s.throttle != nil {
		ok, err := s.throttle.SetNX(ctx, "hm:otp:resend:"+user.ID, 1, otpResendGap)
		if err == nil && !ok {
			return ErrThrottled
		}
	}

	user.OTP = newOTP()
	if err := s.db.WithContext(ctx).Model(user).Update("otp", user.OTP).Error; err != nil {
		return err
	}

	s.sendOTPAsync(user)
	return nil
}

// Login authenticates a verified account and issues a session token.
func (s *Service) Login(ctx context.Context, dto LoginDTO) (*AuthResult, error) {
	user, err := s.byEmail(ctx, dto.Email)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(dto.Password)) != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsVerified {
		return nil, ErrNotVerified
	}

	return s.issueToken(user)
}

// ForgetPassword emails a one-hour reset link. Unknown addresses are
// reported the same as known ones so the endpoint cannot be used to probe
// for accounts.
func (s *Service) ForgetPassword(ctx context.Context, email string) error {
	user, err := s.byEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	token, err := jwt.SignFor(user.ID, jwt.PurposeReset, resetTokenTTL)
	if err != nil {
		return err
	}

	resetURL := fmt.Sprintf("%s/reset-password?token=%s", s.frontendURL, url.QueryEscape(token))
	go func() {
		if s.mailer == nil {
			return
		}
		if err := s.mailer.SendPasswordReset(user.Email, mail.PasswordResetData{
			Name:     user.Name,
			ResetURL: resetURL,
		}); err != nil {
			s.log.Warn("reset email failed", zap.String("user_id", user.ID), zap.Error(err))
		}
	}()
	return nil
}

// ResetPassword validates a reset token and replaces the password.
func (s *Service) ResetPassword(ctx context.Context, dto ResetPasswordDTO) error {
	claims, err := jwt.ParseFor(dto.Token, jwt.PurposeReset)
	if err != nil {
		return ErrBadResetToken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(dto.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	res := s.db.WithContext(ctx).Model(&models.UserModel{}).
		Where("id = ?", claims.UserID).
		Update("password", string(hash))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Me returns the current user's profile.
func (s *Service) Me(ctx context.Context, userID string) (*models.UserModel, error) {
	var user models.UserModel
	err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Service) issueToken(user *models.UserModel) (*AuthResult, error) {
	token, err := jwt.SignFor(user.ID, jwt.PurposeAuth, authTokenTTL)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, User: user}, nil
}

func (s *Service) sendOTPAsync(user *models.UserModel) {
	if s.mailer == nil {
		return
	}
	u := *user
	go func() {
		if err := s.mailer.SendOTPVerify(u.Email, mail.OTPVerifyData{
			Name:          u.Name,
			OTP:           u.OTP,
			ExpiryMinutes: otpExpiryMins,
		}); err != nil {
			s.log.Warn("otp email failed", zap.String("user_id", u.ID), zap.Error(err))
		}
	}()
}

func (s *Service) byEmail(ctx context.Context, email string) (*models.UserModel, error) {
	var user models.UserModel
	err := s.db.WithContext(ctx).First(&user, "email = ?", email).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Service) exists(ctx context.Context, query string, args ...interface{}) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.UserModel{}).
		Where(query, args...).Count(&count).Error
	return count > 0, err
}

// newOTP returns a 4-digit code with leading zeros preserved.
func newOTP() string {
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return "0000"
	}
	return fmt.Sprintf("%04d", n.Int64())
}

func avatarURL(name string) string {
	return "https://ui-avatars.com/api/?name=" + url.QueryEscape(name) + "&background=random"
}
