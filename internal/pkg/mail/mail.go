package mail

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"net/smtp"
	"strings"
	"time"
)

// Config holds mail provider settings.
type Config struct {
	Enable    bool   `json:"enable"`
	Host      string `json:"host"`
	Port      int    `json:"port"`
	User      string `json:"user"`
	Pass      string `json:"pass"`
	From      string `json:"from"`
	ReplyTo   string `json:"reply_to"`
	UseResend bool   `json:"use_resend"`
	ResendKey string `json:"resend_key"`
}

// Message is a single email to send.
type Message struct {
	To      []string
	Subject string
	HTML    string
	Text    string
}

// Sender sends emails via SMTP or Resend.
type Sender struct {
	cfg Config
}

func New(cfg Config) *Sender {
	return &Sender{cfg: cfg}
}

// Send dispatches an email. Uses Resend if configured, otherwise SMTP.
func (s *Sender) Send(msg Message) error {
	if !s.cfg.Enable {
		return nil
	}
	if s.cfg.UseResend && s.cfg.ResendKey != "" {
		return s.sendResend(msg)
	}
	return s.sendSMTP(msg)
}

// sendSMTP sends via net/smtp.
func (s *Sender) sendSMTP(msg Message) error {
	host := s.cfg.Host
	port := s.cfg.Port
	if port == 0 {
		port = 587
	}
	addr := fmt.Sprintf("%s:%d", host, port)

	from := s.cfg.From
	if from == "" {
		from = s.cfg.User
	}

	var body bytes.Buffer
	body.WriteString("MIME-Version: 1.0\r\n")
	body.WriteString(fmt.Sprintf("From: %s\r\n", from))
	body.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(msg.To, ", ")))
	body.WriteString(fmt.Sprintf("Subject: %s\r\n", msg.Subject))
	body.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	if s.cfg.ReplyTo != "" {
		body.WriteString(fmt.Sprintf("Reply-To: %s\r\n", s.cfg.ReplyTo))
	}
	body.WriteString("\r\n")
	body.WriteString(msg.HTML)

	auth := smtp.PlainAuth("", s.cfg.User, s.cfg.Pass, host)
	return smtp.SendMail(addr, auth, from, msg.To, body.Bytes())
}

// sendResend sends via the Resend HTTP API.
func (s *Sender) sendResend(msg Message) error {
	from := s.cfg.From
	if from == "" {
		from = s.cfg.User
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"from":    from,
		"to":      msg.To,
		"subject": msg.Subject,
		"html":    msg.HTML,
	})

	req, err := http.NewRequest("POST", "https://api.resend.com/emails", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.ResendKey)
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var errResp struct {
			Message string `json:"message"`
		}
		json.NewDecoder(resp.Body).Decode(&errResp)
		return fmt.Errorf("resend error %d: %s", resp.StatusCode, errResp.Message)
	}
	return nil
}

const otpVerifyTpl = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta http-equiv="Content-Type" content="text/html; charset=UTF-8" />
</head>
<body style="background-color:#f5f7fa;margin:0 auto;font-family:ui-sans-serif,system-ui,-apple-system,BlinkMacSystemFont,Segoe UI,Roboto,Helvetica Neue,Arial,sans-serif;padding:.5rem">
  <table align="center" width="100%" role="presentation" cellspacing="0" cellpadding="0" border="0" style="max-width:100%;border-width:1px;border-style:solid;border-radius:.5rem;margin:40px auto;padding:24px;width:520px;border-color:rgb(16,185,129);background:#fff">
    <tbody>
      <tr><td>
        <h1 style="color:#111;font-size:20px;font-weight:600;text-align:center;margin:24px 0">Verify your HealthMate account</h1>
        <p style="font-size:14px;line-height:24px;margin:16px 0;color:#333">Hi {{.Name}},</p>
        <p style="font-size:14px;line-height:24px;margin:16px 0;color:#333">Use the code below to verify your email address. It expires in {{.ExpiryMinutes}} minutes.</p>
        <table align="center" width="100%" role="presentation" border="0" cellpadding="0" cellspacing="0" style="background-color:rgb(243,244,246);border-radius:.5rem;text-align:center;margin:24px 0">
          <tbody><tr><td><p style="font-size:32px;letter-spacing:.5rem;font-weight:700;margin:20px 0;color:rgb(16,185,129)">{{.OTP}}</p></td></tr></tbody>
        </table>
        <p style="font-size:12px;line-height:20px;margin:16px 0;color:rgb(107,114,128)">If you did not create a HealthMate account, you can safely ignore this email.</p>
        <hr style="width:100%;border:none;border-top:1px solid #eaeaea;margin:26px 0" />
        <p style="font-size:10px;line-height:20px;margin:16px 0;text-align:center;color:rgb(156,163,175)">This is an automated message, please do not reply.<br />&copy;{{year}} HealthMate</p>
      </td></tr>
    </tbody>
  </table>
</body>
</html>`

const passwordResetTpl = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta http-equiv="Content-Type" content="text/html; charset=UTF-8" />
</head>
<body style="background-color:#f5f7fa;margin:0 auto;font-family:ui-sans-serif,system-ui,-apple-system,BlinkMacSystemFont,Segoe UI,Roboto,Helvetica Neue,Arial,sans-serif;padding:.5rem">
  <table align="center" width="100%" role="presentation" cellspacing="0" cellpadding="0" border="0" style="max-width:100%;border-width:1px;border-style:solid;border-radius:.5rem;margin:40px auto;padding:24px;width:520px;border-color:rgb(59,130,246);background:#fff">
    <tbody>
      <tr><td>
        <h1 style="color:#111;font-size:20px;font-weight:600;text-align:center;margin:24px 0">Reset your password</h1>
        <p style="font-size:14px;line-height:24px;margin:16px 0;color:#333">Hi {{.Name}},</p>
        <p style="font-size:14px;line-height:24px;margin:16px 0;color:#333">We received a request to reset your HealthMate password. The link below is valid for one hour.</p>
        <table align="center" width="100%" role="presentation" border="0" cellpadding="0" cellspacing="0" style="text-align:center;margin:32px 0">
          <tbody><tr><td>
            <a href="{{.ResetURL}}" target="_blank" style="line-height:100%;text-decoration:none;display:inline-block;max-width:100%;padding:12px 24px;background-color:rgb(59,130,246);border-radius:.375rem;color:#fff;font-size:14px;font-weight:600;text-align:center">Reset password</a>
          </td></tr></tbody>
        </table>
        <p style="font-size:12px;line-height:20px;margin:16px 0;color:rgb(107,114,128)">If you did not request a password reset, no action is needed and your password will stay unchanged.</p>
        <hr style="width:100%;border:none;border-top:1px solid #eaeaea;margin:26px 0" />
        <p style="font-size:10px;line-height:20px;margin:16px 0;text-align:center;color:rgb(156,163,175)">This is an automated message, please do not reply.<br />&copy;{{year}} HealthMate</p>
      </td></tr>
    </tbody>
  </table>
</body>
</html>`

// OTPVerifyData is the data for account verification emails.
type OTPVerifyData struct {
	Name          string
	OTP           string
	ExpiryMinutes int
}

// PasswordResetData is the data for password reset emails.
type PasswordResetData struct {
	Name     string
	ResetURL string
}

func renderTemplate(tpl string, data interface{}) (string, error) {
	t, err := template.New("").Funcs(template.FuncMap{
		"year": func() int {
			return time.Now().Year()
		},
	}).Parse(tpl)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// SendOTPVerify sends the account verification code to a new user.
func (s *Sender) SendOTPVerify(to string, data OTPVerifyData) error {
	if strings.TrimSpace(data.Name) == "" {
		data.Name = "there"
	}
	if data.ExpiryMinutes <= 0 {
		data.ExpiryMinutes = 10
	}
	html, err := renderTemplate(otpVerifyTpl, data)
	if err != nil {
		return err
	}
	return s.Send(Message{
		To:      []string{to},
		Subject: "HealthMate verification code",
		HTML:    html,
	})
}

// SendPasswordReset sends a password reset link.
func (s *Sender) SendPasswordReset(to string, data PasswordResetData) error {
	if strings.TrimSpace(data.Name) == "" {
		data.Name = "there"
	}
	html, err := renderTemplate(passwordResetTpl, data)
	if err != nil {
		return err
	}
	return s.Send(Message{
		To:      []string{to},
		Subject: "Reset your HealthMate password",
		HTML:    html,
	})
}
