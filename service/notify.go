// Package service holds background jobs and external collaborators
// used by the handlers
package service

import (
	"fmt"

	"bitwise74/account-api/config"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// Notifier delivers one-time passcodes out-of-band. Delivery is
// best-effort: callers log the returned error and carry on, a lost
// code is fixed by requesting a new one.
type Notifier struct {
	host     string
	port     int
	sender   string
	password string
}

func NewNotifier(c *config.Config) *Notifier {
	return &Notifier{
		host:     c.Mail.Host,
		port:     c.Mail.Port,
		sender:   c.Mail.Sender,
		password: c.Mail.Password,
	}
}

// SendEmailOTP mails the code via SMTP. Without a configured mail
// host it only logs, which is what local development runs on.
func (n *Notifier) SendEmailOTP(email, code string) error {
	if n.host == "" {
		zap.L().Info("Mail host not configured, logging OTP instead",
			zap.String("email", email),
			zap.String("otp", code),
		)
		return nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.sender)
	m.SetHeader("To", email)
	m.SetHeader("Subject", "Your one-time passcode")
	m.SetBody("text/plain", fmt.Sprintf("Your one-time passcode is %s. It expires in a few minutes, don't share it with anyone.", code))

	d := gomail.NewDialer(n.host, n.port, n.sender, n.password)

	return d.DialAndSend(m)
}

// SendMobileOTP would hand the code to an SMS gateway. There is no
// gateway integration yet, so it logs the would-be delivery.
// TODO: wire up the SMS provider once the account exists
func (n *Notifier) SendMobileOTP(number, code string) error {
	zap.L().Info("SMS gateway not integrated, logging OTP instead",
		zap.String("mobile", number),
		zap.String("otp", code),
	)
	return nil
}
