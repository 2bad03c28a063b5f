package email

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"
)

type Service interface {
	SendCredentials(ctx context.Context, to, name, password string) error
}

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type smtpService struct {
	config Config
	dialer *gomail.Dialer
}

func NewService(config Config) Service {
	return &smtpService{
		config: config,
		dialer: gomail.NewDialer(config.Host, config.Port, config.Username, config.Password),
	}
}

// SendCredentials mails initial credentials to a patient registered on their
// behalf by a doctor.
func (s *smtpService) SendCredentials(ctx context.Context, to, name, password string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.config.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", "Your medical record account")
	m.SetBody("text/plain", fmt.Sprintf(
		"Hello %s,\n\nAn account was created for you. Sign in with this email and the temporary password: %s\nPlease change it after your first login.\n",
		name, password,
	))

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send credentials email: %w", err)
	}
	return nil
}
