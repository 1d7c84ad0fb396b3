package utils

import (
	"context"
	"fmt"
	"log"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"gopkg.in/gomail.v2"
)

// Mailer sends one rendered email. Implementations wrap the configured
// outbound delivery provider.
type Mailer interface {
	Send(to, subject, html string) error
}

// SMTPConfig holds settings for the SMTP provider.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
}

// SESMailerConfig holds credentials for the AWS SES provider.
type SESMailerConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// MailerConfig selects and configures an outbound email provider.
type MailerConfig struct {
	Provider  string // smtp, ses, noop
	FromEmail string
	FromName  string
	SMTP      SMTPConfig
	SES       SESMailerConfig
}

// NewMailer builds a Mailer for the configured provider. Unknown providers
// fall back to a no-op mailer that only logs, so development environments
// never send real mail by accident.
func NewMailer(cfg MailerConfig) Mailer {
	switch cfg.Provider {
	case "smtp":
		return &smtpMailer{
			dialer:    gomail.NewDialer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password),
			fromEmail: cfg.FromEmail,
			fromName:  cfg.FromName,
		}
	case "ses":
		client := ses.NewFromConfig(aws.Config{
			Region: cfg.SES.Region,
			Credentials: aws.NewCredentialsCache(
				credentials.NewStaticCredentialsProvider(cfg.SES.AccessKeyID, cfg.SES.SecretAccessKey, ""),
			),
		})
		return &sesMailer{
			client:    client,
			fromEmail: cfg.FromEmail,
			fromName:  cfg.FromName,
		}
	case "noop":
		return &noopMailer{}
	default:
		log.Printf("Unknown email provider %q, using noop", cfg.Provider)
		return &noopMailer{}
	}
}

type smtpMailer struct {
	dialer    *gomail.Dialer
	fromEmail string
	fromName  string
}

func (m *smtpMailer) Send(to, subject, html string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", fmt.Sprintf("%s <%s>", m.fromName, m.fromEmail))
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", html)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("smtp send failed: %w", err)
	}
	return nil
}

type sesMailer struct {
	client    *ses.Client
	fromEmail string
	fromName  string
}

func (m *sesMailer) Send(to, subject, html string) error {
	source := m.fromEmail
	if m.fromName != "" {
		source = fmt.Sprintf("%s <%s>", m.fromName, m.fromEmail)
	}

	input := &ses.SendEmailInput{
		Source: aws.String(source),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data:    aws.String(subject),
				Charset: aws.String("UTF-8"),
			},
			Body: &types.Body{
				Html: &types.Content{
					Data:    aws.String(html),
					Charset: aws.String("UTF-8"),
				},
			},
		},
	}

	if _, err := m.client.SendEmail(context.Background(), input); err != nil {
		return fmt.Errorf("ses send failed: %w", err)
	}
	return nil
}

type noopMailer struct{}

func (m *noopMailer) Send(to, subject, html string) error {
	log.Printf("Email would be sent (noop): to=%s subject=%q", to, subject)
	return nil
}
