// The sequencer is the drip-email batch job. An external scheduler runs it
// daily with no arguments; it enrolls users who signed up in the last 24
// hours into the onboarding sequence, dispatches whatever steps are due,
// and exits. Exit code 1 means fatal misconfiguration before any
// processing; per-user failures are logged and retried on the next run.
package main

import (
	"context"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"

	"padelfit/config"
	"padelfit/models"
	"padelfit/utils"
	"padelfit/worker"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if err := config.LoadConfig(); err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}
	if err := config.ValidateMailerConfig(); err != nil {
		logger.WithError(err).Fatal("Invalid mailer configuration")
	}

	if config.AppConfig.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         config.AppConfig.SentryDSN,
			Environment: config.AppConfig.Environment,
		}); err != nil {
			logger.WithError(err).Warn("Sentry initialization failed")
		}
		defer sentry.Flush(2 * time.Second)
	}

	if err := config.ConnectDB(); err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}

	mailer := utils.NewMailer(utils.MailerConfig{
		Provider:  config.AppConfig.EmailProvider,
		FromEmail: config.AppConfig.FromEmail,
		FromName:  config.AppConfig.FromName,
		SMTP: utils.SMTPConfig{
			Host:     config.AppConfig.SMTPHost,
			Port:     config.AppConfig.SMTPPort,
			Username: config.AppConfig.SMTPUsername,
			Password: config.AppConfig.SMTPPassword,
		},
		SES: utils.SESMailerConfig{
			Region:          config.AppConfig.SES.Region,
			AccessKeyID:     config.AppConfig.SES.AccessKeyID,
			SecretAccessKey: config.AppConfig.SES.SecretAccessKey,
		},
	})

	store := models.NewSequenceStore(config.DB)
	runner := worker.NewSequenceRunner(store, mailer, logger, config.AppConfig.AppURL)

	ctx := context.Background()
	logger.Info("Processing email sequences")

	if err := runner.ProcessDue(ctx); err != nil {
		logger.WithError(err).Error("Failed to fetch active sequences")
	}
	if err := runner.EnrollNewUsers(ctx); err != nil {
		logger.WithError(err).Error("Failed to fetch new users")
	}

	logger.Info("Email processing complete")
	os.Exit(0)
}
