package worker

import (
	"context"
	"time"

	"github.com/badoux/checkmail"
	"github.com/sirupsen/logrus"

	"padelfit/models"
	"padelfit/utils"
)

// SequenceStore is the persistence surface the runner needs. The gorm
// implementation lives in models.SequenceStore; tests substitute fakes.
type SequenceStore interface {
	ActiveEnrollments(ctx context.Context) ([]models.EmailSequence, error)
	Advance(ctx context.Context, enrollmentID uint, step int, completed bool, sentAt *time.Time) error
	ProfilesWithoutSequence(ctx context.Context, sequenceName string, since time.Time) ([]models.Profile, error)
	CreateEnrollment(ctx context.Context, userID uint, sequenceName string) (*models.EmailSequence, error)
}

// SequenceRunner drives the drip-email batch pass. A single invocation
// processes every enrollment sequentially; per-enrollment failures are
// logged and never abort the batch. Delivery is at-least-once: a step is
// only advanced after a successful dispatch, so any failure between
// dispatch and the store update can produce a duplicate send on the next
// run, never a silent drop.
type SequenceRunner struct {
	Store     SequenceStore
	Mailer    utils.Mailer
	Logger    logrus.FieldLogger
	Sequences map[string][]SequenceStep
	AppURL    string

	// Clock and day-boundary timezone are injectable so tests can pin them.
	Now      func() time.Time
	Location *time.Location
}

func NewSequenceRunner(store SequenceStore, mailer utils.Mailer, logger logrus.FieldLogger, appURL string) *SequenceRunner {
	return &SequenceRunner{
		Store:     store,
		Mailer:    mailer,
		Logger:    logger,
		Sequences: DefaultSequences,
		AppURL:    appURL,
		Now:       time.Now,
		Location:  time.Local,
	}
}

// ProcessDue runs one pass over all non-completed enrollments. It returns
// an error only when the enrollment listing itself fails; everything past
// that point is handled per enrollment.
func (r *SequenceRunner) ProcessDue(ctx context.Context) error {
	enrollments, err := r.Store.ActiveEnrollments(ctx)
	if err != nil {
		return err
	}
	r.Logger.WithField("count", len(enrollments)).Info("Processing active sequences")

	now := r.Now()
	for _, enrollment := range enrollments {
		r.processEnrollment(ctx, enrollment, now)
	}
	return nil
}

func (r *SequenceRunner) processEnrollment(ctx context.Context, enrollment models.EmailSequence, now time.Time) {
	log := r.Logger.WithFields(logrus.Fields{
		"enrollment_id": enrollment.ID,
		"user_id":       enrollment.UserID,
		"sequence":      enrollment.SequenceName,
		"step":          enrollment.CurrentStep,
	})

	definition, ok := r.Sequences[enrollment.SequenceName]
	if !ok {
		log.Error("Unknown sequence")
		return
	}

	// Index past the end means terminal state; nothing to do this run.
	if enrollment.CurrentStep >= len(definition) {
		return
	}

	step := definition[enrollment.CurrentStep]
	daysSinceSignup := int(now.Sub(enrollment.Profile.CreatedAt).Hours() / 24)
	if step.OffsetDays > daysSinceSignup {
		return
	}

	// At most one dispatch per enrollment per calendar day
	if enrollment.LastEmailSentAt != nil && r.sameCalendarDay(*enrollment.LastEmailSentAt, now) {
		return
	}

	nextStep := enrollment.CurrentStep + 1
	completed := nextStep >= len(definition)

	// Don't pitch paying customers: skip the send but advance past the step
	if upgradeTemplates[step.TemplateID] && enrollment.Profile.IsPaid() {
		if err := r.Store.Advance(ctx, enrollment.ID, nextStep, completed, nil); err != nil {
			log.WithError(err).Error("Failed to advance past upgrade step")
		}
		return
	}

	if err := checkmail.ValidateFormat(enrollment.Profile.Email); err != nil {
		log.WithError(err).Error("Invalid recipient address")
		return
	}

	rendered, err := utils.RenderSequenceEmail(step.TemplateID, utils.TemplateData{
		Name:   displayName(enrollment.Profile),
		AppURL: r.AppURL,
		Year:   now.Year(),
	})
	if err != nil {
		log.WithError(err).Error("Failed to render template")
		return
	}

	if err := r.Mailer.Send(enrollment.Profile.Email, rendered.Subject, rendered.HTML); err != nil {
		// State stays untouched so the next scheduled run retries
		log.WithError(err).Error("Failed to dispatch email")
		return
	}
	log.WithField("template", step.TemplateID).Info("Dispatched sequence email")

	sentAt := now
	if err := r.Store.Advance(ctx, enrollment.ID, nextStep, completed, &sentAt); err != nil {
		// The email already went out; the next run may re-send this step
		log.WithError(err).Error("Failed to persist sequence progress after dispatch")
	}
}

// EnrollNewUsers finds profiles created in the trailing 24 hours without an
// onboarding enrollment, enrolls them and dispatches the welcome step. On
// dispatch failure the enrollment stays at step 0 with no dispatch stamp,
// so the next runner pass retries the welcome.
func (r *SequenceRunner) EnrollNewUsers(ctx context.Context) error {
	now := r.Now()
	since := now.Add(-24 * time.Hour)

	profiles, err := r.Store.ProfilesWithoutSequence(ctx, OnboardingSequence, since)
	if err != nil {
		return err
	}
	r.Logger.WithField("count", len(profiles)).Info("Enrolling new users")

	definition := r.Sequences[OnboardingSequence]
	for _, profile := range profiles {
		log := r.Logger.WithFields(logrus.Fields{
			"user_id": profile.ID,
			"email":   profile.Email,
		})

		enrollment, err := r.Store.CreateEnrollment(ctx, profile.ID, OnboardingSequence)
		if err != nil {
			log.WithError(err).Error("Failed to create enrollment")
			continue
		}

		if len(definition) == 0 {
			continue
		}

		if err := checkmail.ValidateFormat(profile.Email); err != nil {
			log.WithError(err).Error("Invalid recipient address")
			continue
		}

		rendered, err := utils.RenderSequenceEmail(definition[0].TemplateID, utils.TemplateData{
			Name:   displayName(profile),
			AppURL: r.AppURL,
			Year:   now.Year(),
		})
		if err != nil {
			log.WithError(err).Error("Failed to render welcome template")
			continue
		}

		if err := r.Mailer.Send(profile.Email, rendered.Subject, rendered.HTML); err != nil {
			log.WithError(err).Error("Failed to dispatch welcome email")
			continue
		}
		log.Info("Sent welcome email")

		sentAt := now
		if err := r.Store.Advance(ctx, enrollment.ID, 1, len(definition) == 1, &sentAt); err != nil {
			log.WithError(err).Error("Failed to persist welcome progress after dispatch")
		}
	}
	return nil
}

func (r *SequenceRunner) sameCalendarDay(a, b time.Time) bool {
	const layout = "2006-01-02"
	return a.In(r.Location).Format(layout) == b.In(r.Location).Format(layout)
}

func displayName(profile models.Profile) string {
	if profile.FullName != "" {
		return profile.FullName
	}
	return "there"
}
