package utils

import (
	"bytes"
	"fmt"
	"html/template"
)

// RenderedEmail is the ephemeral output of rendering one sequence template.
type RenderedEmail struct {
	Subject string
	HTML    string
}

// TemplateData is the interpolation context for sequence templates.
type TemplateData struct {
	Name   string
	AppURL string
	Year   int
}

type sequenceTemplate struct {
	subject string
	body    string
}

const emailStyles = `
    body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; }
    .container { max-width: 600px; margin: 0 auto; padding: 20px; }
    .header { text-align: center; padding: 20px 0; }
    .logo { font-size: 24px; font-weight: bold; color: #16a34a; }
    .button { display: inline-block; padding: 12px 24px; background: #16a34a; color: white; text-decoration: none; border-radius: 8px; font-weight: 600; }
    .highlight { background: #f0fdf4; border-left: 4px solid #16a34a; padding: 20px; margin: 20px 0; border-radius: 8px; }
    .footer { text-align: center; padding: 20px 0; color: #666; font-size: 14px; }
`

// Embedded drip-sequence templates, keyed by template id.
var sequenceTemplates = map[string]sequenceTemplate{
	"welcome": {
		subject: "Welcome to PadelFit AI - Let's prevent injuries together!",
		body: `<h1>Welcome, {{.Name}}!</h1>
      <p>Thanks for joining PadelFit AI. You're now part of a community of padel players committed to staying injury-free and playing at their best.</p>
      <p>Here's what you can do now:</p>
      <ul>
        <li><strong>Take the Injury Risk Quiz</strong> - Understand your injury risks and get personalized recommendations</li>
        <li><strong>Generate Your First Warm-up</strong> - Create a customized warm-up routine before your next match</li>
        <li><strong>Explore the Exercise Library</strong> - Browse 50+ injury prevention exercises</li>
      </ul>
      <p style="text-align: center; padding: 20px 0;">
        <a href="{{.AppURL}}/dashboard" class="button">Go to Dashboard</a>
      </p>
      <p>Have questions? Just reply to this email - we're here to help!</p>
      <p>Play safe,<br>The PadelFit AI Team</p>`,
	},

	"injury_guide": {
		subject: "The 5 Most Common Padel Injuries (and how to prevent them)",
		body: `<h2>Hey {{.Name}},</h2>
      <p>Did you know that 30% of padel players get injured each year?</p>
      <p>The five injuries we see most: tennis elbow, shoulder impingement, knee strain, lower-back pain and wrist sprains. Almost all of them trace back to skipped warm-ups and poor recovery habits.</p>
      <div class="highlight">
        <p style="margin: 0;">Five minutes of targeted preparation before a match cuts your injury risk dramatically.</p>
      </div>
      <p style="text-align: center;">
        <a href="{{.AppURL}}/dashboard/guides" class="button">Read the Full Guide</a>
      </p>`,
	},

	"warmup_reminder": {
		subject: "Your Personalized Warm-up Routine is Ready",
		body: `<h2>Hey {{.Name}},</h2>
      <p>Don't forget to warm up before your next match!</p>
      <p>Your personalized routine adapts to your injury history and the areas you want to protect. It takes less time than the walk to the court.</p>
      <p style="text-align: center;">
        <a href="{{.AppURL}}/dashboard/warmup" class="button">Generate My Warm-up</a>
      </p>`,
	},

	"pro_upgrade": {
		subject: "Unlock Full Access to PadelFit AI",
		body: `<h2>Hey {{.Name}},</h2>
      <p>You've been using PadelFit AI for a week now. Ready to take your injury prevention to the next level?</p>
      <p>With Pro you get the full exercise library, personalized conditioning plans, unlimited AI coaching and progress tracking - for just $12/month.</p>
      <p style="text-align: center;">
        <a href="{{.AppURL}}/pricing" class="button">Upgrade to Pro</a>
      </p>
      <p>Questions? Just reply to this email!</p>`,
	},

	"case_study": {
		subject: "How Carlos Went 6 Months Injury-Free",
		body: `<h2>Hey {{.Name}},</h2>
      <p>Meet Carlos, a club player from Madrid.</p>
      <p>After two elbow injuries in one season he started following a structured warm-up and conditioning plan. Six months later he's playing three times a week, pain-free, and climbing his club ladder.</p>
      <div class="highlight">
        <p style="margin: 0;">"The ten minutes before the match turned out to matter more than the ninety during it."</p>
      </div>
      <p style="text-align: center;">
        <a href="{{.AppURL}}/dashboard" class="button">Start Your Plan</a>
      </p>`,
	},

	"final_offer": {
		subject: "Last Chance: 20% Off Pro Plan",
		body: `<h2>Hey {{.Name}},</h2>
      <p>We noticed you haven't upgraded yet - so here's a nudge.</p>
      <p>For the next 48 hours you can get your first three months of Pro at 20% off. After that the offer is gone for good.</p>
      <p style="text-align: center;">
        <a href="{{.AppURL}}/pricing" class="button">Claim 20% Off</a>
      </p>`,
	},
}

// RenderSequenceEmail renders the drip template with the given id as a
// pure function of its inputs. Unknown template ids are reported as an
// error to the caller.
func RenderSequenceEmail(templateID string, data TemplateData) (RenderedEmail, error) {
	tmpl, ok := sequenceTemplates[templateID]
	if !ok {
		return RenderedEmail{}, fmt.Errorf("template %q not found", templateID)
	}

	page := `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <style>` + emailStyles + `</style>
</head>
<body>
  <div class="container">
    <div class="header">
      <div class="logo">PadelFit AI</div>
    </div>
    <div class="content">
` + tmpl.body + `
    </div>
    <div class="footer">
      <p>&copy; {{.Year}} PadelFit AI. All rights reserved.</p>
      <p><a href="{{.AppURL}}/unsubscribe">Unsubscribe</a></p>
    </div>
  </div>
</body>
</html>`

	t, err := template.New(templateID).Parse(page)
	if err != nil {
		return RenderedEmail{}, fmt.Errorf("error parsing template %q: %w", templateID, err)
	}

	var body bytes.Buffer
	if err := t.Execute(&body, data); err != nil {
		return RenderedEmail{}, fmt.Errorf("error executing template %q: %w", templateID, err)
	}

	return RenderedEmail{Subject: tmpl.subject, HTML: body.String()}, nil
}
