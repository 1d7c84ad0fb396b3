package worker

// SequenceStep is one entry in a drip sequence: the minimum number of days
// since signup before it becomes due, and the template it dispatches.
type SequenceStep struct {
	OffsetDays int
	TemplateID string
}

// DefaultSequences is the static sequence catalog. Authored as
// configuration; immutable at runtime.
var DefaultSequences = map[string][]SequenceStep{
	"onboarding": {
		{OffsetDays: 0, TemplateID: "welcome"},
		{OffsetDays: 2, TemplateID: "injury_guide"},
		{OffsetDays: 4, TemplateID: "warmup_reminder"},
		{OffsetDays: 7, TemplateID: "pro_upgrade"},
		{OffsetDays: 14, TemplateID: "case_study"},
		{OffsetDays: 21, TemplateID: "final_offer"},
	},
}

// OnboardingSequence is the sequence the enrollment sweep signs new users
// up for.
const OnboardingSequence = "onboarding"

// upgradeTemplates marks upgrade-solicitation steps. These are skipped
// (but still advanced past) for users already on a paying tier.
var upgradeTemplates = map[string]bool{
	"pro_upgrade": true,
	"final_offer": true,
}
