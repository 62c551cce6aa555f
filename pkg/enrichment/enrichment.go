// Package enrichment derives CRM notes and classification tags from quiz answers.
package enrichment

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/leadpop/funnelrelay/pkg/core"
)

// SourceTag is always the first tag applied to a funnel contact.
const SourceTag = "funnel-source"

// Volume tier tags.
const (
	TierHigh = "high-volume"
	TierMid  = "mid-volume"
	TierLow  = "low-volume"
)

const (
	notAnswered  = "Not answered"
	unknownStep  = "Unknown"
	noteTimezone = "America/New_York"
	noteLayout   = "1/2/2006, 3:04:05 PM"
)

var (
	nonSlugRun     = regexp.MustCompile(`[^a-z0-9]+`)
	trailingHyphen = regexp.MustCompile(`-+$`)
	noteLocation   = loadNoteLocation()
)

func loadNoteLocation() *time.Location {
	loc, err := time.LoadLocation(noteTimezone)
	if err != nil {
		return time.FixedZone("ET", -5*60*60)
	}
	return loc
}

// Result is the enrichment derived for one contact.
type Result struct {
	Note string   `json:"note"`
	Tags []string `json:"tags"`
}

// Build computes the note and tags at the current time.
func Build(answers *core.Answers, step *int) Result {
	return Result{Note: Note(answers, step), Tags: BuildTags(answers)}
}

// Note renders the CRM note using the current clock.
func Note(answers *core.Answers, step *int) string {
	return BuildNote(answers, step, time.Now())
}

// BuildNote renders the fixed-layout CRM note. CRM viewers depend on the
// line order and fallback wording.
func BuildNote(answers *core.Answers, step *int, now time.Time) string {
	if answers == nil {
		answers = &core.Answers{}
	}
	stepText := unknownStep
	if step != nil && *step != 0 {
		stepText = strconv.Itoa(*step)
	}
	lines := []string{
		"📋 LeadPop Funnel Quiz Answers",
		"═══════════════════════════════",
		"",
		"🏦 Loan Types: " + orNotAnswered(answers.LoanTypesJoined()),
		"📊 Monthly Volume: " + orNotAnswered(answers.MonthlyVolume),
		"📍 Current Lead Source: " + orNotAnswered(answers.CurrentSource),
		"",
		"🔢 Funnel Step Reached: " + stepText,
		"📅 Submitted: " + now.In(noteLocation).Format(noteLayout) + " ET",
	}
	return strings.Join(lines, "\n")
}

func orNotAnswered(value string) string {
	if value == "" {
		return notAnswered
	}
	return value
}

// BuildTags returns the source tag, a volume tier when monthly volume is
// answered, and one slug per loan type in answer order. Duplicates are kept.
func BuildTags(answers *core.Answers) []string {
	tags := []string{SourceTag}
	if answers == nil {
		return tags
	}
	if answers.MonthlyVolume != "" {
		tags = append(tags, VolumeTier(answers.MonthlyVolume))
	}
	for _, loanType := range answers.LoanTypes {
		tags = append(tags, Slug(loanType))
	}
	return tags
}

// VolumeTier classifies a monthly volume band. Only the exact band labels of
// the quiz are recognised; anything else is low volume.
func VolumeTier(band string) string {
	switch band {
	case "500+", "250-500":
		return TierHigh
	case "100-250", "50-100":
		return TierMid
	default:
		return TierLow
	}
}

// Slug lowercases value, collapses runs of non-alphanumerics into a single
// hyphen and strips trailing hyphens. Leading hyphens are kept.
func Slug(value string) string {
	slug := nonSlugRun.ReplaceAllString(strings.ToLower(value), "-")
	return trailingHyphen.ReplaceAllString(slug, "")
}
