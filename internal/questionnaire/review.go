package questionnaire

import (
	"fmt"
	"strings"
	"time"

	"quitflow/internal/ledger"
)

// submissionDateLayout is the wire format for date answers, e.g.
// "2025-03-14 00:00:00+00:00".
const submissionDateLayout = "2006-01-02 15:04:05-07:00"

const noAnswerText = "No answer selected"

// DisplayRow is one review line: the answer text plus an optional caption
// (relative date info for date answers).
type DisplayRow struct {
	QuestionID int64  `json:"question_id"`
	Prompt     string `json:"prompt"`
	Primary    string `json:"primary"`
	Secondary  string `json:"secondary,omitempty"`
}

// AssembleReview flattens ledger entries into display rows. Pure; relative
// date captions are computed against the current day.
func AssembleReview(entries []ledger.Entry) []DisplayRow {
	return assembleReviewAt(entries, time.Now())
}

func assembleReviewAt(entries []ledger.Entry, now time.Time) []DisplayRow {
	rows := make([]DisplayRow, 0, len(entries))
	for _, e := range entries {
		row := resolveRowAt(e, now)
		row.QuestionID = e.QuestionID
		row.Prompt = e.Prompt
		rows = append(rows, row)
	}
	return rows
}

func resolveRowAt(e ledger.Entry, now time.Time) DisplayRow {
	if len(e.Pairs) == 0 {
		return DisplayRow{Primary: noAnswerText}
	}

	if ParseAnswerKind(e.AnswerKind) == KindDate {
		if t, ok := ParseSubmissionDate(e.Pairs[0].Value); ok {
			return DisplayRow{
				Primary:   FormatDisplayDate(t),
				Secondary: relativeDateInfo(t, now),
			}
		}
	}

	values := make([]string, 0, len(e.Pairs))
	for _, p := range e.Pairs {
		main := strings.TrimSpace(p.Value)
		if main == "" {
			continue
		}
		sub := strings.TrimSpace(p.SubValue)
		if sub != "" {
			if ParseAnswerKind(p.SubKind) == KindDate {
				if t, ok := ParseSubmissionDate(sub); ok {
					sub = FormatDisplayDate(t)
				}
			}
			values = append(values, main+" - "+sub)
			continue
		}
		values = append(values, main)
	}

	if len(values) == 0 {
		return DisplayRow{Primary: noAnswerText}
	}
	return DisplayRow{Primary: strings.Join(values, "\n")}
}

// FormatSubmissionDate renders a date answer for the wire.
func FormatSubmissionDate(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05") + "+00:00"
}

// ParseSubmissionDate accepts the wire date format, tolerating an RFC 3339
// "T" separator.
func ParseSubmissionDate(value string) (time.Time, bool) {
	v := strings.TrimSpace(value)
	if v == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(submissionDateLayout, v); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, strings.Replace(v, " ", "T", 1)); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// FormatDisplayDate renders an absolute date, e.g.
// "Friday, March 14, 2025".
func FormatDisplayDate(t time.Time) string {
	return t.Format("Monday, January 2, 2006")
}

// RelativeDateInfo captions a date relative to today: "Today",
// "Tomorrow", "Yesterday", "In N days" or "N days ago".
func RelativeDateInfo(t time.Time) string {
	return relativeDateInfo(t, time.Now())
}

func relativeDateInfo(t, now time.Time) string {
	target := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	diffDays := int(target.Sub(today).Hours() / 24)

	switch {
	case diffDays == 0:
		return "Today"
	case diffDays == 1:
		return "Tomorrow"
	case diffDays == -1:
		return "Yesterday"
	case diffDays > 1:
		return fmt.Sprintf("In %d days", diffDays)
	default:
		return fmt.Sprintf("%d days ago", -diffDays)
	}
}
