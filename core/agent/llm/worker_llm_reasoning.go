package llm

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/InboxGenie/IG-Gmail-MCP/core/domain"
	"github.com/InboxGenie/IG-Gmail-MCP/core/port/out"
	"github.com/InboxGenie/IG-Gmail-MCP/pkg/apperr"
	"github.com/InboxGenie/IG-Gmail-MCP/pkg/logger"

	"github.com/goccy/go-json"
)

// DefaultReasoningPrompt asks the model to describe the query instead of answering it.
const DefaultReasoningPrompt = `You analyse questions a user asks about their own email archive.
Do not answer the question. Reply with one JSON object and nothing else:

{
  "filtering_by_date": <true when the question restricts messages to a time period>,
  "is_asking_about_specific_details": <true when the user wants a specific fact or message, false for broad overviews>,
  "date": { "<operator>": "<DD/MM/YYYY HH:MM>" }
}

Allowed operators are $gte, $lte, $eq, $ne, $gt and $lt.
Resolve relative periods ("last week", "yesterday", "in March") against the current date given at the end of the question.
Write dates day first. When there is no time period, return "date": {}.`

// currentDateLayout is how "now" is appended to the question.
const currentDateLayout = "02/01/2006 15:04"

// ReasoningClassifier turns a free-text question into a ReasoningFilter.
type ReasoningClassifier struct {
	completer out.Completer
	prompt    string
	loc       *time.Location
}

type ClassifierOption func(*ReasoningClassifier)

// WithPrompt overrides the system prompt. Empty keeps the default.
func WithPrompt(prompt string) ClassifierOption {
	return func(rc *ReasoningClassifier) {
		if strings.TrimSpace(prompt) != "" {
			rc.prompt = prompt
		}
	}
}

// WithLocation sets the zone used for dates the model returns without an offset.
func WithLocation(loc *time.Location) ClassifierOption {
	return func(rc *ReasoningClassifier) {
		if loc != nil {
			rc.loc = loc
		}
	}
}

func NewReasoningClassifier(completer out.Completer, opts ...ClassifierOption) *ReasoningClassifier {
	rc := &ReasoningClassifier{
		completer: completer,
		prompt:    DefaultReasoningPrompt,
		loc:       time.UTC,
	}
	for _, opt := range opts {
		opt(rc)
	}
	return rc
}

// Classify asks the model about queryText. Malformed or invalid model output
// yields the empty filter; only a failed call returns an error.
func (rc *ReasoningClassifier) Classify(ctx context.Context, queryText string, now time.Time) (domain.ReasoningFilter, error) {
	userPrompt := queryText + " Current date: " + now.In(rc.loc).Format(currentDateLayout)

	raw, err := rc.completer.CompleteJSON(ctx, rc.prompt, userPrompt)
	if err != nil {
		return domain.ReasoningFilter{}, apperr.ExternalError("reasoning", err)
	}

	rf, err := ParseReasoningResponse(raw, rc.loc)
	if err != nil {
		logger.WithContext(ctx).WithError(err).WithField("response", truncate(raw, 200)).
			Warn("[ReasoningClassifier] discarding model output")
		return domain.ReasoningFilter{}, nil
	}
	return rf, nil
}

// ParseReasoningResponse validates a model response. The error explains why the
// response was rejected; callers treat any error as "no reasoning filter".
func ParseReasoningResponse(raw string, loc *time.Location) (domain.ReasoningFilter, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleanJSONResponse(raw)), &doc); err != nil {
		return domain.ReasoningFilter{}, fmt.Errorf("not a JSON object: %w", err)
	}

	dateRaw, ok := doc["date"]
	if !ok {
		return domain.ReasoningFilter{}, fmt.Errorf("missing date")
	}
	var dateDoc map[string]json.RawMessage
	if err := json.Unmarshal(dateRaw, &dateDoc); err != nil || dateDoc == nil {
		return domain.ReasoningFilter{}, fmt.Errorf("date is not an object")
	}

	var rf domain.ReasoningFilter
	var err error
	if rf.FilteringByDate, err = optionalBool(doc, "filtering_by_date"); err != nil {
		return domain.ReasoningFilter{}, err
	}
	if rf.AskingAboutSpecificDetails, err = optionalBool(doc, "is_asking_about_specific_details"); err != nil {
		return domain.ReasoningFilter{}, err
	}

	// All keys are checked before any value so an unknown operator always wins.
	for key := range dateDoc {
		if !domain.DateOperator(key).IsValid() {
			return domain.ReasoningFilter{}, fmt.Errorf("unsupported date operator %q", key)
		}
	}

	rf.Date = make(map[domain.DateOperator]int64, len(dateDoc))
	for key, value := range dateDoc {
		ts, err := parseDateValue(value, loc)
		if err != nil {
			return domain.ReasoningFilter{}, fmt.Errorf("date %s: %w", key, err)
		}
		rf.Date[domain.DateOperator(key)] = ts
	}
	return rf, nil
}

// optionalBool accepts only JSON booleans. Truthy strings or numbers such as
// "yes" or 1 are rejected, which discards the whole filter.
func optionalBool(doc map[string]json.RawMessage, key string) (bool, error) {
	raw, ok := doc[key]
	if !ok || string(raw) == "null" {
		return false, nil
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		return false, fmt.Errorf("%s is not a boolean", key)
	}
	return b, nil
}

func parseDateValue(raw json.RawMessage, loc *time.Location) (int64, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return ParseDayFirst(s, loc)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if ts, err := n.Int64(); err == nil {
			return ts, nil
		}
		if f, err := n.Float64(); err == nil {
			return int64(f), nil
		}
	}
	return 0, fmt.Errorf("unsupported value %s", string(raw))
}

// dayFirstLayouts are tried in order. Single-digit day and month verbs also
// accept zero-padded input.
var dayFirstLayouts = []string{
	"2/1/2006 15:04:05",
	"2/1/2006 15:04",
	"2/1/2006",
	"2-1-2006 15:04:05",
	"2-1-2006 15:04",
	"2-1-2006",
	"2.1.2006 15:04",
	"2.1.2006",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2 January 2006 15:04",
	"2 January 2006",
	"2 Jan 2006",
	"January 2, 2006",
	"Jan 2, 2006",
}

// ParseDayFirst parses a date the way a European reader would: 03/04/2024
// is the third of April. Strings of nine or more digits are unix seconds.
func ParseDayFirst(s string, loc *time.Location) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty date")
	}
	if loc == nil {
		loc = time.UTC
	}
	if len(s) >= 9 && isDigits(s) {
		return strconv.ParseInt(s, 10, 64)
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.Unix(), nil
	}
	for _, layout := range dayFirstLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.Unix(), nil
		}
	}
	return 0, fmt.Errorf("unrecognised date %q", s)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func cleanJSONResponse(resp string) string {
	resp = strings.TrimSpace(resp)
	resp = strings.TrimPrefix(resp, "```json")
	resp = strings.TrimPrefix(resp, "```")
	resp = strings.TrimSuffix(resp, "```")
	return strings.TrimSpace(resp)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
