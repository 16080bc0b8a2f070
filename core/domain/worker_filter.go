package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// =============================================================================
// UI Filter
// =============================================================================

const (
	DefaultStartTime = "00:00"
	DefaultEndTime   = "23:59"
)

// Date is a calendar day sent by the UI. It accepts "2006-01-02" or a full
// RFC 3339 timestamp, in which case only the date part is kept.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return Date{t.Year(), t.Month(), t.Day()}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return Date{t.Year(), t.Month(), t.Day()}, nil
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// UIFilter carries the explicit constraints a user selected in the interface.
// Every field is optional.
type UIFilter struct {
	Inboxes    []string `json:"inboxes,omitempty"`
	Recipients []string `json:"recipients,omitempty"`
	FromEmail  string   `json:"from_email,omitempty"`
	StartDate  *Date    `json:"start_date,omitempty"`
	StartTime  string   `json:"start_time,omitempty"`
	EndDate    *Date    `json:"end_date,omitempty"`
	EndTime    string   `json:"end_time,omitempty"`
}

// HasDateRange reports whether the UI pinned either end of the date window.
// When it does, the UI window wins over anything the reasoning step inferred.
func (f *UIFilter) HasDateRange() bool {
	return f != nil && (f.StartDate != nil || f.EndDate != nil)
}

// ProviderTags returns the inbox tags that actually narrow the search.
// "ALL" is dropped; an empty result means no provider constraint.
func (f *UIFilter) ProviderTags() []string {
	if f == nil {
		return nil
	}
	var tags []string
	seen := make(map[string]bool, len(f.Inboxes))
	for _, inbox := range f.Inboxes {
		tag := strings.ToUpper(strings.TrimSpace(inbox))
		if tag == "" || tag == string(InboxAll) || seen[tag] {
			continue
		}
		seen[tag] = true
		tags = append(tags, tag)
	}
	return tags
}

// Validate checks the time-of-day fields. Dates are validated while decoding.
func (f *UIFilter) Validate() error {
	if f == nil {
		return nil
	}
	if f.StartTime != "" {
		if _, _, err := parseClock(f.StartTime); err != nil {
			return fmt.Errorf("start_time: %w", err)
		}
	}
	if f.EndTime != "" {
		if _, _, err := parseClock(f.EndTime); err != nil {
			return fmt.Errorf("end_time: %w", err)
		}
	}
	return nil
}

// StartUnix returns the lower bound of the UI window in unix seconds.
func (f *UIFilter) StartUnix(loc *time.Location) (int64, bool, error) {
	if f == nil || f.StartDate == nil {
		return 0, false, nil
	}
	ts, err := combine(*f.StartDate, f.StartTime, DefaultStartTime, loc)
	return ts, err == nil, err
}

// EndUnix returns the upper bound of the UI window in unix seconds.
func (f *UIFilter) EndUnix(loc *time.Location) (int64, bool, error) {
	if f == nil || f.EndDate == nil {
		return 0, false, nil
	}
	ts, err := combine(*f.EndDate, f.EndTime, DefaultEndTime, loc)
	return ts, err == nil, err
}

func combine(d Date, clock, fallback string, loc *time.Location) (int64, error) {
	if clock == "" {
		clock = fallback
	}
	hour, minute, err := parseClock(clock)
	if err != nil {
		return 0, err
	}
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(d.Year, d.Month, d.Day, hour, minute, 0, 0, loc).Unix(), nil
}

func parseClock(s string) (int, int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time %q: expected HH:MM", s)
	}
	return t.Hour(), t.Minute(), nil
}

// =============================================================================
// Reasoning Filter
// =============================================================================

// DateOperator is a comparison emitted by the reasoning step.
type DateOperator string

const (
	OpLte DateOperator = "$lte"
	OpGte DateOperator = "$gte"
	OpEq  DateOperator = "$eq"
	OpNe  DateOperator = "$ne"
	OpGt  DateOperator = "$gt"
	OpLt  DateOperator = "$lt"
)

// IsValid reports whether op is one of the six recognised operators.
func (op DateOperator) IsValid() bool {
	switch op {
	case OpLte, OpGte, OpEq, OpNe, OpGt, OpLt:
		return true
	}
	return false
}

// ReasoningFilter is the structured interpretation of a free-text query.
// The zero value is the empty filter.
type ReasoningFilter struct {
	FilteringByDate            bool                   `json:"filtering_by_date"`
	AskingAboutSpecificDetails bool                   `json:"is_asking_about_specific_details"`
	Date                       map[DateOperator]int64 `json:"date,omitempty"`
}

// IsEmpty reports whether the filter carries no information.
func (r ReasoningFilter) IsEmpty() bool {
	return !r.FilteringByDate && !r.AskingAboutSpecificDetails && len(r.Date) == 0
}

// Bound returns the timestamp for op, if the reasoning step produced one.
func (r ReasoningFilter) Bound(op DateOperator) (int64, bool) {
	v, ok := r.Date[op]
	return v, ok
}
