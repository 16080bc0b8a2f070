package domain

// StrategyKind names the retrieval path a query took.
type StrategyKind string

const (
	StrategyDateFilter StrategyKind = "date_filter"
	StrategySemantic   StrategyKind = "semantic"
)

// QueryResult is the answer for one account.
type QueryResult struct {
	UserKey   string          `json:"user_key"`
	Strategy  StrategyKind    `json:"strategy"`
	Reasoning ReasoningFilter `json:"reasoning"`
	Messages  []*Message      `json:"messages"`

	// Candidates is the size of the date-path store scan, or the number of
	// vector hits on the semantic path, before narrowing or hydration.
	Candidates int `json:"candidates"`
}

// AccountFailure records an account whose retrieval failed during a fan-out.
type AccountFailure struct {
	UserKey string `json:"user_key"`
	Err     error  `json:"-"`
	Message string `json:"error"`
}

// MultiAccountResult merges the answers of several accounts.
type MultiAccountResult struct {
	Reasoning ReasoningFilter  `json:"reasoning"`
	Messages  []*Message       `json:"messages"`
	Accounts  []*QueryResult   `json:"accounts"`
	Failures  []AccountFailure `json:"failures,omitempty"`
}
