package persistence

import (
	"database/sql/driver"
	"strings"
	"testing"
)

func TestListAccountsArgs(t *testing.T) {
	tests := []struct {
		name      string
		providers []string
		want      string
	}{
		{"no filter", nil, "{}"},
		{"empty filter", []string{}, "{}"},
		{"providers", []string{"GMAIL", "OUTLOOK"}, `{"GMAIL","OUTLOOK"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := listAccountsArgs("owner", tt.providers)
			if len(args) != 2 || args[0] != "owner" {
				t.Fatalf("unexpected args %#v", args)
			}
			valuer, ok := args[1].(driver.Valuer)
			if !ok {
				t.Fatalf("providers are not bound as an array: %T", args[1])
			}
			got, err := valuer.Value()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("array literal = %v, want %s", got, tt.want)
			}
		})
	}

	if !strings.Contains(listAccountsQuery, "provider = ANY($2::text[])") {
		t.Error("query must filter providers with the bound array")
	}
}
