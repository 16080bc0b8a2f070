package search

import (
	"testing"
	"time"

	"github.com/InboxGenie/IG-Gmail-MCP/core/domain"

	"github.com/google/go-cmp/cmp"
)

var (
	jan1  = int64(1704067200) // 2024-01-01 00:00 UTC
	jan31 = int64(1706745540) // 2024-01-31 23:59 UTC
	mar3  = int64(1709424000) // 2024-03-03 00:00 UTC
	mar10 = int64(1710028800) // 2024-03-10 00:00 UTC
)

func date(y int, m time.Month, d int) *domain.Date {
	return &domain.Date{Year: y, Month: m, Day: d}
}

func createdRange(gte, lte *int64) domain.Range {
	return domain.Range{Field: domain.FieldCreatedAt, Gte: gte, Lte: lte}
}

func TestToStorePredicate(t *testing.T) {
	now := time.Unix(mar10+3600, 0).UTC()
	lastWeek := domain.ReasoningFilter{
		FilteringByDate: true,
		Date:            map[domain.DateOperator]int64{domain.OpGte: mar3, domain.OpLte: mar10},
	}

	tests := []struct {
		name string
		rf   domain.ReasoningFilter
		ui   *domain.UIFilter
		want domain.Predicate
	}{
		{
			name: "nothing",
			want: nil,
		},
		{
			name: "reasoning window",
			rf:   lastWeek,
			want: createdRange(domain.Int64(mar3), domain.Int64(mar10)),
		},
		{
			name: "reasoning gte only closes at now",
			rf:   domain.ReasoningFilter{FilteringByDate: true, Date: map[domain.DateOperator]int64{domain.OpGte: mar3}},
			want: createdRange(domain.Int64(mar3), domain.Int64(now.Unix())),
		},
		{
			name: "reasoning without gte is ignored",
			rf:   domain.ReasoningFilter{FilteringByDate: true, Date: map[domain.DateOperator]int64{domain.OpLte: mar10}},
			want: nil,
		},
		{
			name: "ui window wins over reasoning",
			rf:   lastWeek,
			ui:   &domain.UIFilter{StartDate: date(2024, 1, 1), EndDate: date(2024, 1, 31)},
			want: createdRange(domain.Int64(jan1), domain.Int64(jan31)),
		},
		{
			name: "ui start only suppresses reasoning",
			rf:   lastWeek,
			ui:   &domain.UIFilter{StartDate: date(2024, 1, 1)},
			want: createdRange(domain.Int64(jan1), nil),
		},
		{
			name: "ui end only",
			ui:   &domain.UIFilter{EndDate: date(2024, 1, 31)},
			want: createdRange(nil, domain.Int64(jan31)),
		},
		{
			name: "ui times",
			ui:   &domain.UIFilter{StartDate: date(2024, 1, 1), StartTime: "08:30", EndDate: date(2024, 1, 1), EndTime: "09:00"},
			want: createdRange(domain.Int64(jan1+8*3600+30*60), domain.Int64(jan1+9*3600)),
		},
		{
			name: "inbox ALL only adds nothing",
			ui:   &domain.UIFilter{Inboxes: []string{"ALL"}},
			want: nil,
		},
		{
			name: "inbox tags drop ALL",
			ui:   &domain.UIFilter{Inboxes: []string{"ALL", "gmail"}},
			want: domain.In{Field: domain.FieldProvider, Values: []string{"GMAIL"}},
		},
		{
			name: "reasoning and ui leaves fold into one conjunction",
			rf:   lastWeek,
			ui: &domain.UIFilter{
				Inboxes:    []string{"GMAIL"},
				Recipients: []string{"bob@x.com", " bob@x.com"},
				FromEmail:  "jane@x.com",
			},
			want: domain.And{Children: []domain.Predicate{
				createdRange(domain.Int64(mar3), domain.Int64(mar10)),
				domain.In{Field: domain.FieldProvider, Values: []string{"GMAIL"}},
				domain.In{Field: domain.FieldRecipients, Values: []string{"bob@x.com"}},
				domain.Eq{Field: domain.FieldSender, Value: "jane@x.com"},
			}},
		},
	}

	tr := NewQueryTransformer(time.UTC)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tr.ToStorePredicate(tt.rf, tt.ui, now)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("predicate mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestToStorePredicate_InvalidTime(t *testing.T) {
	tr := NewQueryTransformer(time.UTC)
	_, err := tr.ToStorePredicate(domain.ReasoningFilter{}, &domain.UIFilter{StartDate: date(2024, 1, 1), StartTime: "25:99"}, time.Now())
	if err == nil {
		t.Error("expected error for malformed start_time")
	}
}

func TestToVectorPredicate(t *testing.T) {
	tr := NewQueryTransformer(time.UTC)

	t.Run("always scoped", func(t *testing.T) {
		got, err := tr.ToVectorPredicate("uk-1", nil, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := domain.VectorPredicate{"user_key": {domain.VecIn: []string{"uk-1"}}}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("ui fields and ids", func(t *testing.T) {
		ui := &domain.UIFilter{
			Inboxes:    []string{"ALL"},
			Recipients: []string{"bob@x.com"},
			FromEmail:  "jane@x.com",
			StartDate:  date(2024, 1, 1),
			EndDate:    date(2024, 1, 31),
		}
		got, err := tr.ToVectorPredicate("uk-1", []string{"m1"}, ui)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := domain.VectorPredicate{
			"user_key":   {domain.VecIn: []string{"uk-1"}},
			"id":         {domain.VecIn: []string{"m1"}},
			"recipients": {domain.VecIn: []string{"bob@x.com"}},
			"sender":     {domain.VecIn: []string{"jane@x.com"}},
			"created_at": {domain.VecGte: jan1, domain.VecLte: jan31},
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	})
}

// The store and vector predicates built from the same UI filter must agree on the window.
func TestPredicatesAgreeOnDates(t *testing.T) {
	tr := NewQueryTransformer(time.UTC)
	ui := &domain.UIFilter{StartDate: date(2024, 1, 1), EndDate: date(2024, 1, 31)}

	store, err := tr.ToStorePredicate(domain.ReasoningFilter{}, ui, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	vec, err := tr.ToVectorPredicate("uk", nil, ui)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r := store.(domain.Range)
	if *r.Gte != vec["created_at"][domain.VecGte] || *r.Lte != vec["created_at"][domain.VecLte] {
		t.Errorf("store %v and vector %v disagree", r, vec["created_at"])
	}
}

func TestSenderWindowPredicate(t *testing.T) {
	tr := NewQueryTransformer(time.UTC)

	got := tr.SenderWindowPredicate([]string{"a@x.com", "b@x.com"}, domain.Int64(jan1), nil)
	want := domain.And{Children: []domain.Predicate{
		domain.Or{Children: []domain.Predicate{
			domain.Eq{Field: domain.FieldSender, Value: "a@x.com"},
			domain.Eq{Field: domain.FieldSender, Value: "b@x.com"},
		}},
		createdRange(domain.Int64(jan1), nil),
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	if p := tr.SenderWindowPredicate(nil, nil, nil); p != nil {
		t.Errorf("expected nil predicate, got %v", p)
	}
	single := tr.SenderWindowPredicate([]string{"a@x.com"}, nil, nil)
	if diff := cmp.Diff(domain.Eq{Field: domain.FieldSender, Value: "a@x.com"}, single); diff != "" {
		t.Errorf("single sender mismatch (-want +got):\n%s", diff)
	}
}
