package http

import (
	"math"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"pocketplan/internal/aggregate"
)

func TestParseChartOptions(t *testing.T) {
	tests := []struct {
		name        string
		query       string
		days        float64
		granularity aggregate.Granularity
	}{
		{"defaults", "", DefaultChartDays, aggregate.Daily},
		{"explicit days", "days=90&granularity=weekly", 90, aggregate.Weekly},
		{"monthly", "granularity=MONTHLY", DefaultChartDays, aggregate.Monthly},
		{"unparseable days", "days=soon", DefaultChartDays, aggregate.Daily},
		{"fractional", "days=7.5", 7.5, aggregate.Daily},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, _ := url.ParseQuery(tt.query)
			got := ParseChartOptions(q)
			if got.Days != tt.days || got.Granularity != tt.granularity {
				t.Errorf("got %+v, want days=%v granularity=%s", got, tt.days, tt.granularity)
			}
		})
	}

	q, _ := url.ParseQuery("days=all")
	if got := ParseChartOptions(q); !math.IsInf(got.Days, 1) {
		t.Errorf("days=all should select the whole range, got %v", got.Days)
	}
}

func TestParseListQuery(t *testing.T) {
	q, _ := url.ParseQuery("search=%20coffee%20&type=expense&order=OLDEST")
	got := ParseListQuery(q)
	if got.Search != "coffee" || got.Type != "Expense" || got.Order != aggregate.OrderOldest {
		t.Fatalf("unexpected query %+v", got)
	}

	got = ParseListQuery(url.Values{})
	if got.Type != aggregate.TypeAll || got.Order != aggregate.OrderNewest {
		t.Fatalf("unexpected defaults %+v", got)
	}

	q, _ = url.ParseQuery("type=all&order=sideways")
	got = ParseListQuery(q)
	if got.Type != aggregate.TypeAll || got.Order != aggregate.OrderNewest {
		t.Fatalf("unexpected fallbacks %+v", got)
	}
}

func TestNormalizeType(t *testing.T) {
	tests := map[string]string{
		"income":  "Income",
		"EXPENSE": "Expense",
		" saving": "Saving",
		"":        "",
	}
	for in, want := range tests {
		if got := normalizeType(in); got != want {
			t.Errorf("normalizeType(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDecodeJSON(t *testing.T) {
	t.Run("normalizes before validating", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"type":"income","amount":"12.5","category":" Food "}`))
		var req transactionRequest
		if err := DecodeJSON(httptest.NewRecorder(), r, &req); err != nil {
			t.Fatalf("DecodeJSON: %v", err)
		}
		if req.Type != "Income" || req.Amount.Float() != 12.5 || req.Category != "Food" {
			t.Fatalf("unexpected request %+v", req)
		}
	})

	t.Run("reports json field names", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"type":"Saving","target":-1}`))
		var req goalRequest
		err := DecodeJSON(httptest.NewRecorder(), r, &req)
		fields := ProcessValidationErrors(err)
		if fields["name"] != "required" || fields["target"] != "gte" {
			t.Fatalf("unexpected fields %v", fields)
		}
	})

	t.Run("empty body", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
		var req emailRequest
		err := DecodeJSON(httptest.NewRecorder(), r, &req)
		if err == nil || ProcessValidationErrors(err) != nil {
			t.Fatalf("expected a decode error, got %v", err)
		}
	})

	t.Run("body too large", func(t *testing.T) {
		big := `{"email":"` + strings.Repeat("a", maxBodyBytes) + `"}`
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(big))
		rr := httptest.NewRecorder()
		var req emailRequest
		err := DecodeJSON(rr, r, &req)
		writeDecodeError(rr, err)
		if rr.Code != http.StatusRequestEntityTooLarge {
			t.Fatalf("expected 413, got %d", rr.Code)
		}
	})
}

func TestProfileRequestIdentityChange(t *testing.T) {
	balance := 10.0
	if (profileRequest{BaseBalance: &balance}).identityChange() {
		t.Error("base balance alone is not an identity change")
	}
	if !(profileRequest{Password: "secret1"}).identityChange() {
		t.Error("password change should count as identity change")
	}
}
