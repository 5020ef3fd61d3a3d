package query

import (
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestSocrataOmitsEmptyFields(t *testing.T) {
	q := Socrata{Select: "boro,count(*) as n", Group: "boro"}
	values, err := url.ParseQuery(q.Encode())
	if err != nil {
		t.Fatalf("parse encoded query: %v", err)
	}
	if values.Get("$select") != "boro,count(*) as n" || values.Get("$group") != "boro" {
		t.Fatalf("unexpected values: %v", values)
	}
	for _, absent := range []string{"$where", "$order", "$limit"} {
		if _, ok := values[absent]; ok {
			t.Fatalf("expected %s to be omitted, got %v", absent, values)
		}
	}
}

func TestSocrataEmptyURL(t *testing.T) {
	endpoint := "https://data.example.org/resource/abcd-1234.json"
	if got := (Socrata{}).URL(endpoint); got != endpoint {
		t.Fatalf("expected bare endpoint, got %s", got)
	}
}

func TestSocrataURLEncodesClauses(t *testing.T) {
	q := Socrata{
		Select: "grade,count(*) as count",
		Where:  "grade IN('A','N','Z')",
		Order:  "count DESC",
		Limit:  8,
	}
	got := q.URL("https://data.example.org/resource/x.json")
	if !strings.HasPrefix(got, "https://data.example.org/resource/x.json?") {
		t.Fatalf("unexpected url: %s", got)
	}
	if strings.Contains(got, " ") || strings.Contains(got, "'") {
		t.Fatalf("expected encoded clauses, got %s", got)
	}
	parsed, err := url.Parse(got)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	if parsed.Query().Get("$limit") != "8" || parsed.Query().Get("$where") != "grade IN('A','N','Z')" {
		t.Fatalf("unexpected query: %v", parsed.Query())
	}
}

func TestClauseHelpers(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	if got := Since("created_date", ts); got != "created_date>'2026-01-02T03:04:05.000'" {
		t.Fatalf("unexpected since clause: %s", got)
	}
	if got := AnyOf("measureid", "OBESITY", "DIABETES"); got != "(measureid='OBESITY' OR measureid='DIABETES')" {
		t.Fatalf("unexpected disjunction: %s", got)
	}
	if got := AnyOf("measureid"); got != "" {
		t.Fatalf("expected empty disjunction, got %s", got)
	}
	if got := And("a=1", "", "  ", "b=2"); got != "a=1 AND b=2" {
		t.Fatalf("unexpected conjunction: %s", got)
	}
}

func TestCensusURL(t *testing.T) {
	q := Census{
		Variables: []string{"B03002_001E", "B03002_003E"},
		Counties:  []string{"005", "047"},
		State:     "36",
	}
	parsed, err := url.Parse(q.URL("https://api.census.gov/data/2022/acs/acs5"))
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	values := parsed.Query()
	if values.Get("get") != "NAME,B03002_001E,B03002_003E" {
		t.Fatalf("unexpected get: %s", values.Get("get"))
	}
	if values.Get("for") != "county:005,047" || values.Get("in") != "state:36" {
		t.Fatalf("unexpected geography: %v", values)
	}
	if _, ok := values["key"]; ok {
		t.Fatalf("expected key to be omitted")
	}
}
