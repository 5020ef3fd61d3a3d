// Package query builds outbound query strings for the open-data APIs.
//
// Clause text is concatenated verbatim; only server-controlled literals may reach it.
package query

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// FloatingTimestamp is the SoQL floating timestamp layout.
const FloatingTimestamp = "2006-01-02T15:04:05.000"

// Socrata describes one SoQL request. Empty fields are omitted from the query string.
type Socrata struct {
	Select string
	Where  string
	Group  string
	Order  string
	Limit  int
}

// Values returns the populated SoQL parameters.
func (s Socrata) Values() url.Values {
	v := url.Values{}
	if s.Select != "" {
		v.Set("$select", s.Select)
	}
	if s.Where != "" {
		v.Set("$where", s.Where)
	}
	if s.Group != "" {
		v.Set("$group", s.Group)
	}
	if s.Order != "" {
		v.Set("$order", s.Order)
	}
	if s.Limit > 0 {
		v.Set("$limit", strconv.Itoa(s.Limit))
	}
	return v
}

// Encode returns the URL-encoded query string without a leading '?'.
func (s Socrata) Encode() string {
	return s.Values().Encode()
}

// URL appends the encoded query to endpoint.
func (s Socrata) URL(endpoint string) string {
	return withQuery(endpoint, s.Encode())
}

// Since renders `field>'<timestamp>'` for a SoQL window filter.
func Since(field string, t time.Time) string {
	return fmt.Sprintf("%s>'%s'", field, t.UTC().Format(FloatingTimestamp))
}

// Equals renders `field='value'`.
func Equals(field, value string) string {
	return fmt.Sprintf("%s='%s'", field, value)
}

// AnyOf renders a parenthesised OR of equality tests; empty when values is empty.
func AnyOf(field string, values ...string) string {
	if len(values) == 0 {
		return ""
	}
	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, Equals(field, v))
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

// And joins the non-empty clauses with AND.
func And(clauses ...string) string {
	kept := clauses[:0:0]
	for _, c := range clauses {
		if strings.TrimSpace(c) != "" {
			kept = append(kept, c)
		}
	}
	return strings.Join(kept, " AND ")
}

func withQuery(endpoint, encoded string) string {
	if encoded == "" {
		return endpoint
	}
	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	return endpoint + sep + encoded
}
