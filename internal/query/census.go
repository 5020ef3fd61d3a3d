package query

import (
	"net/url"
	"strings"
)

// Census describes a county-level request against the Census Bureau data API.
type Census struct {
	Variables []string
	Counties  []string
	State     string
	Key       string
}

// Values returns get/for/in (and key when set).
func (c Census) Values() url.Values {
	v := url.Values{}
	get := append([]string{"NAME"}, c.Variables...)
	v.Set("get", strings.Join(get, ","))
	if len(c.Counties) > 0 {
		v.Set("for", "county:"+strings.Join(c.Counties, ","))
	}
	if c.State != "" {
		v.Set("in", "state:"+c.State)
	}
	if c.Key != "" {
		v.Set("key", c.Key)
	}
	return v
}

// URL appends the encoded query to base.
func (c Census) URL(base string) string {
	return withQuery(base, c.Values().Encode())
}
