package auth

import (
	"errors"
	"sort"
	"strings"
)

// ErrUnauthorized is returned for every failed login, whatever the cause.
var ErrUnauthorized = errors.New("invalid credentials")

// ValidationErrors maps request fields to human readable problems.
type ValidationErrors struct {
	Fields map[string][]string `json:"errors"`
}

func (v *ValidationErrors) Add(field, message string) {
	if v.Fields == nil {
		v.Fields = make(map[string][]string)
	}
	v.Fields[field] = append(v.Fields[field], message)
}

func (v *ValidationErrors) HasErrors() bool {
	return v != nil && len(v.Fields) > 0
}

func (v *ValidationErrors) Error() string {
	if !v.HasErrors() {
		return "validation failed"
	}

	fields := make([]string, 0, len(v.Fields))
	for field := range v.Fields {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		for _, msg := range v.Fields[field] {
			parts = append(parts, field+" "+msg)
		}
	}
	return "validation failed: " + strings.Join(parts, ", ")
}
