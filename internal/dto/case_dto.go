package dto

import (
	"fmt"
	"strings"
	"time"
)

type CreateCaseRequest struct {
	Title       string                 `json:"title" form:"title" validate:"required,notblank,max=255"`
	ClientName  string                 `json:"client_name" form:"client_name" validate:"max=255"`
	Description string                 `json:"description" form:"description" validate:"max=10000"`
	Status      string                 `json:"status" form:"status" validate:"omitempty,oneof=open in_progress closed"`
	Attributes  map[string]interface{} `json:"attributes" form:"-"`
}

type CaseResponse struct {
	Id          int64                  `json:"id"`
	Title       string                 `json:"title"`
	ClientName  string                 `json:"client_name"`
	Description string                 `json:"description"`
	Status      string                 `json:"status"`
	Attributes  map[string]interface{} `json:"attributes"`
	CreatedBy   string                 `json:"created_by"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   *time.Time             `json:"updated_at"`
}

// ParseAttributes reads one "key: value" pair per line. Blank lines are skipped.
func ParseAttributes(text string) (map[string]interface{}, error) {
	attrs := map[string]interface{}{}
	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("line %d: expected \"key: value\"", i+1)
		}
		attrs[key] = strings.TrimSpace(value)
	}
	return attrs, nil
}

// FormatAttributes is the inverse of ParseAttributes, used to refill the form.
func FormatAttributes(attrs map[string]interface{}) string {
	var b strings.Builder
	for k, v := range attrs {
		fmt.Fprintf(&b, "%s: %v\n", k, v)
	}
	return b.String()
}
