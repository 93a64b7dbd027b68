package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JobRelevance is the classifier verdict for an email. It has exactly
// three values; the zero value is UnknownRelevance.
type JobRelevance int8

const (
	UnknownRelevance JobRelevance = iota
	JobRelated
	NotJobRelated
)

func (r JobRelevance) String() string {
	switch r {
	case JobRelated:
		return "job_related"
	case NotJobRelated:
		return "not_job_related"
	default:
		return "unknown"
	}
}

// RelevanceFromBool maps a stored or requested boolean to a relevance.
func RelevanceFromBool(b bool) JobRelevance {
	if b {
		return JobRelated
	}
	return NotJobRelated
}

// GormDataType stores the value in a nullable boolean column.
func (JobRelevance) GormDataType() string {
	return "bool"
}

// Value writes true, false or NULL.
func (r JobRelevance) Value() (driver.Value, error) {
	switch r {
	case JobRelated:
		return true, nil
	case NotJobRelated:
		return false, nil
	default:
		return nil, nil
	}
}

// Scan reads a nullable boolean column. Drivers disagree on the Go type of
// a boolean, so integers and text are accepted too.
func (r *JobRelevance) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*r = UnknownRelevance
	case bool:
		*r = RelevanceFromBool(v)
	case int64:
		*r = RelevanceFromBool(v != 0)
	case []byte:
		return r.scanText(string(v))
	case string:
		return r.scanText(v)
	default:
		return fmt.Errorf("cannot scan %T into JobRelevance", src)
	}
	return nil
}

func (r *JobRelevance) scanText(s string) error {
	switch s {
	case "1", "t", "true", "TRUE":
		*r = JobRelated
	case "0", "f", "false", "FALSE":
		*r = NotJobRelated
	default:
		return fmt.Errorf("cannot scan %q into JobRelevance", s)
	}
	return nil
}

// MarshalJSON renders true, false or null.
func (r JobRelevance) MarshalJSON() ([]byte, error) {
	switch r {
	case JobRelated:
		return []byte("true"), nil
	case NotJobRelated:
		return []byte("false"), nil
	default:
		return []byte("null"), nil
	}
}

func (r *JobRelevance) UnmarshalJSON(data []byte) error {
	var b *bool
	if err := json.Unmarshal(data, &b); err != nil {
		return fmt.Errorf("is_job_related must be true, false or null: %w", err)
	}
	if b == nil {
		*r = UnknownRelevance
		return nil
	}
	*r = RelevanceFromBool(*b)
	return nil
}
