// Package rquest defines the wire types exchanged with an RQuest task API:
// the task payloads received from the poll endpoint and the result envelope
// posted back to the submit endpoint.
package rquest

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// TaskKind discriminates the two query task families.
type TaskKind string

const (
	TaskAvailability TaskKind = "availability"
	TaskDistribution TaskKind = "distribution"
)

// DistributionCode identifies the analysis requested by a distribution task.
type DistributionCode string

const (
	DistributionGeneric      DistributionCode = "GENERIC"
	DistributionDemographics DistributionCode = "DEMOGRAPHICS"
	DistributionICDMain      DistributionCode = "ICD-MAIN"
)

// FileName returns the result file name the task API expects for this
// analysis code.
func (c DistributionCode) FileName() string {
	switch c {
	case DistributionDemographics:
		return "demographics.distribution"
	default:
		return "code.distribution"
	}
}

// ErrUnknownTask is returned when a poll payload matches neither task family.
var ErrUnknownTask = errors.New("rquest: unknown task payload")

// StringOrNumber accepts both JSON strings and bare numbers, which the task
// API mixes freely in rule values.
type StringOrNumber string

func (s *StringOrNumber) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = StringOrNumber(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("rquest: value is neither string nor number: %w", err)
	}
	*s = StringOrNumber(n.String())
	return nil
}

func (s StringOrNumber) String() string { return string(s) }

// Int parses the value as a base-10 integer.
func (s StringOrNumber) Int() (int64, error) {
	return strconv.ParseInt(string(s), 10, 64)
}

// Rule is a single predicate inside a cohort group.
type Rule struct {
	Varname           string         `json:"varname"`
	Type              string         `json:"type"`
	Operator          string         `json:"oper"`
	Value             StringOrNumber `json:"value"`
	Time              string         `json:"time,omitempty"`
	Varcat            string         `json:"varcat,omitempty"`
	SecondaryModifier []int64        `json:"secondary_modifier,omitempty"`
}

// Group combines rules under a boolean operator.
type Group struct {
	Rules    []Rule `json:"rules"`
	Operator string `json:"rules_oper"`
}

// Cohort combines groups under a boolean operator.
type Cohort struct {
	Groups   []Group `json:"groups"`
	Operator string  `json:"groups_oper"`
}

// AvailabilityQuery asks for a single count of subjects matching a cohort.
type AvailabilityQuery struct {
	UUID            string `json:"uuid"`
	Owner           string `json:"owner"`
	Cohort          Cohort `json:"cohort"`
	Collection      string `json:"collection"`
	ProtocolVersion string `json:"protocol_version"`
	CharSalt        string `json:"char_salt"`
}

// DistributionQuery asks for counts broken down by a secondary dimension.
type DistributionQuery struct {
	UUID       string           `json:"uuid"`
	Owner      string           `json:"owner"`
	Code       DistributionCode `json:"code"`
	Analysis   string           `json:"analysis"`
	Collection string           `json:"collection"`
}

// Task is a decoded poll payload, exactly one of the two query fields set.
type Task struct {
	Kind         TaskKind
	Availability *AvailabilityQuery
	Distribution *DistributionQuery
}

// UUID returns the task identifier regardless of kind.
func (t *Task) UUID() string {
	if t.Kind == TaskDistribution {
		return t.Distribution.UUID
	}
	return t.Availability.UUID
}

// Collection returns the target collection identifier regardless of kind.
func (t *Task) Collection() string {
	if t.Kind == TaskDistribution {
		return t.Distribution.Collection
	}
	return t.Availability.Collection
}

// DecodeTask decodes a poll response body. Payloads carrying an "analysis"
// key are distribution tasks, everything else with a cohort is an
// availability task.
func DecodeTask(data []byte) (*Task, error) {
	var probe struct {
		Analysis *string          `json:"analysis"`
		Cohort   *json.RawMessage `json:"cohort"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("rquest: malformed task payload: %w", err)
	}

	switch {
	case probe.Analysis != nil:
		var q DistributionQuery
		if err := json.Unmarshal(data, &q); err != nil {
			return nil, fmt.Errorf("rquest: malformed distribution task: %w", err)
		}
		if q.UUID == "" || q.Collection == "" {
			return nil, fmt.Errorf("%w: distribution task missing uuid or collection", ErrUnknownTask)
		}
		return &Task{Kind: TaskDistribution, Distribution: &q}, nil
	case probe.Cohort != nil:
		var q AvailabilityQuery
		if err := json.Unmarshal(data, &q); err != nil {
			return nil, fmt.Errorf("rquest: malformed availability task: %w", err)
		}
		if q.UUID == "" || q.Collection == "" {
			return nil, fmt.Errorf("%w: availability task missing uuid or collection", ErrUnknownTask)
		}
		return &Task{Kind: TaskAvailability, Availability: &q}, nil
	default:
		return nil, ErrUnknownTask
	}
}
