package models

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Query is the unit of upstream ticket lookup
type Query struct {
	Date     string `json:"date"`
	FromCode string `json:"fromCode"`
	ToCode   string `json:"toCode"`
}

// Key returns the cache key for the query
func (q Query) Key() string {
	return q.Date + "|" + q.FromCode + "|" + q.ToCode
}

func (q Query) String() string {
	return fmt.Sprintf("%s %s->%s", q.Date, q.FromCode, q.ToCode)
}

// TicketQueryResponse is the raw ticket query response
type TicketQueryResponse struct {
	Status     bool `json:"status"`
	HTTPStatus int  `json:"httpstatus"`
	Data       struct {
		Result []string          `json:"result"`
		Flag   string            `json:"flag"`
		Map    map[string]string `json:"map"`
	} `json:"data"`
}

// Dates is a list of travel dates that decodes from a YAML scalar or sequence
type Dates []string

// UnmarshalYAML accepts `date: 2026-10-20` as well as a list
func (d *Dates) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*d = Dates{node.Value}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*d = list
		return nil
	}
	return fmt.Errorf("line %d: date must be a string or a list of strings", node.Line)
}

// TrainsFilter restricts boarding/alighting stations and hour windows.
// Empty lists and nil hours mean no restriction.
type TrainsFilter struct {
	From         []string `yaml:"from,omitempty" json:"from,omitempty"`
	To           []string `yaml:"to,omitempty" json:"to,omitempty"`
	FromTeleCode []string `yaml:"fromTeleCode,omitempty" json:"fromTeleCode,omitempty"`
	ToTeleCode   []string `yaml:"toTeleCode,omitempty" json:"toTeleCode,omitempty"`
	BeginHour    *int     `yaml:"beginHour,omitempty" json:"beginHour,omitempty" validate:"omitempty,min=0,max=23"`
	EndHour      *int     `yaml:"endHour,omitempty" json:"endHour,omitempty" validate:"omitempty,min=0,max=48"`
}

// TrainRule is one entry of the explicit train allow-list
type TrainRule struct {
	Code string `yaml:"code" json:"code" validate:"required"`
	From string `yaml:"from,omitempty" json:"from,omitempty"`
	To   string `yaml:"to,omitempty" json:"to,omitempty"`
}

// Matches reports whether a train code and resolved station names satisfy the rule
func (r TrainRule) Matches(code, fromName, toName string) bool {
	if r.Code != code {
		return false
	}
	if r.From != "" && r.From != fromName {
		return false
	}
	if r.To != "" && r.To != toName {
		return false
	}
	return true
}

// Exclude removes trains by code or by destination name
type Exclude struct {
	Trains []string `yaml:"trains,omitempty" json:"trains,omitempty"`
	To     []string `yaml:"to,omitempty" json:"to,omitempty"`
}

// Excludes reports whether the train code or alighting station is excluded
func (e *Exclude) Excludes(code, toName string) bool {
	if e == nil {
		return false
	}
	for _, c := range e.Trains {
		if c == code {
			return true
		}
	}
	for _, n := range e.To {
		if n == toName {
			return true
		}
	}
	return false
}

// SearchConfig is one watch entry
type SearchConfig struct {
	Date         Dates          `yaml:"date" json:"date" validate:"required,min=1,dive,datetime=2006-01-02"`
	From         string         `yaml:"from" json:"from" validate:"required"`
	To           string         `yaml:"to" json:"to" validate:"required"`
	TrainsFilter *TrainsFilter  `yaml:"trains_filter,omitempty" json:"trains_filter,omitempty"`
	SeatCategory []SeatCategory `yaml:"seatCategory,omitempty" json:"seatCategory,omitempty" validate:"dive,seatcategory"`
	Trains       []TrainRule    `yaml:"trains,omitempty" json:"trains,omitempty" validate:"dive"`
	Exclude      *Exclude       `yaml:"exclude,omitempty" json:"exclude,omitempty"`
	Remark       string         `yaml:"remark,omitempty" json:"remark,omitempty"`
}

// AllowedSeats returns the seat allow-list, nil when unrestricted
func (c *SearchConfig) AllowedSeats() SeatSet {
	return NewSeatSet(c.SeatCategory)
}
