// Package validation checks submitted exercise fields against shallow
// textual rules. Submissions are never parsed or executed.
package validation

import (
	"strings"

	"github.com/felixgeelhaar/playground/internal/domain"
)

// Rule is a requirement on one submitted field.
type Rule struct {
	Field    string
	Contains []string
	Equals   string
}

// Failure describes the first requirement a submission missed.
type Failure struct {
	Field   string `json:"field"`
	Missing string `json:"missing,omitempty"`
}

// Result is the outcome of validating a submission.
type Result struct {
	Passed  bool     `json:"passed"`
	Failure *Failure `json:"failure,omitempty"`
}

// RuleSet maps exercise ids to their rules.
type RuleSet struct {
	rules map[int][]Rule
}

// NewRuleSet creates an empty rule set.
func NewRuleSet() *RuleSet {
	return &RuleSet{rules: make(map[int][]Rule)}
}

// FromLevel builds the rule set for a level's exercises.
func FromLevel(level *domain.Level) *RuleSet {
	rs := NewRuleSet()
	for _, ex := range level.Exercises {
		rules := make([]Rule, 0, len(ex.Checks))
		for _, c := range ex.Checks {
			rules = append(rules, Rule{Field: c.Field, Contains: c.Contains, Equals: c.Equals})
		}
		rs.Add(ex.ID, rules...)
	}
	return rs
}

// Add registers rules for an exercise. An exercise added with no rules
// accepts any submission that has a non-blank field.
func (rs *RuleSet) Add(exerciseID int, rules ...Rule) {
	rs.rules[exerciseID] = append(rs.rules[exerciseID], rules...)
}

// Has reports whether the exercise is known.
func (rs *RuleSet) Has(exerciseID int) bool {
	_, ok := rs.rules[exerciseID]
	return ok
}

// Validate reports whether the fields satisfy every rule for the exercise.
func (rs *RuleSet) Validate(exerciseID int, fields map[string]string) bool {
	return rs.Check(exerciseID, fields).Passed
}

// Check validates the fields and reports the first failing requirement.
func (rs *RuleSet) Check(exerciseID int, fields map[string]string) Result {
	rules, ok := rs.rules[exerciseID]
	if !ok {
		return Result{Failure: &Failure{}}
	}

	if len(rules) == 0 {
		for _, v := range fields {
			if strings.TrimSpace(v) != "" {
				return Result{Passed: true}
			}
		}
		return Result{Failure: &Failure{}}
	}

	for _, r := range rules {
		if f := r.check(fields[r.Field]); f != nil {
			return Result{Failure: f}
		}
	}
	return Result{Passed: true}
}

func (r Rule) check(value string) *Failure {
	if strings.TrimSpace(value) == "" {
		return &Failure{Field: r.Field}
	}
	if r.Equals != "" && strings.TrimSpace(value) != r.Equals {
		return &Failure{Field: r.Field, Missing: r.Equals}
	}
	for _, token := range r.Contains {
		if !strings.Contains(value, token) {
			return &Failure{Field: r.Field, Missing: token}
		}
	}
	return nil
}
