package validate

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ErrValidation is matched by every *Errors value.
var ErrValidation = errors.New("validate: validation failed")

type (
	// Rule decides whether the value of one field is valid.
	// A returned error marks the rule as failed; its text becomes the message.
	Rule interface {
		Validate(ctx context.Context, value any, field string, data map[string]any) (bool, error)
		Message(field string) string
	}

	// RuleFunc type is an adapter which allows the use of ordinary
	// functions as rules. The message is fixed.
	RuleFunc func(ctx context.Context, value any, field string, data map[string]any) (bool, error)
)

// Validate returns f(ctx, value, field, data).
func (f RuleFunc) Validate(ctx context.Context, value any, field string, data map[string]any) (bool, error) {
	return f(ctx, value, field, data)
}

// Message returns a generic message.
func (RuleFunc) Message(field string) string {
	return Label(field) + " is invalid"
}

// Validator holds an ordered rule list per field.
// It is safe for concurrent use once configured.
type Validator struct {
	mu       sync.RWMutex
	fields   []string
	rules    map[string][]Rule
	messages map[string]string
}

// New returns an empty validator.
func New() *Validator {
	return &Validator{
		rules:    make(map[string][]Rule),
		messages: make(map[string]string),
	}
}

// Add appends rules to the chain of field.
func (v *Validator) Add(field string, rules ...Rule) *Validator {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.rules[field]; !ok {
		v.fields = append(v.fields, field)
	}
	v.rules[field] = append(v.rules[field], rules...)
	return v
}

// SetMessage replaces the message of every failed rule of field.
// Pass/fail decisions are unchanged.
func (v *Validator) SetMessage(field, msg string) *Validator {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.messages[field] = msg
	return v
}

// Fields returns the fields with rules, in the order they were added.
func (v *Validator) Fields() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return slices.Clone(v.fields)
}

type check struct {
	field string
	rule  Rule
	msg   string
	ok    bool
}

// Validate runs every rule against data and returns nil or *Errors.
func (v *Validator) Validate(ctx context.Context, data map[string]any) error {
	v.mu.RLock()
	var checks []*check
	for _, f := range v.fields {
		for _, r := range v.rules[f] {
			checks = append(checks, &check{field: f, rule: r})
		}
	}
	messages := make(map[string]string, len(v.messages))
	for f, m := range v.messages {
		messages[f] = m
	}
	v.mu.RUnlock()

	var g errgroup.Group
	for _, c := range checks {
		g.Go(func() error {
			c.ok, c.msg = run(ctx, c.rule, c.field, data)
			return nil
		})
	}
	_ = g.Wait()

	errs := &Errors{}
	for _, c := range checks {
		if c.ok {
			continue
		}
		msg := c.msg
		if m, ok := messages[c.field]; ok {
			msg = m
		}
		errs.Add(c.field, msg)
	}
	if errs.Len() == 0 {
		return nil
	}
	return errs
}

func run(ctx context.Context, r Rule, field string, data map[string]any) (ok bool, msg string) {
	defer func() {
		if p := recover(); p != nil {
			ok, msg = false, fmt.Sprint(p)
		}
	}()
	ok, err := r.Validate(ctx, data[field], field, data)
	switch {
	case err != nil:
		return false, err.Error()
	case !ok:
		return false, r.Message(field)
	}
	return true, ""
}

// Errors is a field-keyed set of validation messages.
type Errors struct {
	fields []string
	msgs   map[string][]string
}

// Add appends a message to field.
func (e *Errors) Add(field, msg string) {
	if e.msgs == nil {
		e.msgs = make(map[string][]string)
	}
	if _, ok := e.msgs[field]; !ok {
		e.fields = append(e.fields, field)
	}
	e.msgs[field] = append(e.msgs[field], msg)
}

// Merge appends all messages of other.
func (e *Errors) Merge(other *Errors) *Errors {
	if other == nil {
		return e
	}
	for _, f := range other.fields {
		for _, m := range other.msgs[f] {
			e.Add(f, m)
		}
	}
	return e
}

// HasError reports whether field has at least one message.
func (e *Errors) HasError(field string) bool {
	return len(e.msgs[field]) > 0
}

// Get returns the messages of field in rule order.
func (e *Errors) Get(field string) []string {
	return slices.Clone(e.msgs[field])
}

// All returns every message, grouped by field.
func (e *Errors) All() []string {
	var all []string
	for _, f := range e.fields {
		all = append(all, e.msgs[f]...)
	}
	return all
}

// Fields returns the failed fields in validator order.
func (e *Errors) Fields() []string {
	return slices.Clone(e.fields)
}

// Len returns the number of failed fields.
func (e *Errors) Len() int {
	return len(e.fields)
}

// Error renders one line per field.
func (e *Errors) Error() string {
	lines := make([]string, len(e.fields))
	for i, f := range e.fields {
		lines[i] = f + ": " + strings.Join(e.msgs[f], ", ")
	}
	return strings.Join(lines, "\n")
}

// Is reports whether target is ErrValidation.
func (e *Errors) Is(target error) bool {
	return target == ErrValidation
}

// AsErrors returns the *Errors in err's chain.
func AsErrors(err error) (*Errors, bool) {
	var e *Errors
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
