package validate

import (
	"context"
	"fmt"
	"net/mail"
	"reflect"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Label turns a column name into a human readable label: "first_name"
// becomes "First Name". A Caser is stateful, so each call gets its own.
func Label(field string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(field, "_", " "))
}

// rule is the shared implementation of the built-in rules.
type rule struct {
	check  func(ctx context.Context, value any, data map[string]any) (bool, error)
	format string // receives the field label
}

func (r *rule) Validate(ctx context.Context, value any, _ string, data map[string]any) (bool, error) {
	return r.check(ctx, value, data)
}

func (r *rule) Message(field string) string {
	if strings.Contains(r.format, "%s") {
		return fmt.Sprintf(r.format, Label(field))
	}
	return r.format
}

// optional wraps a check so that nil values pass.
func optional(check func(any) bool) func(context.Context, any, map[string]any) (bool, error) {
	return func(_ context.Context, v any, _ map[string]any) (bool, error) {
		if v == nil {
			return true, nil
		}
		return check(v), nil
	}
}

// WithMessage returns r with a fixed message.
func WithMessage(r Rule, msg string) Rule {
	return messageRule{Rule: r, msg: msg}
}

type messageRule struct {
	Rule
	msg string
}

func (m messageRule) Message(string) string { return m.msg }

// Required fails when the field is missing or nil.
func Required() Rule {
	return &rule{
		check: func(_ context.Context, v any, _ map[string]any) (bool, error) {
			return v != nil, nil
		},
		format: "%s is required",
	}
}

// NotEmpty fails for blank strings and empty slices or maps.
func NotEmpty() Rule {
	return &rule{
		check: optional(func(v any) bool {
			if s, ok := v.(string); ok {
				return strings.TrimSpace(s) != ""
			}
			switch rv := reflect.ValueOf(v); rv.Kind() {
			case reflect.Slice, reflect.Map, reflect.Array:
				return rv.Len() > 0
			}
			return true
		}),
		format: "%s must not be empty",
	}
}

// Positive fails unless the value is a number greater than zero.
func Positive() Rule {
	return &rule{
		check: optional(func(v any) bool {
			f, ok := number(v)
			return ok && f > 0
		}),
		format: "%s must be a positive number",
	}
}

// Min fails unless the value is a number not less than n.
func Min(n float64) Rule {
	return &rule{
		check: optional(func(v any) bool {
			f, ok := number(v)
			return ok && f >= n
		}),
		format: "%s must be at least " + fmt.Sprint(n),
	}
}

// Max fails unless the value is a number not greater than n.
func Max(n float64) Rule {
	return &rule{
		check: optional(func(v any) bool {
			f, ok := number(v)
			return ok && f <= n
		}),
		format: "%s must be at most " + fmt.Sprint(n),
	}
}

// Length fails unless the value is a string with a rune count in
// [minLen, maxLen]. A non-positive maxLen means no upper bound.
func Length(minLen, maxLen int) Rule {
	format := fmt.Sprintf("%%s must be between %d and %d characters", minLen, maxLen)
	if maxLen <= 0 {
		format = fmt.Sprintf("%%s must be at least %d characters", minLen)
	}
	return &rule{
		check: optional(func(v any) bool {
			s, ok := v.(string)
			if !ok {
				return false
			}
			n := utf8.RuneCountInString(s)
			return n >= minLen && (maxLen <= 0 || n <= maxLen)
		}),
		format: format,
	}
}

// Email fails unless the value is a bare email address.
func Email() Rule {
	return &rule{
		check: optional(func(v any) bool {
			s, ok := v.(string)
			if !ok {
				return false
			}
			addr, err := mail.ParseAddress(s)
			return err == nil && addr.Address == s
		}),
		format: "%s must be a valid email address",
	}
}

// Pattern fails unless the value is a string matching re.
func Pattern(re *regexp.Regexp) Rule {
	return &rule{
		check: optional(func(v any) bool {
			s, ok := v.(string)
			return ok && re.MatchString(s)
		}),
		format: "%s has an invalid format",
	}
}

// OneOf fails unless the value equals one of values.
func OneOf(values ...any) Rule {
	strs := make([]string, len(values))
	for i, v := range values {
		strs[i] = strings.ReplaceAll(fmt.Sprint(v), "%", "%%")
	}
	return &rule{
		check: optional(func(v any) bool {
			return slices.ContainsFunc(values, func(x any) bool {
				return reflect.DeepEqual(x, v)
			})
		}),
		format: "%s must be one of " + strings.Join(strs, ", "),
	}
}

// Custom returns a rule backed by fn. The message is appended to the
// field label.
func Custom(fn func(ctx context.Context, value any, data map[string]any) (bool, error), msg string) Rule {
	return &rule{
		check:  fn,
		format: "%s " + strings.ReplaceAll(msg, "%", "%%"),
	}
}

func number(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch {
	case rv.CanInt():
		return float64(rv.Int()), true
	case rv.CanUint():
		return float64(rv.Uint()), true
	case rv.CanFloat():
		return rv.Float(), true
	}
	return 0, false
}
