package gmail

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
)

// ErrInvalidQueryValue indicates a blank value was supplied to a query
// predicate. The offending predicate appends no token.
var ErrInvalidQueryValue = errors.New("query values cannot be empty")

// QueryBuilder assembles a Gmail search expression from chainable predicates.
// A predicate given a blank value appends no token; the first such error is
// remembered and surfaced by Build.
type QueryBuilder struct {
	tokens []string
	err    error
}

// NewQuery creates an empty QueryBuilder.
func NewQuery() *QueryBuilder {
	return &QueryBuilder{}
}

func (q *QueryBuilder) add(token string) *QueryBuilder {
	q.tokens = append(q.tokens, token)
	return q
}

func (q *QueryBuilder) fail(err error) *QueryBuilder {
	if q.err == nil {
		q.err = err
	}
	return q
}

// quote wraps values containing whitespace or double quotes, escaping the
// quotes; other values pass through verbatim.
func quote(value string) (string, error) {
	text := strings.TrimSpace(value)
	if text == "" {
		return "", ErrInvalidQueryValue
	}
	if strings.ContainsFunc(text, unicode.IsSpace) || strings.Contains(text, `"`) {
		return `"` + strings.ReplaceAll(text, `"`, `\"`) + `"`, nil
	}
	return text, nil
}

func (q *QueryBuilder) addQuoted(prefix, value string) *QueryBuilder {
	quoted, err := quote(value)
	if err != nil {
		return q.fail(fmt.Errorf("%s: %w", strings.TrimSuffix(prefix, ":"), err))
	}
	return q.add(prefix + quoted)
}

// Text adds a free-text token.
func (q *QueryBuilder) Text(value string) *QueryBuilder {
	quoted, err := quote(value)
	if err != nil {
		return q.fail(err)
	}
	return q.add(quoted)
}

// Phrase adds an always-quoted token for exact phrase matching.
func (q *QueryBuilder) Phrase(value string) *QueryBuilder {
	text := strings.TrimSpace(value)
	if text == "" {
		return q.fail(fmt.Errorf("phrase: %w", ErrInvalidQueryValue))
	}
	return q.add(`"` + strings.ReplaceAll(text, `"`, `\"`) + `"`)
}

// From filters by sender.
func (q *QueryBuilder) From(sender string) *QueryBuilder {
	return q.addQuoted("from:", sender)
}

// To filters by recipient.
func (q *QueryBuilder) To(recipient string) *QueryBuilder {
	return q.addQuoted("to:", recipient)
}

// Cc filters by carbon-copy recipient.
func (q *QueryBuilder) Cc(recipient string) *QueryBuilder {
	return q.addQuoted("cc:", recipient)
}

// Bcc filters by blind-carbon-copy recipient.
func (q *QueryBuilder) Bcc(recipient string) *QueryBuilder {
	return q.addQuoted("bcc:", recipient)
}

// Subject filters by subject content.
func (q *QueryBuilder) Subject(value string) *QueryBuilder {
	return q.addQuoted("subject:", value)
}

// Label filters by label name.
func (q *QueryBuilder) Label(value string) *QueryBuilder {
	return q.addQuoted("label:", value)
}

// In filters by location, e.g. "inbox", "anywhere".
func (q *QueryBuilder) In(value string) *QueryBuilder {
	return q.addQuoted("in:", value)
}

// Has filters by feature presence, e.g. "attachment".
func (q *QueryBuilder) Has(value string) *QueryBuilder {
	return q.addQuoted("has:", value)
}

// Filename filters by attachment file name.
func (q *QueryBuilder) Filename(value string) *QueryBuilder {
	return q.addQuoted("filename:", value)
}

// Is filters by state, e.g. "unread", "starred".
func (q *QueryBuilder) Is(value string) *QueryBuilder {
	return q.addQuoted("is:", value)
}

// Category filters by inbox category, e.g. "primary".
func (q *QueryBuilder) Category(value string) *QueryBuilder {
	return q.addQuoted("category:", value)
}

// Before restricts to messages received before the given calendar date.
func (q *QueryBuilder) Before(value time.Time) *QueryBuilder {
	return q.add("before:" + value.Format("2006/01/02"))
}

// After restricts to messages received after the given calendar date.
func (q *QueryBuilder) After(value time.Time) *QueryBuilder {
	return q.add("after:" + value.Format("2006/01/02"))
}

// BeforeDate accepts a pre-formatted date string; dashes are normalized to
// the YYYY/MM/DD form Gmail expects.
func (q *QueryBuilder) BeforeDate(value string) *QueryBuilder {
	return q.addDate("before:", value)
}

// AfterDate accepts a pre-formatted date string, normalized like BeforeDate.
func (q *QueryBuilder) AfterDate(value string) *QueryBuilder {
	return q.addDate("after:", value)
}

func (q *QueryBuilder) addDate(prefix, value string) *QueryBuilder {
	text := strings.TrimSpace(value)
	if text == "" {
		return q.fail(fmt.Errorf("%s: %w", strings.TrimSuffix(prefix, ":"), ErrInvalidQueryValue))
	}
	return q.add(prefix + strings.ReplaceAll(text, "-", "/"))
}

// OlderThan restricts to messages older than a relative period like "2d".
func (q *QueryBuilder) OlderThan(value string) *QueryBuilder {
	return q.addQuoted("older_than:", value)
}

// NewerThan restricts to messages newer than a relative period like "1d".
func (q *QueryBuilder) NewerThan(value string) *QueryBuilder {
	return q.addQuoted("newer_than:", value)
}

// Older restricts to messages older than an absolute date token.
func (q *QueryBuilder) Older(value string) *QueryBuilder {
	return q.addQuoted("older:", value)
}

// Newer restricts to messages newer than an absolute date token.
func (q *QueryBuilder) Newer(value string) *QueryBuilder {
	return q.addQuoted("newer:", value)
}

// Larger restricts to messages larger than a size like "5M".
func (q *QueryBuilder) Larger(value string) *QueryBuilder {
	return q.addQuoted("larger:", value)
}

// Smaller restricts to messages smaller than a size like "5M".
func (q *QueryBuilder) Smaller(value string) *QueryBuilder {
	return q.addQuoted("smaller:", value)
}

// DeliveredTo filters by the Delivered-To header.
func (q *QueryBuilder) DeliveredTo(value string) *QueryBuilder {
	return q.addQuoted("deliveredto:", value)
}

// List filters by mailing list address.
func (q *QueryBuilder) List(value string) *QueryBuilder {
	return q.addQuoted("list:", value)
}

// Include appends a raw expression verbatim.
func (q *QueryBuilder) Include(rawExpression string) *QueryBuilder {
	expr := strings.TrimSpace(rawExpression)
	if expr == "" {
		return q.fail(fmt.Errorf("include: %w", ErrInvalidQueryValue))
	}
	return q.add(expr)
}

// Exclude appends a negated expression, ensuring exactly one leading "-".
func (q *QueryBuilder) Exclude(rawExpression string) *QueryBuilder {
	expr := strings.TrimSpace(rawExpression)
	if expr == "" {
		return q.fail(fmt.Errorf("exclude: %w", ErrInvalidQueryValue))
	}
	if !strings.HasPrefix(expr, "-") {
		expr = "-" + expr
	}
	return q.add(expr)
}

// AnyOf appends a parenthesized OR-group. At least one non-blank expression
// is required.
func (q *QueryBuilder) AnyOf(expressions ...string) *QueryBuilder {
	values := make([]string, 0, len(expressions))
	for _, expr := range expressions {
		if trimmed := strings.TrimSpace(expr); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	if len(values) == 0 {
		return q.fail(fmt.Errorf("any_of requires at least one expression: %w", ErrInvalidQueryValue))
	}
	return q.add("(" + strings.Join(values, " OR ") + ")")
}

// Build joins the accumulated tokens with single spaces, or returns the
// first error recorded by a predicate.
func (q *QueryBuilder) Build() (string, error) {
	if q.err != nil {
		return "", q.err
	}
	return strings.TrimSpace(strings.Join(q.tokens, " ")), nil
}

// String renders the query, ignoring any recorded error. Prefer Build.
func (q *QueryBuilder) String() string {
	return strings.TrimSpace(strings.Join(q.tokens, " "))
}
