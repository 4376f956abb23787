package access

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
)

const (
	DefaultPageSize = 25
	MaxPageSize     = 100
)

// Query accumulates WHERE predicates with positional pgx placeholders.
type Query struct {
	where []string
	args  []any
}

// Arg appends a value and returns its placeholder.
func (q *Query) Arg(v any) string {
	q.args = append(q.args, v)
	return "$" + strconv.Itoa(len(q.args))
}

// Where adds a raw predicate; use Arg for its placeholders.
func (q *Query) Where(clause string) *Query {
	q.where = append(q.where, clause)
	return q
}

// Eq adds col = v.
func (q *Query) Eq(col string, v any) *Query {
	return q.Where(col + " = " + q.Arg(v))
}

// In adds col IN ids. An empty set matches nothing.
func (q *Query) In(col string, ids []uuid.UUID) *Query {
	if len(ids) == 0 {
		return q.Where("FALSE")
	}
	vals := make([]string, len(ids))
	for i, id := range ids {
		vals[i] = id.String()
	}
	return q.Where(col + " = ANY(" + q.Arg(vals) + "::uuid[])")
}

// Search adds a case-sensitive substring match of term over any of cols. Empty term is a no-op.
func (q *Query) Search(term string, cols ...string) *Query {
	term = strings.TrimSpace(term)
	if term == "" || len(cols) == 0 {
		return q
	}
	ph := q.Arg(term)
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = "strpos(" + c + ", " + ph + ") > 0"
	}
	return q.Where("(" + strings.Join(parts, " OR ") + ")")
}

// SQL returns the WHERE clause, or "" when there are no predicates.
func (q *Query) SQL() string {
	if len(q.where) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(q.where, " AND ")
}

// Args returns the accumulated arguments.
func (q *Query) Args() []any {
	return q.args
}

// Page selects a window of a list.
type Page struct {
	Number int
	Size   int
}

// NewPage clamps number and size to sane values.
func NewPage(number, size int) Page {
	if number < 1 {
		number = 1
	}
	if size < 1 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return Page{Number: number, Size: size}
}

// Limit appends LIMIT/OFFSET placeholders for p to q and returns the clause.
func (q *Query) Limit(p Page) string {
	p = NewPage(p.Number, p.Size)
	return " LIMIT " + q.Arg(p.Size) + " OFFSET " + q.Arg((p.Number-1)*p.Size)
}

// ListParams is the common input of scoped list loaders.
type ListParams struct {
	Search string
	Page   Page
}
