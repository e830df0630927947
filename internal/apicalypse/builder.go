// Package apicalypse builds queries in the IGDB catalog query language:
// semicolon-terminated search, fields, where, sort, limit and offset clauses.
package apicalypse

import (
	"strconv"
	"strings"
)

// Direction represents sort direction.
type Direction int

const (
	// Asc represents ascending order.
	Asc Direction = iota
	// Desc represents descending order.
	Desc
)

func (d Direction) String() string {
	if d == Desc {
		return "desc"
	}
	return "asc"
}

// Builder constructs a catalog query. Every method returns a new Builder,
// so a partially configured builder can be shared as a template.
type Builder struct {
	search    string
	fields    []string
	where     []Condition
	sortField string
	sortDir   Direction
	limit     int
	offset    int
}

// New creates a Builder selecting the given fields.
func New(fields ...string) *Builder {
	return &Builder{fields: append([]string(nil), fields...)}
}

// Fields appends fields to the selection.
func (b *Builder) Fields(fields ...string) *Builder {
	nb := b.clone()
	nb.fields = append(nb.fields, fields...)
	return nb
}

// Search sets a free-text search term.
func (b *Builder) Search(term string) *Builder {
	nb := b.clone()
	nb.search = term
	return nb
}

// Where adds a condition. Multiple conditions are combined with AND.
func (b *Builder) Where(conds ...Condition) *Builder {
	nb := b.clone()
	nb.where = append(nb.where, conds...)
	return nb
}

// Sort sets the sort field and direction.
func (b *Builder) Sort(field string, dir Direction) *Builder {
	nb := b.clone()
	nb.sortField = field
	nb.sortDir = dir
	return nb
}

// Limit sets the maximum number of records.
func (b *Builder) Limit(n int) *Builder {
	nb := b.clone()
	nb.limit = n
	return nb
}

// Offset sets the number of records to skip.
func (b *Builder) Offset(n int) *Builder {
	nb := b.clone()
	nb.offset = n
	return nb
}

// Build renders the query text. Limit and offset are always present.
func (b *Builder) Build() string {
	clauses := make([]string, 0, 6)

	if b.search != "" {
		clauses = append(clauses, `search "`+Escape(b.search)+`";`)
	}

	fields := "*"
	if len(b.fields) > 0 {
		fields = strings.Join(b.fields, ",")
	}
	clauses = append(clauses, "fields "+fields+";")

	if len(b.where) > 0 {
		clauses = append(clauses, "where "+And(b.where...).String()+";")
	}

	if b.sortField != "" {
		clauses = append(clauses, "sort "+b.sortField+" "+b.sortDir.String()+";")
	}

	clauses = append(clauses,
		"limit "+strconv.Itoa(b.limit)+";",
		"offset "+strconv.Itoa(b.offset)+";",
	)

	return strings.Join(clauses, " ")
}

// String returns the rendered query.
func (b *Builder) String() string {
	return b.Build()
}

func (b *Builder) clone() *Builder {
	nb := *b
	nb.fields = append([]string(nil), b.fields...)
	nb.where = append([]Condition(nil), b.where...)
	return &nb
}
