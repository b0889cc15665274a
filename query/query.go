// Package query builds SQL statements from a template containing "?" markers
// and user-supplied values.
//
// A Query is a sequence of fragments. RawQueryFragment text becomes part of
// the executable statement; BoundParameter values travel to the driver out of
// band. Bind produces only bound parameters for user input. Splice pastes user
// input into the statement as raw text and exists solely for the vulnerable
// lab variant.
package query

import (
	"strings"
)

type Fragment interface {
	fragment()
}

// RawQueryFragment is literal statement text.
type RawQueryFragment string

// BoundParameter is a value passed to the driver as a placeholder argument.
type BoundParameter struct {
	Value any
}

func (RawQueryFragment) fragment() {}
func (BoundParameter) fragment()   {}

type Query struct {
	Fragments []Fragment
}

// SQL renders the statement text and its placeholder arguments.
func (q Query) SQL() (string, []any) {
	var sb strings.Builder
	var args []any
	for _, f := range q.Fragments {
		switch f := f.(type) {
		case RawQueryFragment:
			sb.WriteString(string(f))
		case BoundParameter:
			sb.WriteByte('?')
			args = append(args, f.Value)
		}
	}
	return sb.String(), args
}

// Parameters returns the values of all bound parameters.
func (q Query) Parameters() []any {
	_, args := q.SQL()
	return args
}

// Builder constructs a Query from a template and the values for its markers.
type Builder interface {
	BuildQuery(template string, inputs ...string) Query
}

// Bind turns every "?" in template into a BoundParameter. Missing inputs bind
// as empty strings; extra inputs are ignored.
func Bind(template string, inputs ...string) Query {
	return build(template, inputs, func(in string) Fragment {
		return BoundParameter{Value: in}
	})
}

// Splice replaces every "?" in template with the input wrapped in single
// quotes, without escaping. UNSAFE: input such as "' OR '1'='1" changes the
// structure of the statement.
func Splice(template string, inputs ...string) Query {
	return build(template, inputs, func(in string) Fragment {
		return RawQueryFragment("'" + in + "'")
	})
}

func build(template string, inputs []string, wrap func(string) Fragment) Query {
	pieces := strings.Split(template, "?")
	q := Query{Fragments: make([]Fragment, 0, 2*len(pieces)-1)}
	for i, piece := range pieces {
		if piece != "" {
			q.Fragments = append(q.Fragments, RawQueryFragment(piece))
		}
		if i == len(pieces)-1 {
			break
		}
		var in string
		if i < len(inputs) {
			in = inputs[i]
		}
		q.Fragments = append(q.Fragments, wrap(in))
	}
	return q
}

type BuilderFunc func(template string, inputs ...string) Query

func (f BuilderFunc) BuildQuery(template string, inputs ...string) Query {
	return f(template, inputs...)
}
