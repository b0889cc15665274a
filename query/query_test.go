package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const lookup = "SELECT username FROM users WHERE username = ?"

func TestBindKeepsStructure(t *testing.T) {
	inputs := []string{
		"admin",
		"' OR '1'='1",
		"admin' --",
		"x'; DROP TABLE users; --",
		"?",
	}
	for _, in := range inputs {
		text, args := Bind(lookup, in).SQL()
		assert.Equal(t, lookup, text, in)
		assert.Equal(t, []any{in}, args, in)
	}
}

func TestSpliceAltersStructure(t *testing.T) {
	text, args := Splice(lookup, "' OR '1'='1").SQL()
	assert.Equal(t, "SELECT username FROM users WHERE username = '' OR '1'='1'", text)
	assert.Empty(t, args)
}

func TestFragmentsAreTagged(t *testing.T) {
	q := Bind("UPDATE users SET password = ? WHERE username = ?", "pw", "tim")
	assert.Equal(t, []Fragment{
		RawQueryFragment("UPDATE users SET password = "),
		BoundParameter{Value: "pw"},
		RawQueryFragment(" WHERE username = "),
		BoundParameter{Value: "tim"},
	}, q.Fragments)

	q = Splice("SELECT 1 WHERE a = ?", "b")
	assert.Equal(t, []Fragment{
		RawQueryFragment("SELECT 1 WHERE a = "),
		RawQueryFragment("'b'"),
	}, q.Fragments)
}

func TestMissingAndExtraInputs(t *testing.T) {
	_, args := Bind("SELECT ? , ?", "one").SQL()
	assert.Equal(t, []any{"one", ""}, args)

	_, args = Bind("SELECT ?", "one", "two").SQL()
	assert.Equal(t, []any{"one"}, args)

	text, args := Bind("SELECT 1").SQL()
	assert.Equal(t, "SELECT 1", text)
	assert.Nil(t, args)
}

func TestBuilderFunc(t *testing.T) {
	var b Builder = BuilderFunc(Bind)
	assert.Equal(t, []any{"tim"}, b.BuildQuery(lookup, "tim").Parameters())
}
