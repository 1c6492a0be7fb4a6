package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompileScenario(t *testing.T) {
	e := NewAnd().
		AndEq("email", "a@b").
		OrLike("username", "admin%").
		AndBetweenExclusive("age", 18, 65).
		AndNotIn("status", []any{"banned", "disabled"})

	sql, params := e.Compile()

	assert.Equal(t, `(email = :email) OR (username LIKE :username) AND (age > :age_min AND age < :age_max) AND (status NOT IN (:status_0, :status_1))`, sql)
	assert.Equal(t, map[string]any{
		"email":      "a@b",
		"username":   "admin%",
		"age_min":    18,
		"age_max":    65,
		"status_0":   "banned",
		"status_1":   "disabled",
	}, params)
}

func TestCompileIsDeterministic(t *testing.T) {
	build := func() *Expression {
		return NewAnd().AndEq("email", "a@b").OrLike("username", "admin%")
	}
	sql1, params1 := build().Compile()
	sql2, params2 := build().Compile()
	assert.Equal(t, sql1, sql2)
	assert.Equal(t, params1, params2)
}

func TestDuplicateColumnDisambiguation(t *testing.T) {
	e := NewAnd().AndEq("age", 10).AndGt("age", 5)
	sql, params := e.Compile()
	assert.Equal(t, `(age = :age) AND (age > :age_2)`, sql)
	assert.Equal(t, map[string]any{"age": 10, "age_2": 5}, params)
}

func TestEmpty(t *testing.T) {
	e := NewAnd()
	assert.True(t, e.Empty())
	sql, params := e.Compile()
	assert.Equal(t, "", sql)
	assert.Empty(t, params)
}

func TestEmbed(t *testing.T) {
	child := NewOr().OrEq("a", 1).OrEq("a", 2)
	parent := NewAnd().AndEq("b", 3).Embed(And, child)
	sql, params := parent.Compile()
	assert.Equal(t, `(b = :b) AND ((a = :a) OR (a = :a_2))`, sql)
	assert.Equal(t, map[string]any{"b": 3, "a": 1, "a_2": 2}, params)
}

func TestNullAndExists(t *testing.T) {
	e := NewAnd().AndIsNull("deleted_at").AndExists("SELECT 1 FROM x")
	sql, params := e.Compile()
	assert.Equal(t, `(deleted_at IS NULL) AND (EXISTS (SELECT 1 FROM x))`, sql)
	assert.Empty(t, params)
}
