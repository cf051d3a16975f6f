package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cube-demo/internal/domain"
)

func TestParse_Precedence(t *testing.T) {
	e, err := Parse("[A] + [B] * 2")
	require.NoError(t, err)

	add, ok := e.(*Binary)
	require.True(t, ok)
	assert.Equal(t, "+", add.Op)

	mul, ok := add.Right.(*Binary)
	require.True(t, ok)
	assert.Equal(t, "*", mul.Op)
}

func TestParse_ParensOverridePrecedence(t *testing.T) {
	e, err := Parse("([A] + [B]) * 2")
	require.NoError(t, err)

	mul, ok := e.(*Binary)
	require.True(t, ok)
	assert.Equal(t, "*", mul.Op)

	add, ok := mul.Left.(*Binary)
	require.True(t, ok)
	assert.Equal(t, "+", add.Op)
}

func TestParse_ComparisonAliases(t *testing.T) {
	e, err := Parse("[A] = 1")
	require.NoError(t, err)
	assert.Equal(t, "==", e.(*Binary).Op)

	e, err = Parse("[A] <> 1")
	require.NoError(t, err)
	assert.Equal(t, "!=", e.(*Binary).Op)
}

func TestParse_BracketedRefsKeepSpaces(t *testing.T) {
	e, err := Parse("[Unit Price] * [Quantity]")
	require.NoError(t, err)
	assert.Equal(t, []string{"Unit Price", "Quantity"}, Refs(e))
}

func TestParse_RefsDeduplicateInOrder(t *testing.T) {
	e, err := Parse("[Revenue] - [Cost] + [Revenue]")
	require.NoError(t, err)
	assert.Equal(t, []string{"Revenue", "Cost"}, Refs(e))
}

func TestParse_FunctionCall(t *testing.T) {
	e, err := Parse("round([Margin] / [Revenue] * 100, 2)")
	require.NoError(t, err)

	call, ok := e.(*Call)
	require.True(t, ok)
	assert.Equal(t, "round", call.Name)
	assert.Len(t, call.Args, 2)
}

func TestParse_Errors(t *testing.T) {
	cases := []string{
		"[Unterminated",
		"[]",
		"'unterminated",
		"1 +",
		"[A] [B]",
		"bare_identifier",
		"coalesce([A]",
	}
	for _, src := range cases {
		_, err := Parse(src)
		require.Error(t, err, "source %q", src)
		var exprErr *domain.ExpressionError
		assert.ErrorAs(t, err, &exprErr, "source %q", src)
	}
}

func TestParse_Literals(t *testing.T) {
	e, err := Parse("null")
	require.NoError(t, err)
	assert.Nil(t, e.(*Literal).Value)

	e, err = Parse("true and false")
	require.NoError(t, err)
	assert.Equal(t, "and", e.(*Binary).Op)

	e, err = Parse("'Bikes'")
	require.NoError(t, err)
	assert.Equal(t, "Bikes", e.(*Literal).Value)

	e, err = Parse("-3.5")
	require.NoError(t, err)
	assert.Equal(t, "-", e.(*Unary).Op)
}
