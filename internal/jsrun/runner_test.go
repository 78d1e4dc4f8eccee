package jsrun

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/tagmanager/internal/event"
	"github.com/gyaneshwarpardhi/tagmanager/internal/tag"
)

var _ tag.CodeRunner = (*Runner)(nil)

func TestRunner_ReceivesData(t *testing.T) {
	var pushed []event.Context
	r := New(func(rec event.Context) { pushed = append(pushed, rec) }, nil)

	err := r.Run(`dataLayer.push({event: "seen", amount: data.amount * 2, name: data.event})`,
		event.Context{"event": "purchase", "amount": 21})
	require.NoError(t, err)
	require.Len(t, pushed, 1)
	assert.Equal(t, "seen", pushed[0].Name())
	assert.EqualValues(t, 42, pushed[0]["amount"])
	assert.Equal(t, "purchase", pushed[0]["name"])
}

func TestRunner_Throws(t *testing.T) {
	r := New(nil, nil)
	err := r.Run(`throw new Error("nope")`, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")
}

func TestRunner_ReferenceError(t *testing.T) {
	err := New(nil, nil).Run(`undefinedFn()`, nil)
	assert.Error(t, err)
}

func TestRunner_SyntaxError(t *testing.T) {
	err := New(nil, nil).Run(`function (`, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compile")
}

func TestRunner_FreshRuntimePerRun(t *testing.T) {
	r := New(nil, nil)
	require.NoError(t, r.Run(`globalThis.counter = 1; console.log("set", counter)`, nil))
	require.NoError(t, r.Run(`if (typeof counter !== "undefined") { throw new Error("leaked") }`, nil))
}
