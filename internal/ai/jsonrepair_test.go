package ai

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepairJSONValidPassthrough(t *testing.T) {
	in := `{"a":1,"b":"x"}`
	assert.Equal(t, in, RepairJSON(in))
}

func TestRepairJSONStripsFences(t *testing.T) {
	in := "```json\n{\"a\": 1}\n```"
	out := RepairJSON(in)
	assert.Equal(t, `{"a": 1}`, out)
}

func TestRepairJSONStripsSurroundingProse(t *testing.T) {
	in := "Here is the result:\n{\"ok\": true}\nHope that helps."
	var got map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(RepairJSON(in)), &got))
	assert.Equal(t, true, got["ok"])
}

func TestRepairJSONEscapesRawNewline(t *testing.T) {
	in := "{\"a\": \"line1\nline2\"}"
	out := RepairJSON(in)
	var got map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "line1\nline2", got["a"])
}

func TestRepairJSONEscapesTabAndCR(t *testing.T) {
	in := "{\"a\": \"x\ty\r\"}"
	var got map[string]string
	require.NoError(t, json.Unmarshal([]byte(RepairJSON(in)), &got))
	assert.Equal(t, "x\ty\r", got["a"])
}

func TestRepairJSONDropsControlChars(t *testing.T) {
	in := "{\"a\": \"x\x01y\"}"
	var got map[string]string
	require.NoError(t, json.Unmarshal([]byte(RepairJSON(in)), &got))
	assert.Equal(t, "xy", got["a"])
}

func TestRepairJSONInvalidEscapeBecomesLiteral(t *testing.T) {
	in := `{"re": "\S+"}`
	out := RepairJSON(in)
	var got map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, `\S+`, got["re"])
}

func TestRepairJSONKeepsValidEscapes(t *testing.T) {
	in := "{\"a\": \"say \\\"hi\\\"\nok\"}"
	var got map[string]string
	require.NoError(t, json.Unmarshal([]byte(RepairJSON(in)), &got))
	assert.Equal(t, "say \"hi\"\nok", got["a"])
}

func TestRepairJSONIdempotent(t *testing.T) {
	in := "```json\n{\"a\": \"line1\nline2\", \"re\": \"\\d+\"}\n```"
	once := RepairJSON(in)
	twice := RepairJSON(once)
	assert.Equal(t, once, twice)
	assert.True(t, json.Valid([]byte(once)))
}

func TestRepairJSONUnrecoverableReturnsRaw(t *testing.T) {
	in := `{"a": [1, 2`
	assert.Equal(t, in, RepairJSON(in))

	noObj := "no braces here"
	assert.Equal(t, noObj, RepairJSON(noObj))
}
