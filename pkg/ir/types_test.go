package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaders_LastWriteWinsIgnoringCase(t *testing.T) {
	h := NewHeaders()
	h.Set("X-A", "1")
	h.Set("x-a", "2")

	require.Equal(t, 1, h.Len())
	v, ok := h.Get("X-a")
	require.True(t, ok)
	assert.Equal(t, "2", v)
	assert.Equal(t, []Header{{Name: "x-a", Value: "2"}}, h.Entries())
}

func TestHeaders_ZeroValueSet(t *testing.T) {
	var h Headers
	assert.False(t, h.Has("Accept"))

	h.Set("Accept", "*/*")
	assert.True(t, h.Has("accept"))
}

func TestHeaders_EntriesSorted(t *testing.T) {
	h := NewHeaders()
	h.Set("b", "2")
	h.Set("A", "1")
	h.Set("c", "3")

	assert.Equal(t, []Header{{"A", "1"}, {"b", "2"}, {"c", "3"}}, h.Entries())
}

func TestHeaders_CloneIsIndependent(t *testing.T) {
	h := NewHeaders()
	h.Set("A", "1")
	c := h.Clone()
	c.Set("a", "2")

	v, _ := h.Get("A")
	assert.Equal(t, "1", v)
}

func TestRequest_JSON(t *testing.T) {
	h := NewHeaders()
	h.Set("Content-Type", "application/json")
	req := Request{Method: "POST", URL: "http://x", Headers: h, Body: "{}"}

	data, err := json.Marshal(req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"method":"POST","url":"http://x","headers":{"Content-Type":"application/json"},"body":"{}","use_http2":false}`, string(data))

	var back Request
	require.NoError(t, json.Unmarshal(data, &back))
	v, ok := back.Headers.Get("content-type")
	require.True(t, ok)
	assert.Equal(t, "application/json", v)
	assert.True(t, back.HasBody())
}
