package repl

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRequestRoundTrip(t *testing.T) {
	data, err := encodeRequest(7, "execute", ExecuteParams{Code: "FINAL(1)"})
	require.NoError(t, err)

	var req Request
	require.NoError(t, json.Unmarshal(data, &req))
	assert.Equal(t, int64(7), req.ID)
	assert.Equal(t, "execute", req.Method)

	var params ExecuteParams
	require.NoError(t, json.Unmarshal(req.Params, &params))
	assert.Equal(t, "FINAL(1)", params.Code)
}

func TestDecodeResponseWithError(t *testing.T) {
	raw := []byte(`{"id":1,"error":{"code":-32603,"message":"boom"}}`)
	resp, err := decodeResponse(raw)
	require.NoError(t, err)
	require.NotNil(t, resp.Error)
	assert.Equal(t, -32603, resp.Error.Code)
}

func TestIsCallbackRequestDetectsCallbackLine(t *testing.T) {
	line := []byte(`{"callback":"llm_query","callback_id":1,"params":{"context":"hi"}}`)
	assert.True(t, IsCallbackRequest(line))
}

func TestIsCallbackRequestRejectsPlainResponse(t *testing.T) {
	line := []byte(`{"id":1,"result":{"output":""}}`)
	assert.False(t, IsCallbackRequest(line))
}

func TestDecodeCallbackRequest(t *testing.T) {
	line := []byte(`{"callback":"llm_query","callback_id":42,"params":{"context":"count to 5"}}`)
	req, err := DecodeCallbackRequest(line)
	require.NoError(t, err)
	assert.Equal(t, int64(42), req.CallbackID)

	var params LLMQueryParams
	require.NoError(t, json.Unmarshal(req.Params, &params))
	assert.Equal(t, "count to 5", params.Context)
}

func TestEncodeCallbackResponseCarriesArbitraryResult(t *testing.T) {
	resultJSON, _ := json.Marshal(map[string]any{"count": 5})
	data, err := EncodeCallbackResponse(&CallbackResponse{CallbackID: 42, Result: resultJSON})
	require.NoError(t, err)

	var resp CallbackResponse
	require.NoError(t, json.Unmarshal(data, &resp))
	assert.Equal(t, int64(42), resp.CallbackID)

	var v map[string]any
	require.NoError(t, json.Unmarshal(resp.Result, &v))
	assert.Equal(t, float64(5), v["count"])
}
