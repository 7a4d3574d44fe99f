package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestID(t *testing.T) {
	assert.Equal(t, "unknown", RequestID(context.Background()))
	assert.Equal(t, "req-1", RequestID(WithContext(context.Background(), "req-1")))
}

func TestInitializeWithWriter_TeesJSON(t *testing.T) {
	var sink bytes.Buffer
	log := InitializeWithWriter("production", &sink)

	For(WithContext(context.Background(), "req-9"), log).Info("payment updated")
	_ = log.Sync()

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(sink.Bytes()), &entry))
	assert.Equal(t, "payment updated", entry["msg"])
	assert.Equal(t, "req-9", entry[RequestIDKey])
	assert.Contains(t, entry, "timestamp")
}
