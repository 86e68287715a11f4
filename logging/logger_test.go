package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ badger.Logger = BadgerLogger{}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
}

func TestSetupWriter_JSON(t *testing.T) {
	defer slog.SetDefault(slog.Default())
	var buf bytes.Buffer
	logger := SetupWriter(&buf, "warn", "json")

	logger.Info("dropped")
	logger.Warn("kept", "table", "orders")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "kept", entry["msg"])
	assert.Equal(t, "orders", entry["table"])
}

func TestRequestID(t *testing.T) {
	ctx := WithRequestID(context.Background())
	id := RequestID(ctx)
	assert.Len(t, id, 36)
	assert.Equal(t, id, RequestID(WithRequestID(ctx)))

	lambdaCtx := lambdacontext.NewContext(context.Background(), &lambdacontext.LambdaContext{AwsRequestID: "req-1"})
	assert.Equal(t, "req-1", RequestID(WithRequestID(lambdaCtx)))
}

func TestWithFields(t *testing.T) {
	defer slog.SetDefault(slog.Default())
	var buf bytes.Buffer
	SetupWriter(&buf, "info", "json")

	ctx := lambdacontext.NewContext(context.Background(), &lambdacontext.LambdaContext{AwsRequestID: "req-2"})
	WithFields(ctx, "bucket", "uploads").Info("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "req-2", entry["request_id"])
	assert.Equal(t, "uploads", entry["bucket"])
}

func TestForRequest(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	ForRequest(context.Background(), logger).Info("no id")
	ctx := lambdacontext.NewContext(context.Background(), &lambdacontext.LambdaContext{AwsRequestID: "req-3"})
	ForRequest(ctx, logger).Info("with id")

	dec := json.NewDecoder(&buf)
	var first, second map[string]any
	require.NoError(t, dec.Decode(&first))
	require.NoError(t, dec.Decode(&second))
	assert.NotContains(t, first, "request_id")
	assert.Equal(t, "req-3", second["request_id"])
}

func TestBadgerLogger(t *testing.T) {
	var buf bytes.Buffer
	l := BadgerLogger{Logger: slog.New(slog.NewJSONHandler(&buf, nil))}
	l.Warningf("value log %d full\n", 3)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "value log 3 full", entry["msg"])
	assert.Equal(t, "badger", entry["component"])
}
