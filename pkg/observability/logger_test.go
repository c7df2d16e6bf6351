package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
)

func TestLogger_StructuredOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(DebugLevel, &buf)

	logger.WithField("user_id", "u1").WithError(nil).Info("permission check")

	var record map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("Expected JSON log output, got %q: %v", buf.String(), err)
	}
	if record["msg"] != "permission check" {
		t.Errorf("Unexpected message: %v", record["msg"])
	}
	if record["user_id"] != "u1" {
		t.Errorf("Expected user_id field, got %v", record)
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(WarnLevel, &buf)

	logger.Debug("hidden")
	logger.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("Expected debug/info suppressed at warn level, got %q", buf.String())
	}

	logger.Warnf("kept %d", 1)
	if buf.Len() == 0 {
		t.Error("Expected warn to be emitted")
	}
}

func TestLogger_FromContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	ctx := WithLogger(context.Background(), logger)
	ctx = WithRequestID(ctx, "req-123")

	FromContext(ctx).Info("handled")

	var record map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("Expected JSON log output: %v", err)
	}
	if record["request_id"] != "req-123" {
		t.Errorf("Expected request_id from context, got %v", record)
	}

	if got := GetRequestID(ctx); got != "req-123" {
		t.Errorf("GetRequestID = %q", got)
	}
	if got := GetRequestID(context.Background()); got != "" {
		t.Errorf("Expected empty request id on bare context, got %q", got)
	}
}

func TestLogger_UserIDFromContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	ctx := WithLogger(context.Background(), logger)
	ctx = WithRequestID(ctx, "req-7")
	ctx = WithUserID(ctx, "u1")

	FromContext(ctx).Info("checked")

	var record map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("Expected JSON log output: %v", err)
	}
	if record["user_id"] != "u1" {
		t.Errorf("Expected user_id from context, got %v", record)
	}
	if record["request_id"] != "req-7" {
		t.Errorf("Expected request_id from context, got %v", record)
	}

	if got := GetUserID(ctx); got != "u1" {
		t.Errorf("GetUserID = %q", got)
	}
	if got := GetUserID(context.Background()); got != "" {
		t.Errorf("Expected empty user id on bare context, got %q", got)
	}
}
