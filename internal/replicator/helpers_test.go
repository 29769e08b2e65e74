package replicator

import (
	"encoding/json"
	"testing"

	"go.uber.org/zap"
)

func nilLogger() *zap.Logger {
	return zap.NewNop()
}

func mustJSON(t *testing.T, msg message) []byte {
	t.Helper()
	b, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}
