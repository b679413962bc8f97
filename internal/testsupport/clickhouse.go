package testsupport

import (
	"context"
	"testing"
	"time"

	"navfund/internal/adapters/clickhouse"
)

// NewTestClickHouse connects to ClickHouse from the CLICKHOUSE_* environment, skipping when unset.
func NewTestClickHouse(t *testing.T) *clickhouse.Client {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := clickhouse.NewClient(ctx, ClickHouseConfigFromEnv(t))
	if err != nil {
		t.Fatalf("failed to connect to clickhouse: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

// RegisterTableCleanup deletes rows matching condition from table after the test.
func RegisterTableCleanup(t *testing.T, client *clickhouse.Client, table, condition string, args ...interface{}) {
	t.Helper()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Exec(ctx, "DELETE FROM "+table+" WHERE "+condition, args...)
	})
}
