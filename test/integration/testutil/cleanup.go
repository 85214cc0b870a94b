//go:build integration

package testutil

import (
	"context"
	"time"
)

// CleanAll truncates every compliance table.
func (env *TestEnv) CleanAll() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, table := range []string{"event_outbox", "compliance_exclusions", "compliance_records"} {
		if _, err := env.Pool.Exec(ctx, "TRUNCATE TABLE "+table+" RESTART IDENTITY CASCADE"); err != nil {
			env.t.Logf("truncate %s: %v", table, err)
		}
	}
}
