package handoff

import "fmt"

// Redis key pattern helpers
//
// All keys and channels are namespaced so several courses can share one Redis
// server without seeing each other's ledgers.
//
// Key pattern: kasm:{namespace}:ledger:{sheet_id}
// Channel pattern: kasm:{namespace}:ledger_events

// LedgerKey returns the Redis key holding the published snapshot of a sheet.
func LedgerKey(namespace, sheetID string) string {
	return fmt.Sprintf("kasm:%s:ledger:%s", namespace, sheetID)
}

// LedgerEventsChannel returns the Pub/Sub channel announcing new snapshots.
func LedgerEventsChannel(namespace string) string {
	return fmt.Sprintf("kasm:%s:ledger_events", namespace)
}
