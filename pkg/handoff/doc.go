// Package handoff passes finished grade ledgers to the remote synchronisation
// worker through Redis.
//
// # Overview
//
// The local pipeline ends with a ledger on disk. Publishing it stores a
// snapshot in Redis, stamped with a publication id, and announces it on a
// Pub/Sub channel. The synchronisation worker either subscribes to the channel
// or fetches the latest snapshot of a sheet on demand.
//
// # Usage Example
//
//	client, err := handoff.Dial("redis://localhost:6379/0", "default")
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	snap, err := client.Publish(ctx, l)
//	if err != nil {
//		return err
//	}
//
//	latest, err := client.Fetch(ctx, snap.SheetID)
//	if handoff.IsNotFound(err) {
//		// nothing published for this sheet yet
//	}
//
// # Redis Schema
//
// Snapshots: kasm:{namespace}:ledger:{sheet_id} (hash; grades JSON-encoded)
//
// Events: kasm:{namespace}:ledger_events (full snapshot JSON)
//
// Publishing replaces the previous snapshot of the same sheet.
package handoff
