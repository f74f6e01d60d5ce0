// Package streamstore is the public entry point of the stream store.
//
// Store validates caller input, derives the stream identity, and runs each
// operation in its own session under the deadlock retry policy. Appends
// are idempotent: resending a batch whose event ids are already stored at
// the target versions succeeds without writing.
//
//	db, err := sqlite.Open("streams.db")
//	...
//	store := streamstore.FromSQLite(db, streamstore.WithLogger(logger))
//	err = store.AppendToStream(ctx, "orders-1", streams.ExpectedVersionNoStream, events)
//	page, err := store.ReadStreamForwards(ctx, "orders-1", streams.StreamVersionStart, 100, true)
package streamstore
