// Package sqlite provides the session persistence adapter backed by SQLite.
//
// A Store owns one connection and runs every operation on a single worker
// goroutine in submission order. Opening is asynchronous: operations issued
// before the connection is ready wait in the queue and run, in order, once
// the session table exists. Expired rows are never returned; a read that
// finds one queues its deletion without waiting for it, and a background
// sweep bounds how many expired rows accumulate between reads.
//
// Two stores must not open the same file for writing at the same time.
// Nothing here enforces that.
package sqlite
