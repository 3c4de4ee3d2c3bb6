// Package storage declares the persistence contract used by the session
// middleware.
//
// Implementations own expiry: a record past its expiry is never returned,
// whether or not a background sweep has removed it yet.
package storage
