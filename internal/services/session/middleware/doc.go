// Package middleware tracks the session cookie and the per-request session
// object, persisting sessions through a storage.Store.
//
// A session is loaded (or created) before the handler runs and saved right
// before the response headers are written. The saved payload carries
// cookie.expires, so the store expires the record together with the cookie.
package middleware
