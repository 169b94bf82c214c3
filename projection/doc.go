// Package projection maintains denormalized read models from Book, Author and Genre events.
//
// Consumers are idempotent. A Created event for a stored key is skipped, and an Updated or
// Deleted event for an unknown key is logged and dropped. Updated events that are not newer
// than the stored row are ignored as stale.
package projection
