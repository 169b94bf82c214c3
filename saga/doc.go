// Package saga implements the Book-origination Coordinator of the book service.
//
// Create records a PendingRequest and a BookRequested event and returns at once. The author
// and genre participants answer with pending-created events; whichever answer first makes both
// references resolvable creates the Book and announces BookFinalized. The PendingRequest reaches
// CREATED once both participants confirm finalization.
package saga
