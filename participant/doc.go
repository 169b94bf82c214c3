// Package participant implements the author and genre services' side of the Book-creation saga.
//
// On BookRequested a participant resolves its entity by exact name, creating an unfinalized
// placeholder if needed, and answers with a pending-created event recorded in the same write.
// On BookFinalized it finalizes the placeholder exactly once and announces the Created event.
//
// If the placeholder cannot be written, a CreationFailed notice is published directly to the
// broker. This is the only participant path that bypasses the outbox, because the outbox write
// is part of what failed. The notice is best effort: its own failure is only logged, and no
// placeholder is ever deleted.
package participant
