// package tasks implements the party queue operations on top of the playback gateway.
//
// [Projector] turns live playback state into a [models.QueueView]. [Engine] wraps it with event lookup,
// ownership checks, track requests, search, and host handover for the HTTP and CLI layers.
package tasks
