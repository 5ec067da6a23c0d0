package storage

// MaxPending exposes the queue bound to the external tests.
const MaxPending = maxPending
