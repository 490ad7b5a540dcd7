// Package store persists the set of message ids already turned into
// tickets. The set grows monotonically; there is no eviction.
package store

// ProcessedStore is the durable dedup set. An id present in the store
// must never reach the classifier or ticket filer again. Deduplication
// is best-effort by design: losing the backing state re-files tickets
// on the next run.
type ProcessedStore interface {
	Contains(id string) (bool, error)
	Add(id string) error
	Close() error
}
