package models

// KeyValue is a generic internal state slot (stored configuration flags and
// similar), keyed by name.
type KeyValue struct {
	Name          string
	Value         string
	CreatedAtTime int64
}
