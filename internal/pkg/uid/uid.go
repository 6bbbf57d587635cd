// Package uid generates unique identifiers.
package uid

// NumberID generates unique, roughly time-ordered integer identifiers.
type NumberID interface {
	Generate() int64
}

// StringID generates unique string identifiers.
type StringID interface {
	Generate() string
}
