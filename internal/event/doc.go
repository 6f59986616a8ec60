// Package event defines the record carried through channels: an opaque
// payload plus a set of string headers.
//
// Events are values. Constructors copy their inputs, and nothing in this
// module mutates an Event after it is built, so an Event can be shared
// between goroutines without synchronization.
package event
