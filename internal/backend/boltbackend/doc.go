// Package boltbackend stores channels in an embedded bbolt file.
//
// # Buckets
//
//	meta                      schema_version
//	channels/{name}           last_seq (8 bytes) | depth (8 bytes), big endian
//	events/{name}/{seq}       JSON record: headers and body
//
// Sequence keys are big-endian so a cursor walks a channel in append order.
//
// bbolt allows one read-write transaction at a time, so Begin blocks while
// another connection holds a transaction open. Claims can never race, and
// the context passed to Begin cannot interrupt the wait.
package boltbackend
