// Package dedup guarantees that each reminder occasion is acted on at most once.
//
// An occasion is reserved in the durable log before delivery, kept on success
// and released on failure. The log's unique (task, key) constraint is the only
// correctness mechanism; Cache is an optimisation in front of it.
package dedup
