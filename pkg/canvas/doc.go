// Package canvas holds the shared whiteboard state and its thread-safe store.
//
// State is the whole-state unit of replication: an ordered drawings sequence
// (z-order), a background color, and the current tool mode. Store guards the
// one State per server process; its mutators (Replace, Clear, SetMode) swap
// fields wholesale and return the post-mutation snapshot atomically, which
// is what makes the router's mutate-then-broadcast step a single critical
// section. Two near-simultaneous edits resolve by last writer wins.
package canvas
