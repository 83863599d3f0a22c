// Package infer is the inference engine: it resolves sticky per-voice state,
// scales durations through nested tuplets and lays one voice out on the
// absolute timeline, validating every measure against its meter.
//
// A voice is resolved by a single Linearize call that owns all of its state,
// so independent voices can be linearized concurrently.
package infer
