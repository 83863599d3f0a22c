// Package score holds the data exchanged with the outside world: the AST the
// external parser delivers (Score, Measure, entries, InstrumentDef) and the
// Timeline the compiler hands to a serialization backend.
package score
