// Package pipeline runs one invocation end to end:
//
//	fetch(key) → parse → series → assemble → encode → put(dest) → observers
//
// Every invocation ends in exactly one Outcome:
//
//	stored   report written to the destination store
//	empty    export had no data rows (header only or blank)
//	no_data  no row carried a parseable timestamp
//	failed   bad key, fetch or store error, undecodable text
//
// empty and no_data are normal terminations, not errors. Only failed returns
// a non-nil error. The processor never retries; that is left to whatever
// triggered it.
//
// When the key is not found in the source store, the processor retries the
// fetch once with the trusted prefix toggled, mirroring how exports are
// promoted between folders.
//
// Tuning (parse options, trend threshold, destination layout) is swapped
// atomically by SetTuning so a config reload applies to the next invocation
// without locking the one in flight.
package pipeline
