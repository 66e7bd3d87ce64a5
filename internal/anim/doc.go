// Package anim executes third-party animation scripts: external
// executables that render per-key color output for a keyboard over a
// line-oriented text protocol on their standard pipes.
//
// Architecture:
//   - Catalog discovers candidate executables, queries each with
//     --ckb-info under a one-second deadline, validates the metadata
//     grammar and dedupes by guid.
//   - Descriptor is the immutable metadata plus parameter schema of
//     one accepted script, including the reserved timing parameters
//     injected during validation.
//   - Instance binds a descriptor to a key set and parameter values,
//     owns the --ckb-run child process, and drives the frame clock:
//     frame deltas as fractions of one duration, synthetic full-cycle
//     ticks when the driver stalls, and bounded one-level preemption
//     for repeating animations.
//
// An external driver ticks every live instance at a fixed cadence
// (nominally 60 Hz). Instance state has exactly one owner and no
// internal locking; child output is buffered by a reader goroutine
// and drained opportunistically on the driver's ticks, so the driver
// never blocks on a child.
//
// Failures never escape as errors: candidates that misbehave are
// excluded, malformed protocol lines are dropped, and a child that
// exits or announces "end run" simply stops its instance.
package anim
