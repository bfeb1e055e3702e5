// Package app wires the frame graph pipeline together: it loads a graph
// declaration, compiles it against the in-memory device, optionally replays
// and publishes the plan, and reports the result. It is independent of the
// entrypoint that configures it.
package app
