// Package scheduler orders the frame graph's dependency DAG into waves.
//
// # Why Waves Exist
//
// A wave is a set of passes with no ordering dependency among themselves.
// Waves batch the resource-aliasing decisions and barrier emission of one
// synchronization step: instances released at the end of a wave become
// candidates for reuse by handles born in later waves. They say nothing about
// host-thread parallelism.
//
// # How It Works
//
// Waves uses Kahn's zero-in-degree algorithm:
//  1. Every node without dependencies forms the first wave.
//  2. Removing a wave lowers the in-degree of its dependents; those that reach
//     zero form the next wave.
//  3. Nodes left over when no wave can be formed are part of a cycle.
//
// Within a wave, nodes keep their insertion order so compiled plans are
// deterministic.
package scheduler
