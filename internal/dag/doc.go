// Package dag holds the dependency graph between frame graph passes. Edges
// come from data flow (an input reading another pass's output) and from
// explicitly declared dependencies. The graph rejects self edges and reports
// cycles; ordering into waves is done by the scheduler package.
package dag
