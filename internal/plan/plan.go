// Package plan is the output of a frame graph compile: passes grouped in
// waves, each carrying the barriers and semaphore operations that must
// surround its GPU work, plus the physical instances backing every handle.
package plan

import (
	"github.com/vk/framegraph/internal/gfx"
	"github.com/vk/framegraph/internal/node"
	"github.com/vk/framegraph/internal/resource"
	"github.com/vk/framegraph/internal/substate"
)

// NoSemaphore marks a barrier that is not part of a queue transfer.
const NoSemaphore = -1

// Plan is a compiled frame graph.
type Plan struct {
	Waves       []Wave       `json:"waves"`
	Instances   []Instance   `json:"instances"`
	Semaphores  []Semaphore  `json:"semaphores"`
	Assignments []Assignment `json:"assignments"`
}

// Wave is a set of passes with no ordering dependency among themselves.
type Wave struct {
	Index  int        `json:"index"`
	Passes []PassPlan `json:"passes"`
}

// PassPlan is everything the executor needs to run one pass. The executor
// performs, in order: Waits, Acquires, Barriers, Execute, Releases, Signals.
type PassPlan struct {
	Node  node.ID        `json:"node"`
	Name  string         `json:"name"`
	Queue gfx.QueueClass `json:"queue"`

	Waits    []Wait    `json:"waits,omitempty"`
	Acquires []Barrier `json:"acquires,omitempty"`
	Barriers []Barrier `json:"barriers,omitempty"`
	Releases []Barrier `json:"releases,omitempty"`
	Signals  []int     `json:"signals,omitempty"`

	// Objects maps slot names to the instance backing them.
	Objects map[string]int   `json:"objects"`
	Execute node.ExecuteFunc `json:"-"`
}

// Barrier is an execution and memory dependency over a range of one
// instance. Acquire and release halves of a queue transfer carry the
// semaphore that connects them.
type Barrier struct {
	Handle    resource.Handle `json:"-"`
	Resource  string          `json:"resource"`
	Instance  int             `json:"instance"`
	Range     substate.Range  `json:"range"`
	Src       substate.State  `json:"src"`
	Dst       substate.State  `json:"dst"`
	Semaphore int             `json:"semaphore"`
}

// Transfer reports whether the barrier moves ownership between queues.
func (b Barrier) Transfer() bool {
	return b.Src.Queue != gfx.QueueIgnored && b.Dst.Queue != gfx.QueueIgnored && b.Src.Queue != b.Dst.Queue
}

// Wait makes a pass wait on a semaphore before the given stage.
type Wait struct {
	Semaphore int       `json:"semaphore"`
	Stage     gfx.Stage `json:"stage"`
}

// Semaphore connects the release of a queue transfer on the source queue
// with its acquire on the destination queue.
type Semaphore struct {
	ID        int             `json:"id"`
	Handle    resource.Handle `json:"-"`
	Resource  string          `json:"resource"`
	Range     substate.Range  `json:"range"`
	SrcQueue  gfx.QueueClass  `json:"src_queue"`
	DstQueue  gfx.QueueClass  `json:"dst_queue"`
	Signaler  string          `json:"signaler"`
	Waiter    string          `json:"waiter"`
	WaitStage gfx.Stage       `json:"wait_stage"`
}

// Instance is a physical resource used by the plan.
type Instance struct {
	Index    int              `json:"index"`
	Image    bool             `json:"image"`
	External bool             `json:"external"`
	Object   any              `json:"-"`
	Leases   []resource.Lease `json:"-"`
	Handles  []string         `json:"handles"`
}

// Assignment records which instance backed a handle and for which waves.
type Assignment struct {
	Handle    resource.Handle `json:"-"`
	Resource  string          `json:"resource"`
	Instance  int             `json:"instance"`
	Reused    bool            `json:"reused"`
	FirstWave int             `json:"first_wave"`
	LastWave  int             `json:"last_wave"`
}

// Passes returns every pass in execution order.
func (p *Plan) Passes() []*PassPlan {
	var out []*PassPlan
	for i := range p.Waves {
		for j := range p.Waves[i].Passes {
			out = append(out, &p.Waves[i].Passes[j])
		}
	}
	return out
}

// Pass returns the pass with the given name.
func (p *Plan) Pass(name string) (*PassPlan, bool) {
	for _, pp := range p.Passes() {
		if pp.Name == name {
			return pp, true
		}
	}
	return nil, false
}

// Assignment returns the assignment of h.
func (p *Plan) Assignment(h resource.Handle) (Assignment, bool) {
	for _, a := range p.Assignments {
		if a.Handle == h {
			return a, true
		}
	}
	return Assignment{}, false
}
