package compile

import (
	"github.com/vk/framegraph/internal/gfx"
	"github.com/vk/framegraph/internal/substate"
)

// needsBarrier decides whether moving a sub-range from cur to req needs an
// execution or memory dependency. Queue transfers are handled separately.
func needsBarrier(cur, req substate.State, image bool) bool {
	if image && cur.Layout != req.Layout {
		return true
	}
	if cur.Access.HasWrite() {
		// read after write, write after write
		return true
	}
	if cur.Access == gfx.AccessNone && cur.Stage == gfx.StageNone {
		return false
	}
	if req.Access.HasWrite() {
		// write after read
		return true
	}
	// Read after read only needs a barrier when the new reads are not
	// already covered by the previous ones.
	return !cur.Access.Contains(req.Access) || !cur.Stage.Contains(req.Stage)
}

// needsTransfer reports whether moving from cur to req is a queue ownership
// transfer. Contents of an undefined image do not survive, so no transfer is
// needed for them.
func needsTransfer(cur, req substate.State, image bool) bool {
	if cur.Queue == gfx.QueueIgnored || req.Queue == gfx.QueueIgnored || cur.Queue == req.Queue {
		return false
	}
	return !image || cur.Layout != gfx.LayoutUndefined
}

// afterRequire is the state of a sub-range once a pass that required req has
// been synchronized. Reads that needed no barrier accumulate with the reads
// before them.
func afterRequire(cur, req substate.State, synced bool) substate.State {
	if synced {
		return req
	}
	return substate.State{
		Access: cur.Access | req.Access,
		Stage:  cur.Stage | req.Stage,
		Layout: req.Layout,
		Queue:  req.Queue,
	}
}

// releaseHalf and acquireHalf split a transfer from cur to req into the
// barrier recorded on the source queue and the one recorded on the
// destination queue. Both halves carry the same layouts and queues.
func releaseHalf(cur, req substate.State) (src, dst substate.State) {
	src = substate.State{Access: cur.Access.Writes(), Stage: cur.Stage, Layout: cur.Layout, Queue: cur.Queue}
	dst = substate.State{Layout: req.Layout, Queue: req.Queue}
	return src, dst
}

func acquireHalf(cur, req substate.State) (src, dst substate.State) {
	src = substate.State{Layout: cur.Layout, Queue: cur.Queue}
	return src, req
}

// waitStage is the stage a semaphore wait blocks.
func waitStage(req substate.State) gfx.Stage {
	if req.Stage == gfx.StageNone {
		return gfx.StageTopOfPipe
	}
	return req.Stage
}
