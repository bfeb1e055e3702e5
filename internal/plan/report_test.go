package plan

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/framegraph/internal/gfx"
	"github.com/vk/framegraph/internal/resource"
	"github.com/vk/framegraph/internal/substate"
)

func samplePlan() *Plan {
	full := substate.ImageRange{MipCount: 1, LayerCount: 1}
	written := substate.State{Access: gfx.AccessColorWrite, Stage: gfx.StageColorOutput, Layout: gfx.LayoutColorAttachment, Queue: gfx.QueueGraphics}
	read := substate.State{Access: gfx.AccessShaderRead, Stage: gfx.StageComputeShader, Layout: gfx.LayoutShaderRead, Queue: gfx.QueueCompute}
	h := resource.ImageHandle(1)

	return &Plan{
		Waves: []Wave{
			{Index: 0, Passes: []PassPlan{{
				Name:  "draw",
				Queue: gfx.QueueGraphics,
				Barriers: []Barrier{{
					Handle: h, Resource: "hdr", Range: full,
					Src: substate.State{}, Dst: written, Semaphore: NoSemaphore,
				}},
				Releases: []Barrier{{
					Handle: h, Resource: "hdr", Range: full,
					Src: written, Dst: substate.State{Layout: gfx.LayoutShaderRead, Queue: gfx.QueueCompute}, Semaphore: 0,
				}},
				Signals: []int{0},
				Objects: map[string]int{"color": 0},
			}}},
			{Index: 1, Passes: []PassPlan{{
				Name:  "blur",
				Queue: gfx.QueueCompute,
				Waits: []Wait{{Semaphore: 0, Stage: gfx.StageComputeShader}},
				Acquires: []Barrier{{
					Handle: h, Resource: "hdr", Range: full,
					Src: substate.State{Layout: gfx.LayoutColorAttachment, Queue: gfx.QueueGraphics}, Dst: read, Semaphore: 0,
				}},
				Objects: map[string]int{"src": 0},
			}}},
		},
		Instances:   []Instance{{Index: 0, Image: true, Handles: []string{"hdr"}}},
		Semaphores:  []Semaphore{{ID: 0, Handle: h, Resource: "hdr", Range: full, SrcQueue: gfx.QueueGraphics, DstQueue: gfx.QueueCompute, Signaler: "draw", Waiter: "blur", WaitStage: gfx.StageComputeShader}},
		Assignments: []Assignment{{Handle: h, Resource: "hdr", Instance: 0, FirstWave: 0, LastWave: 1}},
	}
}

func TestSummary(t *testing.T) {
	p := samplePlan()
	s := p.Summary()
	assert.Equal(t, Summary{Passes: 2, Waves: 2, Instances: 1, Created: 1, Barriers: 1, Transfers: 1, Semaphores: 1}, s)
	assert.Equal(t, "2 passes in 2 waves, 1 instances (1 created, 0 aliased), 1 barriers, 1 queue transfers", s.String())
}

func TestLookups(t *testing.T) {
	p := samplePlan()

	blur, ok := p.Pass("blur")
	require.True(t, ok)
	assert.Equal(t, gfx.QueueCompute, blur.Queue)
	_, ok = p.Pass("missing")
	assert.False(t, ok)

	a, ok := p.Assignment(resource.ImageHandle(1))
	require.True(t, ok)
	assert.Equal(t, 1, a.LastWave)
	_, ok = p.Assignment(resource.BufferHandle(1))
	assert.False(t, ok, "handles of different kinds never match")

	assert.True(t, p.Waves[0].Passes[0].Releases[0].Transfer())
	assert.False(t, p.Waves[0].Passes[0].Barriers[0].Transfer())
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, samplePlan().WriteText(&buf))
	out := buf.String()

	for _, want := range []string{
		"wave 0\n",
		"  pass draw (queue graphics)\n",
		"    signal   sem0\n",
		"wave 1\n",
		"    wait     sem0 at compute_shader\n",
		"  #0 image: hdr\n",
		"summary: 2 passes in 2 waves",
	} {
		assert.Contains(t, out, want)
	}
	assert.Less(t, strings.Index(out, "pass draw"), strings.Index(out, "pass blur"))
	assert.Contains(t, out, "release  hdr #0")
	assert.Contains(t, out, " sem0\n")
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, samplePlan().WriteJSON(&buf))

	var decoded struct {
		Waves []struct {
			Passes []struct {
				Name    string         `json:"name"`
				Queue   string         `json:"queue"`
				Signals []int          `json:"signals"`
				Objects map[string]int `json:"objects"`
			} `json:"passes"`
		} `json:"waves"`
		Semaphores []struct {
			Signaler string `json:"signaler"`
			Waiter   string `json:"waiter"`
			DstQueue string `json:"dst_queue"`
		} `json:"semaphores"`
		Summary Summary `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))

	require.Len(t, decoded.Waves, 2)
	assert.Equal(t, "draw", decoded.Waves[0].Passes[0].Name)
	assert.Equal(t, "graphics", decoded.Waves[0].Passes[0].Queue)
	assert.Equal(t, []int{0}, decoded.Waves[0].Passes[0].Signals)
	assert.Equal(t, map[string]int{"src": 0}, decoded.Waves[1].Passes[0].Objects)
	require.Len(t, decoded.Semaphores, 1)
	assert.Equal(t, "compute", decoded.Semaphores[0].DstQueue)
	assert.Equal(t, 2, decoded.Summary.Passes)
}
