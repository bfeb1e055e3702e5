package plan

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Summary holds plan statistics.
type Summary struct {
	Passes     int `json:"passes"`
	Waves      int `json:"waves"`
	Instances  int `json:"instances"`
	Created    int `json:"created"`
	Aliased    int `json:"aliased"`
	Barriers   int `json:"barriers"`
	Transfers  int `json:"transfers"`
	Semaphores int `json:"semaphores"`
}

// Summary counts passes, instances and synchronization operations.
func (p *Plan) Summary() Summary {
	s := Summary{
		Waves:      len(p.Waves),
		Instances:  len(p.Instances),
		Semaphores: len(p.Semaphores),
	}
	for _, pp := range p.Passes() {
		s.Passes++
		s.Barriers += len(pp.Barriers)
		s.Transfers += len(pp.Releases)
	}
	for _, inst := range p.Instances {
		if !inst.External {
			s.Created++
		}
	}
	for _, a := range p.Assignments {
		if a.Reused {
			s.Aliased++
		}
	}
	return s
}

func (s Summary) String() string {
	return fmt.Sprintf("%d passes in %d waves, %d instances (%d created, %d aliased), %d barriers, %d queue transfers",
		s.Passes, s.Waves, s.Instances, s.Created, s.Aliased, s.Barriers, s.Transfers)
}

// WriteText writes a human readable report of the plan.
func (p *Plan) WriteText(w io.Writer) error {
	var b strings.Builder
	for _, wave := range p.Waves {
		fmt.Fprintf(&b, "wave %d\n", wave.Index)
		for _, pp := range wave.Passes {
			fmt.Fprintf(&b, "  pass %s (queue %s)\n", pp.Name, pp.Queue)
			for _, wt := range pp.Waits {
				fmt.Fprintf(&b, "    wait     sem%d at %s\n", wt.Semaphore, wt.Stage)
			}
			writeBarriers(&b, "acquire", pp.Acquires)
			writeBarriers(&b, "barrier", pp.Barriers)
			writeBarriers(&b, "release", pp.Releases)
			for _, id := range pp.Signals {
				fmt.Fprintf(&b, "    signal   sem%d\n", id)
			}
		}
	}
	if len(p.Instances) > 0 {
		b.WriteString("instances\n")
		for _, inst := range p.Instances {
			kind := "buffer"
			if inst.Image {
				kind = "image"
			}
			ext := ""
			if inst.External {
				ext = " external"
			}
			fmt.Fprintf(&b, "  #%d %s%s: %s\n", inst.Index, kind, ext, strings.Join(inst.Handles, ", "))
		}
	}
	fmt.Fprintf(&b, "summary: %s\n", p.Summary())
	_, err := io.WriteString(w, b.String())
	return err
}

func writeBarriers(b *strings.Builder, label string, barriers []Barrier) {
	for _, br := range barriers {
		fmt.Fprintf(b, "    %-8s %s #%d %s: %s -> %s", label, br.Resource, br.Instance, br.Range, br.Src, br.Dst)
		if br.Semaphore != NoSemaphore {
			fmt.Fprintf(b, " sem%d", br.Semaphore)
		}
		b.WriteByte('\n')
	}
}

// WriteJSON writes the plan and its summary as indented JSON.
func (p *Plan) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		*Plan
		Summary Summary `json:"summary"`
	}{p, p.Summary()})
}
