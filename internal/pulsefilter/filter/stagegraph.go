package filter

import (
	"github.com/arcade-daq/waveflow/pkg/dag"
	"github.com/arcade-daq/waveflow/pkg/log"
)

// stageNode implements dag.NamedNode for the filter's three fixed stages.
type stageNode struct {
	name string
	prev []string
}

func (n stageNode) NodeName() string        { return n.name }
func (n stageNode) PrevNodeNames() []string { return n.prev }

const (
	stageValidate = "validate"
	stageCoincide = "coincide"
	stageRescan   = "rescan"
)

// buildStageGraph declares the pipeline's fixed dependency order as data
// rather than as hard-coded control flow, so a later stage addition only
// needs a new node/edge here. The three-stage chain is linear and known at
// compile time, so construction can never fail; a failure would mean this
// function itself was edited incorrectly.
func buildStageGraph() *dag.DAG {
	nodes := []dag.NamedNode{
		stageNode{name: stageValidate},
		stageNode{name: stageCoincide, prev: []string{stageValidate}},
		stageNode{name: stageRescan, prev: []string{stageCoincide}},
	}
	g, err := dag.New(nodes)
	if err != nil {
		panic("filter: invalid stage graph: " + err.Error())
	}
	return g
}

// markStageDone records the stage names completed so far and asks the
// graph what becomes schedulable next; tests assert this tracks the actual
// call order, which would otherwise drift silently if the pipeline were
// reordered without updating buildStageGraph.
func (f *Filter) markStageDone(done ...string) {
	next, err := f.stages.GetSchedulableNodeNames(done...)
	if err != nil {
		return
	}
	f.lastSchedulable = next

	if complete, err := f.stages.IsComplete(done...); err == nil && complete {
		log.Debugw("pulse filter stage graph drained", "done", done)
	}
}
