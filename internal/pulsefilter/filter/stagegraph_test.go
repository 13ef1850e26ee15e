package filter

import "testing"

func TestBuildStageGraphLinearOrder(t *testing.T) {
	g := buildStageGraph()

	first, err := g.GetSchedulableNodeNames()
	if err != nil {
		t.Fatalf("GetSchedulableNodeNames() returned error: %v", err)
	}
	if len(first) != 1 || first[0] != stageValidate {
		t.Fatalf("initially schedulable = %v, want [%q]", first, stageValidate)
	}

	second, err := g.GetSchedulableNodeNames(stageValidate)
	if err != nil {
		t.Fatalf("GetSchedulableNodeNames(validate) returned error: %v", err)
	}
	if len(second) != 1 || second[0] != stageCoincide {
		t.Fatalf("schedulable after validate = %v, want [%q]", second, stageCoincide)
	}

	third, err := g.GetSchedulableNodeNames(stageValidate, stageCoincide)
	if err != nil {
		t.Fatalf("GetSchedulableNodeNames(validate, coincide) returned error: %v", err)
	}
	if len(third) != 1 || third[0] != stageRescan {
		t.Fatalf("schedulable after coincide = %v, want [%q]", third, stageRescan)
	}
}

func TestMarkStageDoneTracksSchedulableNodes(t *testing.T) {
	f := &Filter{stages: buildStageGraph()}

	f.markStageDone(stageValidate)
	if len(f.lastSchedulable) != 1 || f.lastSchedulable[0] != stageCoincide {
		t.Errorf("lastSchedulable after validate = %v, want [%q]", f.lastSchedulable, stageCoincide)
	}

	f.markStageDone(stageValidate, stageCoincide)
	if len(f.lastSchedulable) != 1 || f.lastSchedulable[0] != stageRescan {
		t.Errorf("lastSchedulable after coincide = %v, want [%q]", f.lastSchedulable, stageRescan)
	}
}
