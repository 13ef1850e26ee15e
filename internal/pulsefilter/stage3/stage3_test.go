package stage3

import (
	"testing"

	"github.com/arcade-daq/waveflow/internal/pulsefilter/template"
)

func buildTemplate() *template.Template {
	return template.Build(1.0, template.Shape{TauR: 2, TauOn: 3, TauF: 2, Height: 5, Mode: template.Unipolar})
}

func TestScanFindsSecondPulse(t *testing.T) {
	tpl := buildTemplate()
	second := 30
	total := second + tpl.L + 10
	signal := make([]float64, total)
	copy(signal[second:], tpl.Ref)

	pulses := Scan(signal, tpl.L, tpl)
	if len(pulses) != 1 {
		t.Fatalf("Scan() found %d pulses, want 1", len(pulses))
	}
	if pulses[0].Index != second {
		t.Errorf("Scan() found pulse at %d, want %d", pulses[0].Index, second)
	}
}

func TestScanFindsNothingOnFlatTail(t *testing.T) {
	tpl := buildTemplate()
	signal := make([]float64, tpl.L+40)

	pulses := Scan(signal, tpl.L, tpl)
	if len(pulses) != 0 {
		t.Errorf("Scan() found %d pulses on a flat tail, want 0: %+v", len(pulses), pulses)
	}
}

func TestScanOutOfRangeFromReturnsNil(t *testing.T) {
	tpl := buildTemplate()
	signal := make([]float64, 10)

	if pulses := Scan(signal, 100, tpl); pulses != nil {
		t.Errorf("Scan() with from beyond signal length = %+v, want nil", pulses)
	}
	if pulses := Scan(signal, -5, tpl); len(pulses) != 0 {
		t.Errorf("Scan() with negative from should clamp to 0 and find nothing here, got %+v", pulses)
	}
}
