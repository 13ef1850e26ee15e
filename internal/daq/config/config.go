// Package config holds the three configuration documents of a run: device,
// Buffer Manager, and Pulse Filter. Each is loaded with
// pkg/conf.LoadConfigFile, which is format-agnostic (JSON/YAML/TOML) and
// hot-reloads on change.
package config

// DeviceConfig mirrors the device collaborator's read-only scalars and
// lists.
type DeviceConfig struct {
	Model        string    `json:"model" yaml:"model"`
	PicoChannels []string  `json:"picoChannels" yaml:"picoChannels"`
	ChanRanges   []float64 `json:"chanRanges" yaml:"chanRanges"`
	ChanOffsets  []float64 `json:"chanOffsets" yaml:"chanOffsets"`
	ChanColors   []string  `json:"chanColors" yaml:"chanColors"`
	NSamples     int       `json:"nSamples" yaml:"nSamples"`
	SampleTime   float64   `json:"sampleTime" yaml:"sampleTime"`
	TrgChan      string    `json:"trgChan" yaml:"trgChan"`
	TrgThr       float64   `json:"trgThr" yaml:"trgThr"`
	TrgType      string    `json:"trgType" yaml:"trgType"`
	TrgActive    bool      `json:"trgActive" yaml:"trgActive"`
	Pretrig      float64   `json:"pretrig" yaml:"pretrig"`

	// Signal-generator parameters, optional; consumed only by simdevice.
	SigGenFreq     float64 `json:"frqSG,omitempty" yaml:"frqSG,omitempty"`
	SigGenWaveType string  `json:"waveTypeSG,omitempty" yaml:"waveTypeSG,omitempty"`
}

// DefaultDeviceConfig is the two-channel oscilloscope default.
func DefaultDeviceConfig() DeviceConfig {
	return DeviceConfig{
		Model:        "2000a",
		PicoChannels: []string{"A", "B"},
		ChanRanges:   []float64{30e-3, 0.35},
		NSamples:     200,
		SampleTime:   10e-6,
		TrgChan:      "A",
		TrgThr:       15e-3,
		TrgType:      "Rising",
		TrgActive:    true,
		Pretrig:      0.05,
	}
}

// BufferManagerConfig is the Buffer Manager document.
type BufferManagerConfig struct {
	NBuffers  int      `json:"nBuffers" yaml:"nBuffers"`
	BMModules []string `json:"bmModules" yaml:"bmModules"`
	LogFile   string   `json:"logFile" yaml:"logFile"`
	Verbose   int      `json:"verbose" yaml:"verbose"`
	LogTime   int      `json:"logTime" yaml:"logTime"` // seconds between progress prints

	// RedisAddr, when non-empty, backs each BMModules entry with a Redis
	// capped stream so the module can run as a separate process.
	RedisAddr string `json:"redisAddr,omitempty" yaml:"redisAddr,omitempty"`

	// TraceEndpoint, when non-empty, exports OTLP spans (gRPC) to this
	// collector address. Spans are still issued locally when empty, so log
	// lines carry trace/span IDs either way.
	TraceEndpoint string `json:"traceEndpoint,omitempty" yaml:"traceEndpoint,omitempty"`
}

// DefaultBufferManagerConfig returns the defaults used when no Buffer
// Manager document is supplied.
func DefaultBufferManagerConfig() BufferManagerConfig {
	return BufferManagerConfig{NBuffers: 16, Verbose: 1, LogTime: 60}
}

// PulseShapeConfig is one entry of the Pulse Filter's pulseShape list.
type PulseShapeConfig struct {
	TauR    float64 `json:"taur" yaml:"taur"`
	TauOn   float64 `json:"tauon" yaml:"tauon"`
	TauF    float64 `json:"tauf" yaml:"tauf"`
	Mode    string  `json:"mode" yaml:"mode"` // "unipolar" | "bipolar"
	PHeight float64 `json:"pheight" yaml:"pheight"`
}

// PulseFilterConfig is the Pulse Filter document.
type PulseFilterConfig struct {
	PulseShape []PulseShapeConfig `json:"pulseShape" yaml:"pulseShape"`
	IdTprec    int                `json:"idTprec" yaml:"idTprec"`
	LogFile    string             `json:"logFile,omitempty" yaml:"logFile,omitempty"`
	LogFile2   string             `json:"logFile2,omitempty" yaml:"logFile2,omitempty"`
	RawFile    string             `json:"rawFile,omitempty" yaml:"rawFile,omitempty"`
	PictFile   string             `json:"pictFile,omitempty" yaml:"pictFile,omitempty"`
}

// DefaultPulseFilterConfig is a single trigger-only unipolar pulse shape
// matching the S2 validation scenario.
func DefaultPulseFilterConfig() PulseFilterConfig {
	return PulseFilterConfig{
		PulseShape: []PulseShapeConfig{
			{TauR: 1e-6, TauOn: 1e-6, TauF: 2e-6, Mode: "unipolar", PHeight: -0.035},
		},
		IdTprec: 3,
	}
}
