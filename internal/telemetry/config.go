package telemetry

// Config controls whether tracing is enabled and where spans are exported.
type Config struct {
	// Enabled indicates whether tracing is enabled. When false, Init
	// installs a no-op tracer and every other function in this package
	// becomes a cheap no-op.
	Enabled bool

	// ServiceName is reported to the trace backend as the resource's
	// service.name attribute.
	ServiceName string

	// ServiceVersion is reported as the resource's service.version
	// attribute.
	ServiceVersion string

	// OTLPEndpoint is the OTLP/gRPC collector endpoint (e.g.
	// "localhost:4317").
	OTLPEndpoint string

	// Insecure disables TLS on the OTLP/gRPC connection, for talking to a
	// collector sidecar over a loopback or private network.
	Insecure bool

	// SampleFraction is the fraction (0..1) of traces sampled when
	// Enabled. 1 samples everything, 0 samples nothing.
	SampleFraction float64
}

// DefaultConfig returns tracing disabled by default, with development-
// friendly values for the fields that matter once it's turned on.
func DefaultConfig() Config {
	return Config{
		Enabled:        false,
		ServiceName:    "dittomds",
		ServiceVersion: "dev",
		OTLPEndpoint:   "localhost:4317",
		Insecure:       true,
		SampleFraction: 1.0,
	}
}
