package codec

// Limits collects the tunable caps spec §6 calls out as "the recognized
// tuning knobs". They are the only configuration surface the core
// exposes; everything else (replay windows, key storage, transport) is a
// caller concern per §6.
type Limits struct {
	MaxVariables int // per-frame variable count cap
	MaxMetaPairs int // per-variable or per-body meta cap
	MaxTotalMeta int // frame-wide meta cap
	MaxFrameSize int // top-level input size cap, bytes
}

// DefaultLimits returns the server-class defaults from spec §6.
func DefaultLimits() Limits {
	return Limits{
		MaxVariables: 100,
		MaxMetaPairs: 32,
		MaxTotalMeta: 512,
		MaxFrameSize: 16384,
	}
}

// EmbeddedLimits returns the reduced caps spec §6 recommends for
// Arduino-class MCUs.
func EmbeddedLimits() Limits {
	return Limits{
		MaxVariables: 16,
		MaxMetaPairs: 8,
		MaxTotalMeta: 512,
		MaxFrameSize: 16384,
	}
}
