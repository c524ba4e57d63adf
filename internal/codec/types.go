// Package codec implements the TagoTiP text frame grammar: UplinkFrame,
// AckFrame, and their headless (envelope-payload) variants. Parsed fields
// are lexical — stored as the exact text the device sent — so numeric
// values round-trip without any precision loss through an intermediate
// float representation, matching spec §4.2's round-trip law.
package codec

// Method identifies an uplink frame's verb.
type Method int

const (
	Push Method = iota
	Pull
	Ping
)

func (m Method) String() string {
	switch m {
	case Push:
		return "PUSH"
	case Pull:
		return "PULL"
	case Ping:
		return "PING"
	default:
		return "UNKNOWN"
	}
}

// Operator identifies a Variable's value kind and the operator token that
// introduced it in the wire grammar.
type Operator int

const (
	OpNumber Operator = iota
	OpString
	OpBoolean
	OpLocation
)

func (o Operator) Token() string {
	switch o {
	case OpNumber:
		return ":="
	case OpString:
		return "="
	case OpBoolean:
		return "?="
	case OpLocation:
		return "@="
	default:
		return ""
	}
}

// Value is a tagged union over the four wire value kinds. Exactly one of
// the typed accessors is meaningful, selected by Op.
type Value struct {
	Op       Operator
	Number   string // lexical form, e.g. "-0", "0.5", "999999999999"
	Str      string
	Bool     bool
	Location Location
}

// Location holds 2 or 3 lexical numeric components. Alt is empty when
// absent; HasAlt distinguishes "no altitude" from "altitude is zero".
type Location struct {
	Lat, Lng string
	Alt      string
	HasAlt   bool
}

// MetaPair is one {key=value} entry. Order is preserved on parse and
// build.
type MetaPair struct {
	Key   string
	Value string
}

// Variable is one entry of a structured Push body's variable list.
type Variable struct {
	Name      string
	Value     Value
	Unit      string
	HasUnit   bool
	Timestamp string
	HasTS     bool
	Group     string
	HasGroup  bool
	Meta      []MetaPair
}

// StructuredBody carries body-level defaults plus the ordered variable
// list of a structured Push.
type StructuredBody struct {
	Group      string
	HasGroup   bool
	Timestamp  string
	HasTS      bool
	Meta       []MetaPair
	Variables  []Variable
}

// Encoding identifies a PassthroughBody's text encoding.
type Encoding int

const (
	Hex Encoding = iota
	Base64
)

// PassthroughBody carries a raw, already-encoded payload (">x.." or
// ">b..").
type PassthroughBody struct {
	Encoding Encoding
	Data     string
}

// PushBody is the tagged union of the two Push payload shapes.
type PushBody struct {
	Structured  *StructuredBody
	Passthrough *PassthroughBody
}

// PullBody holds the ordered variable-name list of a Pull request.
type PullBody struct {
	Variables []string
}

// UplinkFrame is a fully parsed device→server frame.
type UplinkFrame struct {
	Method Method
	Seq    uint32
	HasSeq bool
	Auth   string
	Serial string

	Push *PushBody // set iff Method == Push and a body was present
	Pull *PullBody // set iff Method == Pull
}

// AckStatus identifies an AckFrame's outcome.
type AckStatus int

const (
	StatusOk AckStatus = iota
	StatusPong
	StatusCmd
	StatusErr
)

func (s AckStatus) String() string {
	switch s {
	case StatusOk:
		return "OK"
	case StatusPong:
		return "PONG"
	case StatusCmd:
		return "CMD"
	case StatusErr:
		return "ERR"
	default:
		return "UNKNOWN"
	}
}

// ErrCode enumerates the known Err detail codes; Unknown preserves any
// other lowercase identifier string in Raw.
type ErrCode int

const (
	ErrInvalidToken ErrCode = iota
	ErrInvalidMethod
	ErrInvalidPayload
	ErrInvalidSeq
	ErrDeviceNotFound
	ErrVariableNotFound
	ErrRateLimited
	ErrAuthFailed
	ErrUnsupportedVersion
	ErrPayloadTooLarge
	ErrServerError
	ErrUnknown
)

var errCodeText = map[ErrCode]string{
	ErrInvalidToken:       "invalid_token",
	ErrInvalidMethod:      "invalid_method",
	ErrInvalidPayload:     "invalid_payload",
	ErrInvalidSeq:         "invalid_seq",
	ErrDeviceNotFound:     "device_not_found",
	ErrVariableNotFound:   "variable_not_found",
	ErrRateLimited:        "rate_limited",
	ErrAuthFailed:         "auth_failed",
	ErrUnsupportedVersion: "unsupported_version",
	ErrPayloadTooLarge:    "payload_too_large",
	ErrServerError:        "server_error",
}

var textErrCode = func() map[string]ErrCode {
	m := make(map[string]ErrCode, len(errCodeText))
	for k, v := range errCodeText {
		m[v] = k
	}
	return m
}()

// AckDetail is the tagged union of the four status-dependent detail
// shapes.
type AckDetail struct {
	// Ok detail: exactly one of HasCount/Variables/Raw is meaningful, or
	// none if the Ok detail was absent entirely.
	HasCount  bool
	Count     uint32
	Variables string // "[...]" bracket text, set when not a count
	HasRaw    bool
	Raw       string // Pong raw text, or Cmd command text, or Ok fallback raw text

	// Err detail.
	Code ErrCode
	Text string // raw code text as seen on the wire, preserved for Unknown
}

// AckFrame is a fully parsed server→device acknowledgement.
type AckFrame struct {
	Seq       uint32
	HasSeq    bool
	Status    AckStatus
	HasDetail bool
	Detail    AckDetail
}

// HeadlessFrame is the envelope-payload form of either an uplink or an
// ack: method/auth (uplink) or the "ACK|" literal (ack) are omitted
// because they live in the envelope header.
type HeadlessFrame struct {
	// Uplink side (Method != -1 marks this as the uplink flavor).
	IsUplink bool
	Method   Method
	Serial   string
	Push     *PushBody
	Pull     *PullBody

	// Ack side.
	Status    AckStatus
	HasDetail bool
	Detail    AckDetail
}
