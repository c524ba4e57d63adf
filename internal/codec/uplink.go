package codec

import (
	"strconv"
	"strings"

	"github.com/tagotip/tagotip/internal/grammar"
)

// ParseUplink parses a full wire-form uplink frame using DefaultLimits.
func ParseUplink(data []byte) (*UplinkFrame, error) {
	return ParseUplinkWithLimits(data, DefaultLimits())
}

// ParseUplinkWithLimits parses "METHOD|!SEQ|AUTH|SERIAL|BODY" (SEQ
// optional) per spec §4.2.
func ParseUplinkWithLimits(data []byte, limits Limits) (*UplinkFrame, error) {
	trimmed, err := grammar.CheckFrame(data, limits.MaxFrameSize)
	if err != nil {
		return nil, err
	}
	fields := grammar.Split(trimmed, '|', 7)

	methodText := string(fields[0])
	var method Method
	switch methodText {
	case "PUSH":
		method = Push
	case "PULL":
		method = Pull
	case "PING":
		method = Ping
	default:
		return nil, grammar.NewParseError(grammar.InvalidMethod, 0)
	}

	idx := 1
	off := len(fields[0]) + 1
	frame := &UplinkFrame{Method: method}

	if idx < len(fields) && len(fields[idx]) > 0 && fields[idx][0] == '!' {
		n, ok := parseSeqText(string(fields[idx][1:]))
		if !ok {
			return nil, grammar.NewParseError(grammar.InvalidSeq, off)
		}
		frame.Seq = n
		frame.HasSeq = true
		off += len(fields[idx]) + 1
		idx++
	}

	if idx >= len(fields) {
		return nil, grammar.NewParseError(grammar.InvalidAuth, off)
	}
	auth := string(fields[idx])
	if !isValidAuth(auth) {
		return nil, grammar.NewParseError(grammar.InvalidAuth, off)
	}
	frame.Auth = auth
	off += len(fields[idx]) + 1
	idx++

	if idx >= len(fields) {
		return nil, grammar.NewParseError(grammar.InvalidSerial, off)
	}
	serial := string(grammar.Unescape(fields[idx]))
	if !isValidSerial(serial) {
		return nil, grammar.NewParseError(grammar.InvalidSerial, off)
	}
	frame.Serial = serial
	off += len(fields[idx]) + 1
	idx++

	var body []byte
	if idx < len(fields) {
		body = joinPipe(fields[idx:])
	}

	switch method {
	case Ping:
		if len(body) != 0 {
			return nil, grammar.NewParseError(grammar.MissingBody, off)
		}
	case Pull:
		if len(body) < 2 || body[0] != '[' || body[len(body)-1] != ']' {
			return nil, grammar.NewParseError(grammar.MissingBody, off)
		}
		names, err := parseVarnameList(body[1:len(body)-1], off+1, limits)
		if err != nil {
			return nil, err
		}
		frame.Pull = &PullBody{Variables: names}
	case Push:
		if len(body) == 0 {
			return nil, grammar.NewParseError(grammar.MissingBody, off)
		}
		push, err := parsePushBody(body, off, limits)
		if err != nil {
			return nil, err
		}
		frame.Push = push
	}

	return frame, nil
}

func parsePushBody(body []byte, pos int, limits Limits) (*PushBody, error) {
	if len(body) >= 2 && body[0] == '>' && body[1] == 'x' {
		hex := string(body[2:])
		if !isValidHex(hex) {
			return nil, grammar.NewParseError(grammar.InvalidPassthrough, pos)
		}
		return &PushBody{Passthrough: &PassthroughBody{Encoding: Hex, Data: hex}}, nil
	}
	if len(body) >= 2 && body[0] == '>' && body[1] == 'b' {
		b64 := string(body[2:])
		if !isValidBase64(b64) {
			return nil, grammar.NewParseError(grammar.InvalidPassthrough, pos)
		}
		return &PushBody{Passthrough: &PassthroughBody{Encoding: Base64, Data: b64}}, nil
	}
	sb, err := parseStructuredBody(body, pos, limits)
	if err != nil {
		return nil, err
	}
	return &PushBody{Structured: sb}, nil
}

func joinPipe(fields [][]byte) []byte {
	total := 0
	for i, f := range fields {
		total += len(f)
		if i > 0 {
			total++
		}
	}
	out := make([]byte, 0, total)
	for i, f := range fields {
		if i > 0 {
			out = append(out, '|')
		}
		out = append(out, f...)
	}
	return out
}

// BuildUplink renders frame into its canonical wire form.
func BuildUplink(frame *UplinkFrame) (string, error) {
	var b strings.Builder
	b.WriteString(frame.Method.String())
	if frame.HasSeq {
		b.WriteByte('|')
		b.WriteByte('!')
		b.WriteString(strconv.FormatUint(uint64(frame.Seq), 10))
	}
	b.WriteByte('|')
	b.WriteString(frame.Auth)
	b.WriteByte('|')
	b.WriteString(grammar.Escape(frame.Serial))

	switch frame.Method {
	case Push:
		if frame.Push == nil {
			return "", grammar.NewParseError(grammar.MissingBody, 0)
		}
		b.WriteByte('|')
		writePushBody(&b, frame.Push)
	case Pull:
		if frame.Pull == nil {
			return "", grammar.NewParseError(grammar.MissingBody, 0)
		}
		b.WriteByte('|')
		b.WriteByte('[')
		for i, name := range frame.Pull.Variables {
			if i > 0 {
				b.WriteByte(';')
			}
			b.WriteString(grammar.Escape(name))
		}
		b.WriteByte(']')
	case Ping:
	}
	return b.String(), nil
}

func writePushBody(b *strings.Builder, push *PushBody) {
	if push.Passthrough != nil {
		if push.Passthrough.Encoding == Hex {
			b.WriteString(">x")
		} else {
			b.WriteString(">b")
		}
		b.WriteString(push.Passthrough.Data)
		return
	}
	sb := push.Structured
	if sb.HasGroup {
		b.WriteByte('^')
		b.WriteString(grammar.Escape(sb.Group))
	}
	if sb.HasTS {
		b.WriteByte('@')
		b.WriteString(sb.Timestamp)
	}
	writeMeta(b, sb.Meta)
	b.WriteByte('[')
	for i, v := range sb.Variables {
		if i > 0 {
			b.WriteByte(';')
		}
		writeVariable(b, v)
	}
	b.WriteByte(']')
}

func writeMeta(b *strings.Builder, meta []MetaPair) {
	if meta == nil {
		return
	}
	b.WriteByte('{')
	for i, m := range meta {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(grammar.Escape(m.Key))
		b.WriteByte('=')
		b.WriteString(grammar.Escape(m.Value))
	}
	b.WriteByte('}')
}

func writeVariable(b *strings.Builder, v Variable) {
	b.WriteString(v.Name)
	b.WriteString(v.Value.Op.Token())
	writeValue(b, v.Value)
	if v.HasUnit {
		b.WriteByte('#')
		b.WriteString(grammar.Escape(v.Unit))
	}
	if v.HasTS {
		b.WriteByte('@')
		b.WriteString(v.Timestamp)
	}
	if v.HasGroup {
		b.WriteByte('^')
		b.WriteString(grammar.Escape(v.Group))
	}
	writeMeta(b, v.Meta)
}

func writeValue(b *strings.Builder, v Value) {
	switch v.Op {
	case OpNumber:
		b.WriteString(v.Number)
	case OpString:
		b.WriteString(grammar.Escape(v.Str))
	case OpBoolean:
		if v.Bool {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case OpLocation:
		b.WriteString(v.Location.Lat)
		b.WriteByte(',')
		b.WriteString(v.Location.Lng)
		if v.Location.HasAlt {
			b.WriteByte(',')
			b.WriteString(v.Location.Alt)
		}
	}
}
