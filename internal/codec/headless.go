package codec

import (
	"strings"

	"github.com/tagotip/tagotip/internal/grammar"
)

// ParseHeadlessUplink parses an envelope-payload uplink body: "SERIAL",
// "SERIAL|BODY" or "SERIAL|[varnames]" — method is supplied by the caller
// from the envelope header since it is not repeated in the payload text.
func ParseHeadlessUplink(method Method, data []byte, limits Limits) (*HeadlessFrame, error) {
	trimmed, err := grammar.CheckFrame(data, limits.MaxFrameSize)
	if err != nil {
		return nil, err
	}
	fields := grammar.Split(trimmed, '|', 7)

	serial := string(grammar.Unescape(fields[0]))
	if !isValidSerial(serial) {
		return nil, grammar.NewParseError(grammar.InvalidSerial, 0)
	}
	off := len(fields[0]) + 1

	var body []byte
	if len(fields) > 1 {
		body = joinPipe(fields[1:])
	}

	hf := &HeadlessFrame{IsUplink: true, Method: method, Serial: serial}
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
		hf.Pull = &PullBody{Variables: names}
	case Push:
		if len(body) == 0 {
			return nil, grammar.NewParseError(grammar.MissingBody, off)
		}
		push, err := parsePushBody(body, off, limits)
		if err != nil {
			return nil, err
		}
		hf.Push = push
	default:
		return nil, grammar.NewParseError(grammar.InvalidMethod, 0)
	}
	return hf, nil
}

// BuildHeadlessUplink renders a HeadlessFrame's uplink side.
func BuildHeadlessUplink(hf *HeadlessFrame) (string, error) {
	var b strings.Builder
	b.WriteString(grammar.Escape(hf.Serial))
	switch hf.Method {
	case Push:
		if hf.Push == nil {
			return "", grammar.NewParseError(grammar.MissingBody, 0)
		}
		b.WriteByte('|')
		writePushBody(&b, hf.Push)
	case Pull:
		if hf.Pull == nil {
			return "", grammar.NewParseError(grammar.MissingBody, 0)
		}
		b.WriteByte('|')
		b.WriteByte('[')
		for i, name := range hf.Pull.Variables {
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

// ParseHeadlessAck parses an envelope-payload ack body: "STATUS[|DETAIL]",
// omitting the "ACK|" literal present in the text-layer form.
func ParseHeadlessAck(data []byte, limits Limits) (*HeadlessFrame, error) {
	trimmed, err := grammar.CheckFrame(data, limits.MaxFrameSize)
	if err != nil {
		return nil, err
	}
	fields := grammar.Split(trimmed, '|', 7)

	status, ok := parseStatusToken(string(fields[0]))
	if !ok {
		return nil, grammar.NewParseError(grammar.InvalidAck, 0)
	}
	off := len(fields[0]) + 1

	hf := &HeadlessFrame{Status: status}
	if len(fields) > 1 {
		detail, err := parseAckDetail(status, joinPipe(fields[1:]), off)
		if err != nil {
			return nil, err
		}
		hf.Detail = detail
		hf.HasDetail = true
	}
	return hf, nil
}

// BuildHeadlessAck renders a HeadlessFrame's ack side.
func BuildHeadlessAck(hf *HeadlessFrame) (string, error) {
	var b strings.Builder
	b.WriteString(hf.Status.String())
	if hf.HasDetail {
		b.WriteByte('|')
		writeAckDetail(&b, hf.Status, hf.Detail)
	}
	return b.String(), nil
}
