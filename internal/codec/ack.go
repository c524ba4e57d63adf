package codec

import (
	"strconv"
	"strings"

	"github.com/tagotip/tagotip/internal/grammar"
)

// ParseAck parses a full wire-form ack frame: "ACK|!SEQ|STATUS|DETAIL",
// with seq and detail both optional, per spec §4.3.
func ParseAck(data []byte) (*AckFrame, error) {
	trimmed, err := grammar.CheckFrame(data, grammar.MaxFrameSize)
	if err != nil {
		return nil, err
	}
	fields := grammar.Split(trimmed, '|', 7)

	if string(fields[0]) != "ACK" {
		return nil, grammar.NewParseError(grammar.InvalidAck, 0)
	}
	idx := 1
	off := len(fields[0]) + 1
	frame := &AckFrame{}

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
		return nil, grammar.NewParseError(grammar.InvalidAck, off)
	}
	status, ok := parseStatusToken(string(fields[idx]))
	if !ok {
		return nil, grammar.NewParseError(grammar.InvalidAck, off)
	}
	frame.Status = status
	off += len(fields[idx]) + 1
	idx++

	if idx < len(fields) {
		detail, err := parseAckDetail(status, joinPipe(fields[idx:]), off)
		if err != nil {
			return nil, err
		}
		frame.Detail = detail
		frame.HasDetail = true
	}
	return frame, nil
}

func parseSeqText(s string) (uint32, bool) {
	if len(s) == 0 {
		return 0, false
	}
	if s != "0" {
		if s[0] < '1' || s[0] > '9' {
			return 0, false
		}
	}
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return 0, false
		}
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || n > 4294967295 {
		return 0, false
	}
	return uint32(n), true
}

func parseStatusToken(s string) (AckStatus, bool) {
	switch s {
	case "OK":
		return StatusOk, true
	case "PONG":
		return StatusPong, true
	case "CMD":
		return StatusCmd, true
	case "ERR":
		return StatusErr, true
	default:
		return 0, false
	}
}

func parseAckDetail(status AckStatus, data []byte, pos int) (AckDetail, error) {
	var d AckDetail
	switch status {
	case StatusErr:
		code, known := textErrCode[string(data)]
		if !known {
			d.Code = ErrUnknown
		} else {
			d.Code = code
		}
		d.Text = string(data)
	case StatusOk:
		if n, err := strconv.ParseUint(string(data), 10, 32); err == nil {
			d.HasCount = true
			d.Count = uint32(n)
		} else if len(data) > 0 && data[0] == '[' {
			d.Variables = string(data)
		} else {
			d.HasRaw = true
			d.Raw = string(grammar.Unescape(data))
		}
	case StatusPong, StatusCmd:
		d.HasRaw = true
		d.Raw = string(grammar.Unescape(data))
	}
	return d, nil
}

// BuildAck renders frame into its canonical wire form.
func BuildAck(frame *AckFrame) (string, error) {
	var b strings.Builder
	b.WriteString("ACK")
	if frame.HasSeq {
		b.WriteByte('|')
		b.WriteByte('!')
		b.WriteString(strconv.FormatUint(uint64(frame.Seq), 10))
	}
	b.WriteByte('|')
	b.WriteString(frame.Status.String())
	if frame.HasDetail {
		b.WriteByte('|')
		writeAckDetail(&b, frame.Status, frame.Detail)
	}
	return b.String(), nil
}

func writeAckDetail(b *strings.Builder, status AckStatus, d AckDetail) {
	switch status {
	case StatusErr:
		if text, ok := errCodeText[d.Code]; ok {
			b.WriteString(text)
		} else {
			b.WriteString(d.Text)
		}
	case StatusOk:
		switch {
		case d.HasCount:
			b.WriteString(strconv.FormatUint(uint64(d.Count), 10))
		case d.Variables != "":
			b.WriteString(d.Variables)
		default:
			b.WriteString(grammar.Escape(d.Raw))
		}
	case StatusPong, StatusCmd:
		b.WriteString(grammar.Escape(d.Raw))
	}
}
