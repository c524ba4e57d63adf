package codec

import "github.com/tagotip/tagotip/internal/grammar"

// scanUntilAny splits data at the first unescaped occurrence of any byte in
// markers, returning the segment before it and the remainder starting at
// the marker. If no marker occurs, seg is all of data and rest is nil —
// callers use that to detect a missing mandatory terminator.
func scanUntilAny(data []byte, markers ...byte) (seg []byte, rest []byte) {
	for i := 0; i < len(data); i++ {
		if data[i] == '\\' && i+1 < len(data) {
			i++
			continue
		}
		for _, m := range markers {
			if data[i] == m {
				return data[:i], data[i:]
			}
		}
	}
	return data, nil
}

// parseMetaBlock parses the interior of a "{...}" block into ordered
// key=value pairs. pos is the offset of the block's first byte in the
// original frame, used only to place errors. remaining tracks the
// frame-wide meta budget and is decremented in place.
func parseMetaBlock(data []byte, pos int, maxPairs int, remaining *int) ([]MetaPair, error) {
	if len(data) == 0 {
		return nil, grammar.NewParseError(grammar.InvalidMetadata, pos)
	}
	parts := grammar.Split(data, ',', -1)
	if len(parts) > maxPairs {
		return nil, grammar.NewParseError(grammar.TooManyItems, pos)
	}
	pairs := make([]MetaPair, 0, len(parts))
	off := pos
	for _, p := range parts {
		eq := grammar.FindUnescaped(p, '=')
		if eq < 0 {
			return nil, grammar.NewParseError(grammar.InvalidMetadata, off)
		}
		key := string(grammar.Unescape(p[:eq]))
		if !isValidMetaKey(key) {
			return nil, grammar.NewParseError(grammar.InvalidMetadata, off)
		}
		val := string(grammar.Unescape(p[eq+1:]))
		*remaining--
		if *remaining < 0 {
			return nil, grammar.NewParseError(grammar.TooManyItems, off)
		}
		pairs = append(pairs, MetaPair{Key: key, Value: val})
		off += len(p) + 1
	}
	return pairs, nil
}

// parseValue parses a variable's value token given its operator, returning
// the parsed Value and the unconsumed remainder (the suffix text).
func parseValue(op Operator, data []byte, pos int) (Value, []byte, error) {
	raw, rest := scanUntilAny(data, '#', '@', '^', '{')
	v := Value{Op: op}
	switch op {
	case OpNumber:
		if !isValidNumber(string(raw)) {
			return v, nil, grammar.NewParseError(grammar.InvalidVariable, pos)
		}
		v.Number = string(raw)
	case OpString:
		if len(raw) == 0 {
			return v, nil, grammar.NewParseError(grammar.InvalidVariable, pos)
		}
		v.Str = string(grammar.Unescape(raw))
	case OpBoolean:
		s := string(raw)
		if s != "true" && s != "false" {
			return v, nil, grammar.NewParseError(grammar.InvalidVariable, pos)
		}
		v.Bool = s == "true"
	case OpLocation:
		comps := grammar.Split(raw, ',', -1)
		if len(comps) < 2 || len(comps) > 3 {
			return v, nil, grammar.NewParseError(grammar.InvalidVariable, pos)
		}
		for _, c := range comps {
			if !isValidNumber(string(c)) {
				return v, nil, grammar.NewParseError(grammar.InvalidVariable, pos)
			}
		}
		v.Location = Location{Lat: string(comps[0]), Lng: string(comps[1])}
		if len(comps) == 3 {
			v.Location.Alt = string(comps[2])
			v.Location.HasAlt = true
		}
	}
	return v, rest, nil
}
