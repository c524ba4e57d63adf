package codec

import "github.com/tagotip/tagotip/internal/grammar"

// parseVariable parses one "name OP value #unit @ts ^group {meta}" token.
// pos is the token's offset in the original frame, for error placement.
func parseVariable(tok []byte, pos int, limits Limits, remainingMeta *int) (Variable, error) {
	i := 0
	for i < len(tok) && isVarnameByte(tok[i]) {
		i++
	}
	if i == 0 {
		return Variable{}, grammar.NewParseError(grammar.InvalidVariable, pos)
	}
	name := string(tok[:i])
	if !isValidVarname(name) {
		return Variable{}, grammar.NewParseError(grammar.InvalidVariable, pos)
	}

	var op Operator
	var valStart int
	switch {
	case i+1 < len(tok) && tok[i] == ':' && tok[i+1] == '=':
		op, valStart = OpNumber, i+2
	case i < len(tok) && tok[i] == '=':
		op, valStart = OpString, i+1
	case i+1 < len(tok) && tok[i] == '?' && tok[i+1] == '=':
		op, valStart = OpBoolean, i+2
	case i+1 < len(tok) && tok[i] == '@' && tok[i+1] == '=':
		op, valStart = OpLocation, i+2
	default:
		return Variable{}, grammar.NewParseError(grammar.InvalidVariable, pos)
	}

	value, rest, err := parseValue(op, tok[valStart:], pos)
	if err != nil {
		return Variable{}, err
	}

	v := Variable{Name: name, Value: value}
	if len(rest) > 0 && rest[0] == '#' {
		seg, r := scanUntilAny(rest[1:], '@', '^', '{')
		if op == OpLocation {
			return Variable{}, grammar.NewParseError(grammar.InvalidVariable, pos)
		}
		v.Unit = string(grammar.Unescape(seg))
		if !isValidUnit(v.Unit) {
			return Variable{}, grammar.NewParseError(grammar.InvalidVariable, pos)
		}
		v.HasUnit = true
		rest = r
	}
	if len(rest) > 0 && rest[0] == '@' {
		seg, r := scanUntilAny(rest[1:], '^', '{')
		v.Timestamp = string(seg)
		if !isValidTimestamp(v.Timestamp) {
			return Variable{}, grammar.NewParseError(grammar.InvalidVariable, pos)
		}
		v.HasTS = true
		rest = r
	}
	if len(rest) > 0 && rest[0] == '^' {
		seg, r := scanUntilAny(rest[1:], '{')
		v.Group = string(grammar.Unescape(seg))
		if !isValidGroup(v.Group) {
			return Variable{}, grammar.NewParseError(grammar.InvalidVariable, pos)
		}
		v.HasGroup = true
		rest = r
	}
	if len(rest) > 0 && rest[0] == '{' {
		end := grammar.FindUnescaped(rest[1:], '}')
		if end < 0 {
			return Variable{}, grammar.NewParseError(grammar.InvalidMetadata, pos)
		}
		meta, err := parseMetaBlock(rest[1:1+end], pos, limits.MaxMetaPairs, remainingMeta)
		if err != nil {
			return Variable{}, err
		}
		v.Meta = meta
		rest = rest[1+end+1:]
	}
	if len(rest) != 0 {
		return Variable{}, grammar.NewParseError(grammar.InvalidVariable, pos)
	}
	return v, nil
}

// parseVariableList parses the interior of a "[...]" variable block.
func parseVariableList(data []byte, pos int, limits Limits, remainingMeta *int) ([]Variable, error) {
	if len(data) == 0 {
		return nil, grammar.NewParseError(grammar.InvalidVariableBlock, pos)
	}
	toks := grammar.Split(data, ';', -1)
	if len(toks) > limits.MaxVariables {
		return nil, grammar.NewParseError(grammar.TooManyItems, pos)
	}
	vars := make([]Variable, 0, len(toks))
	off := pos
	for _, tok := range toks {
		v, err := parseVariable(tok, off, limits, remainingMeta)
		if err != nil {
			return nil, err
		}
		vars = append(vars, v)
		off += len(tok) + 1
	}
	return vars, nil
}

// parseVarnameList parses the interior of a Pull "[...]" block: varnames
// separated by unescaped ';', no operators or suffixes.
func parseVarnameList(data []byte, pos int, limits Limits) ([]string, error) {
	if len(data) == 0 {
		return nil, grammar.NewParseError(grammar.InvalidVariableBlock, pos)
	}
	toks := grammar.Split(data, ';', -1)
	if len(toks) > limits.MaxVariables {
		return nil, grammar.NewParseError(grammar.TooManyItems, pos)
	}
	names := make([]string, 0, len(toks))
	off := pos
	for _, tok := range toks {
		name := string(tok)
		if !isValidVarname(name) {
			return nil, grammar.NewParseError(grammar.InvalidVariable, off)
		}
		names = append(names, name)
		off += len(tok) + 1
	}
	return names, nil
}

// parseStructuredBody parses a Push body that is not a passthrough: the
// optional ordered "^group @ts {meta}" prefix followed by a mandatory
// "[variables]" block.
func parseStructuredBody(data []byte, pos int, limits Limits) (*StructuredBody, error) {
	rem := data
	off := pos
	sb := &StructuredBody{}
	remainingMeta := limits.MaxTotalMeta

	// The canonical build order is "^group @timestamp", but parse accepts
	// either ordering (spec.md §9 Open Question 1 / DESIGN.md OQ1): loop
	// at most twice, once per modifier, so "@timestamp^group" also lands
	// correctly instead of "^group" being swallowed into the timestamp text.
	for i := 0; i < 2; i++ {
		if len(rem) > 0 && rem[0] == '^' && !sb.HasGroup {
			seg, rest := scanUntilAny(rem[1:], '@', '{', '[')
			sb.Group = string(grammar.Unescape(seg))
			if !isValidGroup(sb.Group) {
				return nil, grammar.NewParseError(grammar.InvalidModifier, off)
			}
			sb.HasGroup = true
			off += len(rem) - len(rest)
			rem = rest
			continue
		}
		if len(rem) > 0 && rem[0] == '@' && !sb.HasTS {
			seg, rest := scanUntilAny(rem[1:], '^', '{', '[')
			sb.Timestamp = string(seg)
			if !isValidTimestamp(sb.Timestamp) {
				return nil, grammar.NewParseError(grammar.InvalidModifier, off)
			}
			sb.HasTS = true
			off += len(rem) - len(rest)
			rem = rest
			continue
		}
		break
	}
	if len(rem) > 0 && rem[0] == '{' {
		end := grammar.FindUnescaped(rem[1:], '}')
		if end < 0 {
			return nil, grammar.NewParseError(grammar.InvalidMetadata, off)
		}
		meta, err := parseMetaBlock(rem[1:1+end], off, limits.MaxMetaPairs, &remainingMeta)
		if err != nil {
			return nil, err
		}
		sb.Meta = meta
		off += 1 + end + 1
		rem = rem[1+end+1:]
	}
	if len(rem) == 0 || rem[0] != '[' || rem[len(rem)-1] != ']' {
		return nil, grammar.NewParseError(grammar.MissingBody, off)
	}
	vars, err := parseVariableList(rem[1:len(rem)-1], off+1, limits, &remainingMeta)
	if err != nil {
		return nil, err
	}
	sb.Variables = vars
	return sb, nil
}
