package strace

import (
	"strconv"

	"github.com/kylewlacy/systrument/internal/diag"
)

// ParseValue parses a single Value out of s, starting at offset base within
// the original line (used only to produce accurate diagnostic spans), and
// returns the value plus the number of bytes of s it consumed. The grammar
// is not LL(1); each alternative below is tried by peeking a distinctive
// prefix, mirroring the component's contract in the scanner/value-parser
// split: the scanner hands the analyzer an opaque span, and only this
// function descends into it.
func ParseValue(s string, base int) (Value, int, *diag.Diagnostic) {
	return parseValueFull(s, base)
}

// ParseValueComplete parses a Value and rejects a non-empty residual.
func ParseValueComplete(s string, base int) (Value, *diag.Diagnostic) {
	v, n, err := parseValueFull(s, base)
	if err != nil {
		return nil, err
	}
	if n != len(s) {
		return nil, diag.New(s, "unexpected trailing data after value", n, len(s))
	}
	return v, nil
}

func parseValueFull(s string, base int) (Value, int, *diag.Diagnostic) {
	primary, n, err := parsePrimary(s, base)
	if err != nil {
		return nil, 0, err
	}
	v := primary
	rest := s[n:]
	pos := n

	if len(rest) > 0 && rest[0] == '<' {
		ann, consumed, aerr := parseAnnotation(rest, base+pos)
		if aerr != nil {
			return nil, 0, aerr
		}
		ann.Inner = v
		v = ann
		pos += consumed
		rest = s[pos:]
	}

	var ops []BinaryOp
	for {
		op, opLen := peekBinaryOp(rest)
		if op == "" {
			break
		}
		operand, n2, operr := parsePrimary(rest[opLen:], base+pos+opLen)
		if operr != nil {
			return nil, 0, operr
		}
		operandRest := rest[opLen+n2:]
		if len(operandRest) > 0 && operandRest[0] == '<' {
			ann, consumed, aerr := parseAnnotation(operandRest, base+pos+opLen+n2)
			if aerr != nil {
				return nil, 0, aerr
			}
			ann.Inner = operand
			operand = ann
			n2 += consumed
		}
		ops = append(ops, BinaryOp{Op: op, Value: operand})
		pos += opLen + n2
		rest = s[pos:]
	}
	if len(ops) > 0 {
		v = BinaryOpsValue{First: v, Rest: ops}
	}

	if hasPrefix(rest, " or ") {
		rhs, n2, rerr := parseValueFull(rest[4:], base+pos+4)
		if rerr != nil {
			return nil, 0, rerr
		}
		v = AlternativeValue{Left: v, Right: rhs}
		pos += 4 + n2
		rest = s[pos:]
	}

	if hasPrefix(rest, " /* ") {
		end := indexFrom(rest, "*/", 4)
		if end < 0 {
			return nil, 0, diag.New(s, "unterminated comment", base+pos, base+len(s))
		}
		text := rest[4:end]
		// trim the single trailing space before "*/" the source emits: "text */"
		if len(text) > 0 && text[len(text)-1] == ' ' {
			text = text[:len(text)-1]
		}
		v = CommentedValue{Inner: v, Text: text}
		pos += end + 2
		rest = s[pos:]
	}

	if hasPrefix(rest, " => ") {
		to, n2, terr := parseValueFull(rest[4:], base+pos+4)
		if terr != nil {
			return nil, 0, terr
		}
		v = ChangedValue{From: v, To: to}
		pos += 4 + n2
	}

	return v, pos, nil
}

func peekBinaryOp(s string) (string, int) {
	for _, op := range []string{"&&", "||", "==", "!="} {
		prefix := " " + op + " "
		if hasPrefix(s, prefix) {
			return op, len(prefix)
		}
	}
	return "", 0
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

func indexFrom(s, sub string, from int) int {
	if from > len(s) {
		return -1
	}
	idx := indexOf(s[from:], sub)
	if idx < 0 {
		return -1
	}
	return from + idx
}

func indexOf(s, sub string) int {
	n, m := len(s), len(sub)
	if m == 0 {
		return 0
	}
	for i := 0; i+m <= n; i++ {
		if s[i:i+m] == sub {
			return i
		}
	}
	return -1
}

// parsePrimary tries, in order: the bare truncation marker, a quoted string,
// a sparse/flat bracket array, a struct, a not-bitset, a function call, and
// finally a basic expression.
func parsePrimary(s string, base int) (Value, int, *diag.Diagnostic) {
	if len(s) == 0 {
		return nil, 0, diag.At("", "unexpected end of value", base)
	}

	if hasPrefix(s, "...") && (len(s) == 3 || !isBasicExpressionChar(rune(s[3]))) {
		return TruncatedValue{}, 3, nil
	}

	switch s[0] {
	case '"':
		return parseString(s, base)
	case '[':
		return parseBracket(s, base)
	case '{':
		return parseStruct(s, base)
	}
	if hasPrefix(s, "~[") {
		return parseNotBitset(s, base)
	}
	if isIdentStart(rune(s[0])) {
		if ident, n := scanIdent(s); n < len(s) && s[n] == '(' {
			return parseFunctionCall(s, base, ident, n)
		}
	}
	if isBasicExpressionChar(rune(s[0])) {
		n := 0
		for n < len(s) && isBasicExpressionChar(rune(s[n])) {
			n++
		}
		return ExpressionValue{Text: s[:n]}, n, nil
	}

	return nil, 0, diag.At(s, "unrecognized expression", base)
}

func isIdentStart(c rune) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentCont(c rune) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func scanIdent(s string) (string, int) {
	if len(s) == 0 || !isIdentStart(rune(s[0])) {
		return "", 0
	}
	n := 1
	for n < len(s) && isIdentCont(rune(s[n])) {
		n++
	}
	return s[:n], n
}

func isBasicExpressionChar(c rune) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	switch c {
	case '_', '+', '-', '*', '.', '/', '^', '&', '|':
		return true
	}
	return false
}

func parseString(s string, base int) (Value, int, *diag.Diagnostic) {
	i := 1
	var out []byte
	for {
		if i >= len(s) {
			return nil, 0, diag.New(s, "unterminated string", base, base+len(s))
		}
		c := s[i]
		if c == '"' {
			i++
			break
		}
		if c != '\\' {
			out = append(out, c)
			i++
			continue
		}
		// escape
		i++
		if i >= len(s) {
			return nil, 0, diag.At(s, "unexpected end of string escape", base+i)
		}
		switch s[i] {
		case '\\':
			out = append(out, '\\')
			i++
		case 'a':
			out = append(out, 0x07)
			i++
		case 'b':
			out = append(out, 0x08)
			i++
		case 'e':
			out = append(out, 0x1B)
			i++
		case 'f':
			out = append(out, 0x0C)
			i++
		case 'n':
			out = append(out, '\n')
			i++
		case 'r':
			out = append(out, '\r')
			i++
		case 't':
			out = append(out, '\t')
			i++
		case 'v':
			out = append(out, 0x0B)
			i++
		case '\'':
			out = append(out, '\'')
			i++
		case '"':
			out = append(out, '"')
			i++
		case '?':
			out = append(out, '?')
			i++
		case 'x':
			if i+2 >= len(s) {
				return nil, 0, diag.At(s, "unexpected end of hex escape", base+i)
			}
			b, err := strconv.ParseUint(s[i+1:i+3], 16, 8)
			if err != nil {
				return nil, 0, diag.New(s, "invalid hex escape in string", base+i, base+i+3)
			}
			out = append(out, byte(b))
			i += 3
		case '0', '1', '2', '3', '4', '5', '6', '7':
			n := 0
			for n < 3 && i+n < len(s) && s[i+n] >= '0' && s[i+n] <= '7' {
				n++
			}
			b, err := strconv.ParseUint(s[i:i+n], 8, 8)
			if err != nil {
				return nil, 0, diag.New(s, "invalid octal escape in string", base+i, base+i+n)
			}
			out = append(out, byte(b))
			i += n
		default:
			return nil, 0, diag.At(s, "invalid string escape", base+i)
		}
	}
	if hasPrefix(s[i:], "...") {
		return TruncatedStringValue{Bytes: out}, i + 3, nil
	}
	return StringValue{Bytes: out}, i, nil
}

func parseFunctionCall(s string, base int, ident string, afterIdent int) (Value, int, *diag.Diagnostic) {
	pos := afterIdent + 1 // skip '('
	var fields []Field
	needsComma := false
	for {
		if pos >= len(s) {
			return nil, 0, diag.At(s, "unexpected end of function argument list", base+pos)
		}
		if s[pos] == ')' {
			return FunctionCallValue{Name: ident, Args: fields}, pos + 1, nil
		}
		if needsComma {
			if !hasPrefix(s[pos:], ", ") {
				return nil, 0, diag.At(s, "expected ', ' or ')' after function argument", base+pos)
			}
			pos += 2
		}
		field, n, err := parseField(s[pos:], base+pos)
		if err != nil {
			return nil, 0, err
		}
		fields = append(fields, field)
		pos += n
		needsComma = true
	}
}

func parseField(s string, base int) (Field, int, *diag.Diagnostic) {
	if hasPrefix(s, "...") && (len(s) == 3 || s[3] == ')' || s[3] == ',' || s[3] == ']' || s[3] == '}') {
		return Field{Value: TruncatedValue{}}, 3, nil
	}
	if name, rest, ok := peekNamedField(s); ok {
		v, n, err := parseValueFull(rest, base+len(s)-len(rest))
		if err != nil {
			return Field{}, 0, err
		}
		n2 := name
		return Field{Name: &n2, Value: v}, (len(s) - len(rest)) + n, nil
	}
	v, n, err := parseValueFull(s, base)
	if err != nil {
		return Field{}, 0, err
	}
	return Field{Value: v}, n, nil
}

// peekNamedField recognizes "ident=rest" (optional surrounding spaces around
// the "="), where splitting at the first "=" in s yields a name that's
// purely [A-Za-z_][A-Za-z0-9_]*. Fields without a name use the same split
// point for their value, so a "=" inside an unnamed field's own value (a
// later named sibling's "=") never gets mistaken for this field's: the text
// before it fails the identifier check and parseField falls back to parsing
// the whole field as an unnamed value.
func peekNamedField(s string) (string, string, bool) {
	eqIdx := indexByte(s, '=')
	if eqIdx < 0 {
		return "", "", false
	}
	name := s[:eqIdx]
	for len(name) > 0 && name[len(name)-1] == ' ' {
		name = name[:len(name)-1]
	}
	if !isValidIdent(name) {
		return "", "", false
	}
	rest := s[eqIdx+1:]
	for len(rest) > 0 && rest[0] == ' ' {
		rest = rest[1:]
	}
	if rest == "" {
		return "", "", false
	}
	return name, rest, true
}

func isValidIdent(s string) bool {
	if s == "" || !isIdentStart(rune(s[0])) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isIdentCont(rune(s[i])) {
			return false
		}
	}
	return true
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}

func parseBracket(s string, base int) (Value, int, *diag.Diagnostic) {
	// Try the sparse-array form first: "[" value "]" " = " value.
	if entry, n, ok := tryParseSparseEntry(s, base); ok {
		entries := []SparseEntry{entry}
		pos := n
		for {
			if pos >= len(s) {
				return nil, 0, diag.At(s, "unexpected end of array", base+pos)
			}
			if s[pos] == ']' {
				return SparseArrayValue{Entries: entries}, pos + 1, nil
			}
			if !hasPrefix(s[pos:], ", ") {
				return nil, 0, diag.At(s, "expected ', ' or ']' after sparse array element", base+pos)
			}
			pos += 2
			nextEntry, n2, ok2 := tryParseSparseEntry(s[pos:], base+pos)
			if !ok2 {
				return nil, 0, diag.At(s, "expected sparse array element", base+pos)
			}
			entries = append(entries, nextEntry)
			pos += n2
		}
	}

	pos := 1 // skip '['
	var elements []Value
	separator := byte(0) // 0 = undecided, ',' = comma mode, ' ' = space mode
	isFirst := true
	for {
		if pos >= len(s) {
			return nil, 0, diag.At(s, "unexpected end of array", base+pos)
		}
		if s[pos] == ']' {
			return ArrayValue{Elements: elements}, pos + 1, nil
		}
		if !isFirst {
			switch separator {
			case ',':
				if !hasPrefix(s[pos:], ", ") {
					return nil, 0, diag.At(s, "expected ', ' or ']' after array item", base+pos)
				}
				pos += 2
			case ' ':
				if !hasPrefix(s[pos:], " ") {
					return nil, 0, diag.At(s, "expected ' ' after bitset element", base+pos)
				}
				pos += 1
			default:
				if hasPrefix(s[pos:], ", ") {
					separator = ','
					pos += 2
				} else if hasPrefix(s[pos:], " ") {
					separator = ' '
					pos += 1
				} else {
					return nil, 0, diag.At(s, "expected ' ' or ', ' or ']' after first array item", base+pos)
				}
			}
		}
		isFirst = false
		v, n, err := parseValueFull(s[pos:], base+pos)
		if err != nil {
			return nil, 0, err
		}
		elements = append(elements, v)
		pos += n
	}
}

func tryParseSparseEntry(s string, base int) (SparseEntry, int, bool) {
	if !hasPrefix(s, "[") {
		return SparseEntry{}, 0, false
	}
	key, n, err := parseValueFull(s[1:], base+1)
	if err != nil {
		return SparseEntry{}, 0, false
	}
	pos := 1 + n
	if !hasPrefix(s[pos:], "] = ") {
		return SparseEntry{}, 0, false
	}
	pos += 4
	val, n2, err := parseValueFull(s[pos:], base+pos)
	if err != nil {
		return SparseEntry{}, 0, false
	}
	pos += n2
	return SparseEntry{Key: key, Value: val}, pos, true
}

func parseNotBitset(s string, base int) (Value, int, *diag.Diagnostic) {
	pos := 2 // skip '~['
	var elements []Value
	isFirst := true
	for {
		if pos >= len(s) {
			return nil, 0, diag.At(s, "unexpected end of bitset", base+pos)
		}
		if s[pos] == ']' {
			return NotBitsetValue{Elements: elements}, pos + 1, nil
		}
		if !isFirst {
			if !hasPrefix(s[pos:], " ") {
				return nil, 0, diag.At(s, "expected ' ' or ']' after bitset element", base+pos)
			}
			pos++
		}
		isFirst = false
		v, n, err := parseValueFull(s[pos:], base+pos)
		if err != nil {
			return nil, 0, err
		}
		elements = append(elements, v)
		pos += n
	}
}

func parseStruct(s string, base int) (Value, int, *diag.Diagnostic) {
	pos := 1 // skip '{'
	var fields []Field
	isFirst := true
	for {
		for pos < len(s) && (s[pos] == ' ' || s[pos] == '\t') {
			pos++
		}
		if pos >= len(s) {
			return nil, 0, diag.At(s, "unexpected end of struct", base+pos)
		}
		if s[pos] == '}' {
			return StructValue{Fields: fields}, pos + 1, nil
		}
		if !isFirst {
			if s[pos] != ',' {
				return nil, 0, diag.At(s, "expected ',' or '}' after struct field", base+pos)
			}
			pos++
			for pos < len(s) && s[pos] == ' ' {
				pos++
			}
			if hasPrefix(s[pos:], "...") {
				fields = append(fields, Field{Value: TruncatedValue{}})
				pos += 3
				continue
			}
		}
		isFirst = false
		field, n, err := parseField(s[pos:], base+pos)
		if err != nil {
			return nil, 0, err
		}
		fields = append(fields, field)
		pos += n
	}
}

// parseAnnotation parses a "<...>" trailer (with nested "<>" and literal
// "->" content) and an optional trailing "(deleted)", starting at the '<'.
func parseAnnotation(s string, base int) (AnnotatedValue, int, *diag.Diagnostic) {
	if len(s) == 0 || s[0] != '<' {
		return AnnotatedValue{}, 0, diag.At(s, "expected annotation", base)
	}
	depth := 1
	i := 1
	for depth > 0 {
		if i >= len(s) {
			return AnnotatedValue{}, 0, diag.New(s, "unterminated annotation", base, base+len(s))
		}
		if hasPrefix(s[i:], "->") {
			i += 2
			continue
		}
		switch s[i] {
		case '<':
			depth++
		case '>':
			depth--
		}
		i++
	}
	content := s[1 : i-1]
	pos := i
	deleted := false
	if hasPrefix(s[pos:], "(deleted)") {
		deleted = true
		pos += len("(deleted)")
	}
	return AnnotatedValue{Annotation: []byte(content), Deleted: deleted}, pos, nil
}
