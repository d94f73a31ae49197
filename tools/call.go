package tools

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// ErrNotACall reports code that is not of the form `name.call(...)`.
var ErrNotACall = errors.New("tools: not a tool call")

// Call is a parsed built-in tool invocation.
type Call struct {
	Tool string
	Args map[string]any
}

// ParseCall parses `name.call(k="v", n=3, flag=True)`. Only keyword arguments
// with literal values are accepted.
func ParseCall(code string) (Call, error) {
	s := strings.TrimSpace(code)
	i := strings.Index(s, ".call(")
	if i <= 0 || !isIdent(s[:i]) || !strings.HasSuffix(s, ")") {
		return Call{}, ErrNotACall
	}
	p := &argParser{src: s[i+len(".call(") : len(s)-1]}
	args, err := p.parse()
	if err != nil {
		return Call{Tool: s[:i]}, fmt.Errorf("tools: %s: %w", s[:i], err)
	}
	return Call{Tool: s[:i], Args: args}, nil
}

func isIdent(s string) bool {
	for i, r := range s {
		if r == '_' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r)) {
			continue
		}
		return false
	}
	return s != ""
}

type argParser struct {
	src string
	pos int
}

func (p *argParser) parse() (map[string]any, error) {
	args := map[string]any{}
	for {
		p.skipSpace()
		if p.eof() {
			return args, nil
		}
		key := p.ident()
		if key == "" {
			return nil, fmt.Errorf("expected keyword argument at offset %d", p.pos)
		}
		p.skipSpace()
		if !p.consume('=') {
			return nil, fmt.Errorf("expected '=' after %s", key)
		}
		p.skipSpace()
		v, err := p.value()
		if err != nil {
			return nil, fmt.Errorf("argument %s: %w", key, err)
		}
		if _, dup := args[key]; dup {
			return nil, fmt.Errorf("duplicate argument %s", key)
		}
		args[key] = v
		p.skipSpace()
		if p.eof() {
			return args, nil
		}
		if !p.consume(',') {
			return nil, fmt.Errorf("expected ',' at offset %d", p.pos)
		}
	}
}

func (p *argParser) eof() bool { return p.pos >= len(p.src) }

func (p *argParser) skipSpace() {
	for !p.eof() && unicode.IsSpace(rune(p.src[p.pos])) {
		p.pos++
	}
}

func (p *argParser) consume(b byte) bool {
	if !p.eof() && p.src[p.pos] == b {
		p.pos++
		return true
	}
	return false
}

func (p *argParser) ident() string {
	start := p.pos
	for !p.eof() {
		c := p.src[p.pos]
		if c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || (p.pos > start && c >= '0' && c <= '9') {
			p.pos++
			continue
		}
		break
	}
	return p.src[start:p.pos]
}

func (p *argParser) value() (any, error) {
	if p.eof() {
		return nil, errors.New("missing value")
	}
	if q := p.src[p.pos]; q == '"' || q == '\'' {
		return p.quoted(q)
	}
	start := p.pos
	for !p.eof() && p.src[p.pos] != ',' && !unicode.IsSpace(rune(p.src[p.pos])) {
		p.pos++
	}
	tok := p.src[start:p.pos]
	switch tok {
	case "True":
		return true, nil
	case "False":
		return false, nil
	case "None":
		return nil, nil
	}
	if n, err := strconv.ParseInt(tok, 10, 64); err == nil {
		return n, nil
	}
	if f, err := strconv.ParseFloat(tok, 64); err == nil {
		return f, nil
	}
	return nil, fmt.Errorf("unsupported literal %q", tok)
}

func (p *argParser) quoted(q byte) (string, error) {
	p.pos++ // opening quote
	var b strings.Builder
	for !p.eof() {
		c := p.src[p.pos]
		p.pos++
		switch {
		case c == q:
			return b.String(), nil
		case c == '\\' && !p.eof():
			e := p.src[p.pos]
			p.pos++
			switch e {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case '\\', '\'', '"':
				b.WriteByte(e)
			default:
				b.WriteByte('\\')
				b.WriteByte(e)
			}
		default:
			b.WriteByte(c)
		}
	}
	return "", errors.New("unterminated string")
}
