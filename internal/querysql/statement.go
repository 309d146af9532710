package querysql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/sooq/internal/dialect"
	"github.com/roach88/sooq/internal/ir"
)

// SegmentKind distinguishes the parts of a Statement.
type SegmentKind int

const (
	// TextSegment is SQL text emitted verbatim.
	TextSegment SegmentKind = iota
	// LiteralSegment is a constant too unsafe to inline; it is bound as a
	// parameter at command-build time.
	LiteralSegment
	// ParamSegment is a positional slot filled by the caller on each run.
	ParamSegment
)

// Segment is one piece of a Statement.
type Segment struct {
	Kind    SegmentKind
	Text    string   // TextSegment
	Value   ir.Value // LiteralSegment
	Ordinal int      // ParamSegment
	Type    ir.Kind  // type tag of a literal or parameter slot
}

// Statement is SQL text with typed literal and parameter slots.
//
// A statement is produced once by Convert and may be cached; each execution
// calls Bind with fresh parameter values.
type Statement struct {
	Segments []Segment
}

// NumParams returns one past the highest parameter ordinal.
func (s *Statement) NumParams() int {
	n := 0
	for _, seg := range s.Segments {
		if seg.Kind == ParamSegment && seg.Ordinal+1 > n {
			n = seg.Ordinal + 1
		}
	}
	return n
}

// String renders the statement in the placeholder wire format:
//
//	{L:<type>:<escaped>}   a literal slot
//	{<ordinal>:<type>}     a parameter slot ({<ordinal>} when untyped)
//
// Braces in SQL text are doubled; backslash and } are escaped with a
// backslash inside literal values.
func (s *Statement) String() string {
	var b strings.Builder
	for _, seg := range s.Segments {
		switch seg.Kind {
		case TextSegment:
			b.WriteString(strings.NewReplacer("{", "{{", "}", "}}").Replace(seg.Text))
		case LiteralSegment:
			b.WriteString("{L:")
			b.WriteString(seg.Value.Kind().String())
			b.WriteByte(':')
			b.WriteString(strings.NewReplacer(`\`, `\\`, "}", `\}`).Replace(ir.FormatValue(seg.Value)))
			b.WriteByte('}')
		case ParamSegment:
			b.WriteByte('{')
			b.WriteString(strconv.Itoa(seg.Ordinal))
			if seg.Type != ir.KindUnknown {
				b.WriteByte(':')
				b.WriteString(seg.Type.String())
			}
			b.WriteByte('}')
		}
	}
	return b.String()
}

// ParseStatement parses the wire format produced by Statement.String.
func ParseStatement(src string) (*Statement, error) {
	var sb sqlBuf
	var text strings.Builder
	flush := func() {
		if text.Len() > 0 {
			sb.text(text.String())
			text.Reset()
		}
	}

	for i := 0; i < len(src); i++ {
		ch := src[i]
		switch {
		case ch == '{' && i+1 < len(src) && src[i+1] == '{':
			text.WriteByte('{')
			i++
		case ch == '}' && i+1 < len(src) && src[i+1] == '}':
			text.WriteByte('}')
			i++
		case ch == '}':
			return nil, fmt.Errorf("unbalanced } at offset %d", i)
		case ch == '{':
			body, end, err := scanToken(src, i+1)
			if err != nil {
				return nil, err
			}
			seg, err := parseToken(body)
			if err != nil {
				return nil, fmt.Errorf("token at offset %d: %w", i, err)
			}
			flush()
			sb.segs = append(sb.segs, seg)
			i = end
		default:
			text.WriteByte(ch)
		}
	}
	flush()
	return &Statement{Segments: sb.segs}, nil
}

// scanToken reads an escaped token body starting at i and returns it
// unescaped along with the offset of the closing brace.
func scanToken(src string, i int) (string, int, error) {
	var b strings.Builder
	for ; i < len(src); i++ {
		switch src[i] {
		case '\\':
			if i+1 >= len(src) {
				return "", 0, fmt.Errorf("dangling escape at offset %d", i)
			}
			i++
			b.WriteByte(src[i])
		case '}':
			return b.String(), i, nil
		default:
			b.WriteByte(src[i])
		}
	}
	return "", 0, fmt.Errorf("unterminated token")
}

func parseToken(body string) (Segment, error) {
	if rest, ok := strings.CutPrefix(body, "L:"); ok {
		tag, raw, ok := strings.Cut(rest, ":")
		if !ok {
			return Segment{}, fmt.Errorf("literal %q has no type tag", body)
		}
		kind, err := ir.ParseKind(tag)
		if err != nil {
			return Segment{}, err
		}
		v, err := ir.ParseValue(kind, raw)
		if err != nil {
			return Segment{}, fmt.Errorf("literal %q: %w", body, err)
		}
		return Segment{Kind: LiteralSegment, Value: v, Type: kind}, nil
	}

	ord, tag, _ := strings.Cut(body, ":")
	n, err := strconv.Atoi(ord)
	if err != nil || n < 0 {
		return Segment{}, fmt.Errorf("bad parameter ordinal %q", ord)
	}
	kind, err := ir.ParseKind(tag)
	if err != nil {
		return Segment{}, err
	}
	return Segment{Kind: ParamSegment, Ordinal: n, Type: kind}, nil
}

// Fingerprint identifies the statement by its wire format. Statements
// that differ only in parameter values share a fingerprint.
func (s *Statement) Fingerprint() string {
	return ir.Fingerprint(ir.DomainStatement, []byte(s.String()))
}

// Bind builds the executable command: SQL text in the dialect's placeholder
// syntax and the ordered argument list. Literal slots bind their own value;
// parameter slots take params[ordinal], converted to the slot's type.
func (s *Statement) Bind(d *dialect.Dialect, params ...any) (string, []any, error) {
	var b strings.Builder
	var args []any
	for _, seg := range s.Segments {
		switch seg.Kind {
		case TextSegment:
			b.WriteString(seg.Text)
		case LiteralSegment:
			b.WriteByte('?')
			args = append(args, seg.Value.Go())
		case ParamSegment:
			if seg.Ordinal >= len(params) {
				return "", nil, fmt.Errorf("parameter {%d} not supplied (%d given)", seg.Ordinal, len(params))
			}
			v, err := ir.FromGo(params[seg.Ordinal])
			if err != nil {
				return "", nil, fmt.Errorf("parameter {%d}: %w", seg.Ordinal, err)
			}
			arg := v.Go()
			if seg.Type != ir.KindUnknown && arg != nil && v.Kind() != seg.Type {
				if arg, err = ir.Convert(seg.Type, arg); err != nil {
					return "", nil, fmt.Errorf("parameter {%d}: %w", seg.Ordinal, err)
				}
			}
			b.WriteByte('?')
			args = append(args, arg)
		}
	}
	sql, err := d.Rebind(b.String())
	if err != nil {
		return "", nil, fmt.Errorf("rebind placeholders: %w", err)
	}
	return sql, args, nil
}

// sqlBuf accumulates segments, merging adjacent text.
type sqlBuf struct {
	segs []Segment
}

func (b *sqlBuf) text(s string) {
	if s == "" {
		return
	}
	if n := len(b.segs); n > 0 && b.segs[n-1].Kind == TextSegment {
		b.segs[n-1].Text += s
		return
	}
	b.segs = append(b.segs, Segment{Kind: TextSegment, Text: s})
}

func (b *sqlBuf) literal(v ir.Value) {
	b.segs = append(b.segs, Segment{Kind: LiteralSegment, Value: v, Type: v.Kind()})
}

func (b *sqlBuf) param(ordinal int, k ir.Kind) {
	b.segs = append(b.segs, Segment{Kind: ParamSegment, Ordinal: ordinal, Type: k})
}

func (b *sqlBuf) append(o *sqlBuf) {
	if o == nil {
		return
	}
	for _, s := range o.segs {
		if s.Kind == TextSegment {
			b.text(s.Text)
			continue
		}
		b.segs = append(b.segs, s)
	}
}

// join appends parts separated by sep.
func (b *sqlBuf) join(parts []*sqlBuf, sep string) {
	for i, p := range parts {
		if i > 0 {
			b.text(sep)
		}
		b.append(p)
	}
}

// argMark is the sentinel used to splice rendered arguments into dialect
// templates that only operate on strings.
const argMark = "\x00"

func argSentinels(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = argMark + strconv.Itoa(i) + argMark
	}
	return out
}

// splice expands a template produced over argSentinels into b.
func (b *sqlBuf) splice(template string, args []*sqlBuf) {
	for {
		start := strings.Index(template, argMark)
		if start < 0 {
			b.text(template)
			return
		}
		end := strings.Index(template[start+1:], argMark)
		if end < 0 {
			b.text(template)
			return
		}
		end += start + 1
		b.text(template[:start])
		if n, err := strconv.Atoi(template[start+1 : end]); err == nil && n < len(args) {
			b.append(args[n])
		}
		template = template[end+1:]
	}
}
