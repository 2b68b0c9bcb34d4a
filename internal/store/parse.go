package store

import (
	"context"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"unicode"

	"github.com/roach88/docrepo/internal/ir"
)

// StatementKind distinguishes parsed statements.
type StatementKind string

const (
	StatementSelect StatementKind = "SELECT"
	StatementDelete StatementKind = "DELETE"
)

// ParseSQL parses statement text into a Query. Placeholders (:name) are
// resolved from args; a slice argument of IN expands into its elements.
//
// Grammar:
//
//	SELECT <items> FROM <ns> [LEFT JOIN <target> AS <prop> ON <ns>.<f> (=|IN) <prop>.<f>]*
//	       [WHERE <expr>] [ORDER BY <sort>, ...] [LIMIT <n>] [OFFSET <n>]
//	DELETE FROM <ns> [WHERE <expr>]
//
//	items  := * [, COUNT(*)] | item, ...      item := field | DISTINCT(f) | FACET(f, ...) | COUNT(*)
//	target := <ns> | (SELECT * FROM <ns> [WHERE <expr>] [ORDER BY <sort>, ...])
//	expr   := expr OR expr | expr AND expr | NOT expr | (expr)
//	        | INNER JOIN <target> AS <prop> ON ...
//	        | <operand> (= | > | >= | < | <=) <value>
//	        | <operand> RANGE(<value>, <value>) | <operand> IN (<value>, ...) | <operand> IN <value>
//	        | <operand> LIKE <value> | <operand> IS [NOT] NULL
//	operand := field | FOLD(field)
//	sort   := field [ASC|DESC] | FIELD(field, <value>, ...) [ASC|DESC]
//	value  := :name | 'text' | number | true | false
func (s *Store) ParseSQL(text string, args map[string]any) (*Query, StatementKind, error) {
	toks, err := lex(text)
	if err != nil {
		return nil, "", err
	}
	p := &parser{s: s, toks: toks, args: args}
	q, kind, err := p.statement()
	if err != nil {
		return nil, "", fmt.Errorf("parse %q: %w", text, err)
	}
	return q, kind, nil
}

// ExecSQL parses and runs a SELECT statement.
func (s *Store) ExecSQL(ctx context.Context, text string, args map[string]any) (*Iterator, error) {
	q, kind, err := s.ParseSQL(text, args)
	if err != nil {
		return nil, err
	}
	if kind != StatementSelect {
		return nil, fmt.Errorf("ExecSQL: %s statement, use DeleteSQL", kind)
	}
	return q.Exec(ctx)
}

// DeleteSQL parses and runs a DELETE statement, returning the number of
// removed documents.
func (s *Store) DeleteSQL(ctx context.Context, text string, args map[string]any) (int64, error) {
	q, kind, err := s.ParseSQL(text, args)
	if err != nil {
		return 0, err
	}
	if kind != StatementDelete {
		return 0, fmt.Errorf("DeleteSQL: %s statement, use ExecSQL", kind)
	}
	return q.Delete(ctx)
}

type tokenKind uint8

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokString
	tokParam
	tokPunct
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '\'':
			start := i
			var b strings.Builder
			i++
			for {
				if i >= len(src) {
					return nil, fmt.Errorf("unterminated string at %d", start)
				}
				if src[i] == '\'' {
					if i+1 < len(src) && src[i+1] == '\'' {
						b.WriteByte('\'')
						i += 2
						continue
					}
					i++
					break
				}
				b.WriteByte(src[i])
				i++
			}
			toks = append(toks, token{kind: tokString, text: b.String(), pos: start})
		case c == ':':
			start := i
			i++
			for i < len(src) && isIdentByte(src[i]) && src[i] != '.' {
				i++
			}
			if i == start+1 {
				return nil, fmt.Errorf("empty placeholder at %d", start)
			}
			toks = append(toks, token{kind: tokParam, text: src[start+1 : i], pos: start})
		case c >= '0' && c <= '9' || c == '-' && i+1 < len(src) && src[i+1] >= '0' && src[i+1] <= '9':
			start := i
			i++
			for i < len(src) && (src[i] >= '0' && src[i] <= '9' || src[i] == '.') {
				i++
			}
			toks = append(toks, token{kind: tokNumber, text: src[start:i], pos: start})
		case isIdentByte(c):
			start := i
			for i < len(src) && isIdentByte(src[i]) {
				i++
			}
			toks = append(toks, token{kind: tokIdent, text: src[start:i], pos: start})
		case c == '>' || c == '<':
			if i+1 < len(src) && src[i+1] == '=' {
				toks = append(toks, token{kind: tokPunct, text: src[i : i+2], pos: i})
				i += 2
				continue
			}
			toks = append(toks, token{kind: tokPunct, text: string(c), pos: i})
			i++
		case strings.IndexByte("(),*=", c) >= 0:
			toks = append(toks, token{kind: tokPunct, text: string(c), pos: i})
			i++
		default:
			return nil, fmt.Errorf("unexpected character %q at %d", c, i)
		}
	}
	return append(toks, token{kind: tokEOF, pos: len(src)}), nil
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '.' || c < unicode.MaxASCII && (unicode.IsLetter(rune(c)) || unicode.IsDigit(rune(c)))
}

type parser struct {
	s    *Store
	toks []token
	pos  int
	args map[string]any
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) isKeyword(kw string) bool {
	t := p.peek()
	return t.kind == tokIdent && strings.EqualFold(t.text, kw)
}

func (p *parser) accept(kw string) bool {
	if p.isKeyword(kw) {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expect(kw string) error {
	if !p.accept(kw) {
		return p.errorf("expected %s", kw)
	}
	return nil
}

func (p *parser) isPunct(s string) bool {
	t := p.peek()
	return t.kind == tokPunct && t.text == s
}

func (p *parser) acceptPunct(s string) bool {
	if p.isPunct(s) {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expectPunct(s string) error {
	if !p.acceptPunct(s) {
		return p.errorf("expected %q", s)
	}
	return nil
}

func (p *parser) ident() (string, error) {
	t := p.peek()
	if t.kind != tokIdent {
		return "", p.errorf("expected identifier")
	}
	p.pos++
	return t.text, nil
}

func (p *parser) errorf(format string, args ...any) error {
	t := p.peek()
	found := t.text
	if t.kind == tokEOF {
		found = "end of statement"
	}
	return fmt.Errorf("%s at %d, found %q", fmt.Sprintf(format, args...), t.pos, found)
}

func (p *parser) statement() (*Query, StatementKind, error) {
	var (
		q    *Query
		kind StatementKind
		err  error
	)
	switch {
	case p.accept("SELECT"):
		kind = StatementSelect
		q, err = p.selectBody(false)
	case p.accept("DELETE"):
		kind = StatementDelete
		q, err = p.deleteBody()
	default:
		err = p.errorf("expected SELECT or DELETE")
	}
	if err != nil {
		return nil, "", err
	}
	if p.peek().kind != tokEOF {
		return nil, "", p.errorf("unexpected trailing input")
	}
	if q.err != nil {
		return nil, "", q.err
	}
	return q, kind, nil
}

func (p *parser) deleteBody() (*Query, error) {
	if err := p.expect("FROM"); err != nil {
		return nil, err
	}
	ns, err := p.ident()
	if err != nil {
		return nil, err
	}
	q := p.s.Query(ns)
	if p.accept("WHERE") {
		if err := p.orExpr(q); err != nil {
			return nil, err
		}
	}
	return q, nil
}

func (p *parser) selectBody(sub bool) (*Query, error) {
	var apply []func(*Query)
	for {
		switch {
		case p.acceptPunct("*"):
		case p.accept("COUNT"):
			if err := p.countStar(); err != nil {
				return nil, err
			}
			apply = append(apply, func(q *Query) { q.ReqTotal() })
		case p.accept("DISTINCT"):
			fields, err := p.fieldList()
			if err != nil {
				return nil, err
			}
			apply = append(apply, func(q *Query) {
				for _, f := range fields {
					q.AggregateDistinct(f)
				}
			})
		case p.accept("FACET"):
			fields, err := p.fieldList()
			if err != nil {
				return nil, err
			}
			apply = append(apply, func(q *Query) { q.AggregateFacet(fields...) })
		default:
			f, err := p.ident()
			if err != nil {
				return nil, err
			}
			apply = append(apply, func(q *Query) { q.Select(f) })
		}
		if !p.acceptPunct(",") {
			break
		}
	}
	if err := p.expect("FROM"); err != nil {
		return nil, err
	}
	ns, err := p.ident()
	if err != nil {
		return nil, err
	}
	q := p.s.Query(ns)
	for _, fn := range apply {
		fn(q)
	}
	if sub && len(apply) > 0 {
		return nil, p.errorf("joined sub-query must select *")
	}

	for !sub && p.isKeyword("LEFT") {
		p.next()
		if err := p.expect("JOIN"); err != nil {
			return nil, err
		}
		if err := p.join(q, q.LeftJoin); err != nil {
			return nil, err
		}
	}
	if p.accept("WHERE") {
		if err := p.orExpr(q); err != nil {
			return nil, err
		}
	}
	if p.accept("ORDER") {
		if err := p.expect("BY"); err != nil {
			return nil, err
		}
		if err := p.orderBy(q); err != nil {
			return nil, err
		}
	}
	if sub {
		return q, nil
	}
	if p.accept("LIMIT") {
		n, err := p.count()
		if err != nil {
			return nil, err
		}
		q.Limit(n)
	}
	if p.accept("OFFSET") {
		n, err := p.count()
		if err != nil {
			return nil, err
		}
		q.Offset(n)
	}
	return q, nil
}

func (p *parser) countStar() error {
	if err := p.expectPunct("("); err != nil {
		return err
	}
	if err := p.expectPunct("*"); err != nil {
		return err
	}
	return p.expectPunct(")")
}

func (p *parser) fieldList() ([]string, error) {
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	var fields []string
	for {
		f, err := p.ident()
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
		if !p.acceptPunct(",") {
			break
		}
	}
	return fields, p.expectPunct(")")
}

func (p *parser) count() (int, error) {
	t := p.peek()
	if t.kind != tokNumber {
		return 0, p.errorf("expected number")
	}
	p.pos++
	n, err := strconv.Atoi(t.text)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid count %q at %d", t.text, t.pos)
	}
	return n, nil
}

// join parses "<target> AS <prop> ON <ns>.<local> (=|IN) <prop>.<remote>".
func (p *parser) join(q *Query, start func(*Query, string) *Join) error {
	var sub *Query
	if p.acceptPunct("(") {
		if err := p.expect("SELECT"); err != nil {
			return err
		}
		var err error
		if sub, err = p.selectBody(true); err != nil {
			return err
		}
		if err := p.expectPunct(")"); err != nil {
			return err
		}
	} else {
		ns, err := p.ident()
		if err != nil {
			return err
		}
		sub = p.s.Query(ns)
	}
	if err := p.expect("AS"); err != nil {
		return err
	}
	prop, err := p.ident()
	if err != nil {
		return err
	}
	if err := p.expect("ON"); err != nil {
		return err
	}
	local, err := p.qualified(q.ns)
	if err != nil {
		return err
	}
	cond := ir.CondEq
	switch {
	case p.acceptPunct("="):
	case p.accept("IN"):
		cond = ir.CondSet
	default:
		return p.errorf("expected = or IN in join condition")
	}
	remote, err := p.qualified(prop)
	if err != nil {
		return err
	}
	start(sub, prop).On(local, cond, remote)
	return nil
}

// qualified parses "<qualifier>.<field>" and returns the field.
func (p *parser) qualified(qualifier string) (string, error) {
	t := p.peek()
	name, err := p.ident()
	if err != nil {
		return "", err
	}
	field, ok := strings.CutPrefix(name, qualifier+".")
	if !ok || field == "" {
		return "", fmt.Errorf("expected %s.<field> at %d, found %q", qualifier, t.pos, name)
	}
	return field, nil
}

func (p *parser) orderBy(q *Query) error {
	for {
		var (
			field  string
			forced []any
			err    error
		)
		if p.accept("FIELD") {
			if err := p.expectPunct("("); err != nil {
				return err
			}
			if field, err = p.ident(); err != nil {
				return err
			}
			for p.acceptPunct(",") {
				v, err := p.value()
				if err != nil {
					return err
				}
				forced = append(forced, v)
			}
			if err := p.expectPunct(")"); err != nil {
				return err
			}
		} else if field, err = p.ident(); err != nil {
			return err
		}
		desc := false
		if p.accept("DESC") {
			desc = true
		} else {
			p.accept("ASC")
		}
		q.Sort(field, desc, forced...)
		if !p.acceptPunct(",") {
			return nil
		}
	}
}

func (p *parser) orExpr(q *Query) error {
	if err := p.andExpr(q); err != nil {
		return err
	}
	for p.accept("OR") {
		q.Or()
		if err := p.andExpr(q); err != nil {
			return err
		}
	}
	return nil
}

func (p *parser) andExpr(q *Query) error {
	if err := p.unary(q); err != nil {
		return err
	}
	for p.accept("AND") {
		if err := p.unary(q); err != nil {
			return err
		}
	}
	return nil
}

func (p *parser) unary(q *Query) error {
	if p.accept("NOT") {
		q.Not()
		return p.unary(q)
	}
	return p.primary(q)
}

func (p *parser) primary(q *Query) error {
	if p.acceptPunct("(") {
		q.OpenBracket()
		if err := p.orExpr(q); err != nil {
			return err
		}
		if err := p.expectPunct(")"); err != nil {
			return err
		}
		q.CloseBracket()
		return nil
	}
	if p.accept("INNER") {
		if q.nextNot || q.nextOr {
			return p.errorf("inner join cannot be negated or ORed")
		}
		if err := p.expect("JOIN"); err != nil {
			return err
		}
		return p.join(q, q.InnerJoin)
	}
	return p.leaf(q)
}

func (p *parser) leaf(q *Query) error {
	fold := false
	var field string
	var err error
	if p.isKeyword("FOLD") && p.toks[p.pos+1].kind == tokPunct && p.toks[p.pos+1].text == "(" {
		p.pos += 2
		fold = true
		if field, err = p.ident(); err != nil {
			return err
		}
		if err := p.expectPunct(")"); err != nil {
			return err
		}
	} else if field, err = p.ident(); err != nil {
		return err
	}
	if fold {
		q.Fold()
	}

	switch {
	case p.accept("IS"):
		cond := ir.CondEmpty
		if p.accept("NOT") {
			cond = ir.CondAny
		}
		if err := p.expect("NULL"); err != nil {
			return err
		}
		q.Where(field, cond)
	case p.accept("RANGE"):
		if err := p.expectPunct("("); err != nil {
			return err
		}
		lo, err := p.value()
		if err != nil {
			return err
		}
		if err := p.expectPunct(","); err != nil {
			return err
		}
		hi, err := p.value()
		if err != nil {
			return err
		}
		if err := p.expectPunct(")"); err != nil {
			return err
		}
		q.Where(field, ir.CondRange, lo, hi)
	case p.accept("IN"):
		values, err := p.setValues()
		if err != nil {
			return err
		}
		q.Where(field, ir.CondSet, values...)
	case p.accept("LIKE"):
		v, err := p.value()
		if err != nil {
			return err
		}
		q.Where(field, ir.CondLike, v)
	default:
		t := p.peek()
		cond, ok := comparisonTokens[t.text]
		if t.kind != tokPunct || !ok {
			return p.errorf("expected operator after %s", field)
		}
		p.pos++
		v, err := p.value()
		if err != nil {
			return err
		}
		q.Where(field, cond, v)
	}
	return nil
}

var comparisonTokens = map[string]ir.Condition{
	"=":  ir.CondEq,
	">":  ir.CondGt,
	">=": ir.CondGe,
	"<":  ir.CondLt,
	"<=": ir.CondLe,
}

// setValues parses "(v, ...)" or a single value; a single slice argument
// expands into its elements.
func (p *parser) setValues() ([]any, error) {
	if p.acceptPunct("(") {
		var values []any
		if p.acceptPunct(")") {
			return values, nil
		}
		for {
			v, err := p.value()
			if err != nil {
				return nil, err
			}
			values = append(values, expand(v)...)
			if !p.acceptPunct(",") {
				break
			}
		}
		return values, p.expectPunct(")")
	}
	v, err := p.value()
	if err != nil {
		return nil, err
	}
	return expand(v), nil
}

func expand(v any) []any {
	if v == nil {
		return []any{nil}
	}
	if list, ok := v.([]any); ok {
		return list
	}
	rv := reflect.ValueOf(v)
	if (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array) && rv.Type().Elem().Kind() != reflect.Uint8 {
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out
	}
	return []any{v}
}

func (p *parser) value() (any, error) {
	t := p.peek()
	switch t.kind {
	case tokParam:
		p.pos++
		v, ok := p.args[t.text]
		if !ok {
			return nil, fmt.Errorf("no argument for :%s at %d", t.text, t.pos)
		}
		return v, nil
	case tokString:
		p.pos++
		return t.text, nil
	case tokNumber:
		p.pos++
		if n, err := strconv.ParseInt(t.text, 10, 64); err == nil {
			return n, nil
		}
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q at %d", t.text, t.pos)
		}
		return f, nil
	case tokIdent:
		switch strings.ToLower(t.text) {
		case "true":
			p.pos++
			return true, nil
		case "false":
			p.pos++
			return false, nil
		}
	}
	return nil, p.errorf("expected value")
}
