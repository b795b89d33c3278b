package sqlast

import (
	"fmt"
	"strings"

	pc "github.com/shibukawa/parsercombinator"

	"github.com/queryscript/qs"
	"github.com/queryscript/qs/internal/sqlast/sqltoken"
)

// Parse lexes and parses a full SQL query. Clause-introducing keyword
// sequences (ORDER BY, GROUP BY, PARTITION BY, the ASC/DESC sort
// modifier, a window frame's BETWEEN) are recognized with
// github.com/shibukawa/parsercombinator's pc.SeqWithLabel/pc.Or/
// pc.Optional composed over primitiveType/keywordToken base matchers,
// the same division of labor as the teacher's groupByClause/
// orderByClause/withClause (parser/parserstep2/simpleparser.go).
// Everything inside a clause - the expression list itself, precedence
// climbing - is a cursor-based recursive descent, the way parserstep4
// hands expression parsing off to a specialized pass rather than
// encoding every precedence level as nested combinators.
func Parse(src string) (*Query, error) {
	toks, err := sqltoken.New(src).Tokenize()
	if err != nil {
		return nil, err
	}

	p := &parser{toks: filterTrivia(toks)}

	q, err := p.parseQuery()
	if err != nil {
		return nil, err
	}

	if !p.at(sqltoken.EOF) {
		return nil, fmt.Errorf("%w: unexpected token %q at %d:%d", qs.ErrSyntax, p.cur().Value, p.cur().Position.Line, p.cur().Position.Column)
	}

	return q, nil
}

func filterTrivia(toks []sqltoken.Token) []sqltoken.Token {
	out := make([]sqltoken.Token, 0, len(toks))

	for _, t := range toks {
		switch t.Type {
		case sqltoken.WHITESPACE, sqltoken.LINE_COMMENT, sqltoken.BLOCK_COMMENT:
			continue
		default:
			out = append(out, t)
		}
	}

	return out
}

// parser is a cursor over an already-filtered token slice. tryClause
// and tryKeywordModifier run a composed pc.Parser against the tokens
// still ahead of the cursor and advance past what it consumes,
// matching the teacher's pattern of building clause recognizers (e.g.
// groupByClause, orderByClause) out of pc.SeqWithLabel/pc.Or/
// pc.Optional over primitive token matchers.
type parser struct {
	toks []sqltoken.Token
	pos  int
}

func (p *parser) cur() sqltoken.Token {
	if p.pos >= len(p.toks) {
		return sqltoken.Token{Type: sqltoken.EOF}
	}

	return p.toks[p.pos]
}

func (p *parser) at(t sqltoken.TokenType) bool { return p.cur().Type == t }

func (p *parser) advance() sqltoken.Token {
	t := p.cur()
	if p.pos < len(p.toks) {
		p.pos++
	}

	return t
}

func (p *parser) expect(t sqltoken.TokenType, what string) (sqltoken.Token, error) {
	if !p.at(t) {
		return sqltoken.Token{}, fmt.Errorf("%w: expected %s at %d:%d, got %q", qs.ErrSyntax, what, p.cur().Position.Line, p.cur().Position.Column, p.cur().Value)
	}

	return p.advance(), nil
}

// pcTokens wraps the cursor's remaining tokens for a parsercombinator
// call, the way parserstep2/execute.go's tokenToEntity feeds a real
// token stream to a composed pc.Parser.
func (p *parser) pcTokens() []pc.Token[sqltoken.Token] {
	rest := p.toks[p.pos:]
	out := make([]pc.Token[sqltoken.Token], len(rest))

	for i, t := range rest {
		out[i] = pc.Token[sqltoken.Token]{
			Type: "sql",
			Pos:  &pc.Pos{Line: t.Position.Line, Col: t.Position.Column, Index: t.Position.Offset},
			Val:  t,
			Raw:  t.Value,
		}
	}

	return out
}

// tryClause runs a composed clause-introducing parser (e.g.
// orderByIntro) against the remaining tokens and advances the cursor
// past it on a match, the way execute.go drives a composed pc.Parser
// with a real *pc.ParseContext rather than invoking it bare.
func (p *parser) tryClause(cp pc.Parser[sqltoken.Token]) bool {
	n, _, err := cp(pc.NewParseContext[sqltoken.Token](), p.pcTokens())
	if err != nil || n == 0 {
		return false
	}

	p.pos += n

	return true
}

// tryKeywordModifier runs an Optional(Or(...)) keyword alternative
// (e.g. ascOrDesc) and reports the matched token, if any.
func (p *parser) tryKeywordModifier(cp pc.Parser[sqltoken.Token]) (sqltoken.Token, bool) {
	n, consumed, err := cp(pc.NewParseContext[sqltoken.Token](), p.pcTokens())
	if err != nil || n == 0 {
		return sqltoken.Token{}, false
	}

	p.pos += n

	return consumed[0].Val, true
}

func (p *parser) parseQuery() (*Query, error) {
	sel, err := p.parseSelectStatement()
	if err != nil {
		return nil, err
	}

	q := &Query{Select: sel}

	if p.at(sqltoken.ORDER) {
		if !p.tryClause(orderByIntro) {
			return nil, fmt.Errorf("%w: expected BY after ORDER at %d:%d", qs.ErrSyntax, p.cur().Position.Line, p.cur().Position.Column)
		}

		items, err := p.parseOrderByList()
		if err != nil {
			return nil, err
		}

		q.OrderBy = items
	}

	if p.at(sqltoken.LIMIT) {
		p.advance()

		e, err := p.parseExpr(precLowest)
		if err != nil {
			return nil, err
		}

		q.Limit = e
	}

	if p.at(sqltoken.OFFSET) {
		p.advance()

		e, err := p.parseExpr(precLowest)
		if err != nil {
			return nil, err
		}

		q.Offset = e
	}

	return q, nil
}

func (p *parser) parseSelectStatement() (*SelectStatement, error) {
	if _, err := p.expect(sqltoken.SELECT, "SELECT"); err != nil {
		return nil, err
	}

	stmt := &SelectStatement{}

	if p.at(sqltoken.DISTINCT) {
		p.advance()

		stmt.Distinct = true
	}

	proj, err := p.parseSelectItemList()
	if err != nil {
		return nil, err
	}

	stmt.Projection = proj

	if p.at(sqltoken.FROM) {
		p.advance()

		from, err := p.parseFromList()
		if err != nil {
			return nil, err
		}

		stmt.From = from
	}

	if p.at(sqltoken.WHERE) {
		p.advance()

		e, err := p.parseExpr(precLowest)
		if err != nil {
			return nil, err
		}

		stmt.Where = *e
	}

	if p.at(sqltoken.GROUP) {
		if !p.tryClause(groupByIntro) {
			return nil, fmt.Errorf("%w: expected BY after GROUP at %d:%d", qs.ErrSyntax, p.cur().Position.Line, p.cur().Position.Column)
		}

		exprs, err := p.parseExprList()
		if err != nil {
			return nil, err
		}

		stmt.GroupBy = exprs
	}

	return stmt, nil
}

func (p *parser) parseSelectItemList() ([]SelectItem, error) {
	var items []SelectItem

	for {
		item, err := p.parseSelectItem()
		if err != nil {
			return nil, err
		}

		items = append(items, item)

		if p.at(sqltoken.COMMA) {
			p.advance()
			continue
		}

		break
	}

	return items, nil
}

func (p *parser) parseSelectItem() (SelectItem, error) {
	if p.at(sqltoken.MULTIPLY) {
		p.advance()
		return SelectItem{Kind: Wildcard}, nil
	}

	if p.at(sqltoken.IDENTIFIER) && p.peekIs(1, sqltoken.DOT) && p.peekIs(2, sqltoken.MULTIPLY) {
		qualifier := ObjectName{{Name: p.advance().Value}}
		p.advance() // dot
		p.advance() // star

		return SelectItem{Kind: QualifiedWildcard, Qualify: qualifier}, nil
	}

	e, err := p.parseExpr(precLowest)
	if err != nil {
		return SelectItem{}, err
	}

	if p.at(sqltoken.AS) {
		p.advance()

		alias, err := p.expect(sqltoken.IDENTIFIER, "alias")
		if err != nil {
			return SelectItem{}, err
		}

		return SelectItem{Kind: ExprWithAlias, Expr: *e, Alias: alias.Value}, nil
	}

	if p.at(sqltoken.IDENTIFIER) {
		alias := p.advance()
		return SelectItem{Kind: ExprWithAlias, Expr: *e, Alias: alias.Value}, nil
	}

	return SelectItem{Kind: UnnamedExpr, Expr: *e}, nil
}

func (p *parser) peekIs(offset int, t sqltoken.TokenType) bool {
	idx := p.pos + offset
	if idx >= len(p.toks) {
		return t == sqltoken.EOF
	}

	return p.toks[idx].Type == t
}

func (p *parser) parseFromList() ([]TableWithJoins, error) {
	var out []TableWithJoins

	for {
		t, err := p.parseTableWithJoins()
		if err != nil {
			return nil, err
		}

		out = append(out, t)

		if p.at(sqltoken.COMMA) {
			p.advance()
			continue
		}

		break
	}

	return out, nil
}

func (p *parser) parseTableWithJoins() (TableWithJoins, error) {
	rel, err := p.parseTableFactor()
	if err != nil {
		return TableWithJoins{}, err
	}

	t := TableWithJoins{Relation: rel}

	for {
		kind, ok, err := p.parseJoinKeyword()
		if err != nil {
			return TableWithJoins{}, err
		}

		if !ok {
			break
		}

		right, err := p.parseTableFactor()
		if err != nil {
			return TableWithJoins{}, err
		}

		if _, err := p.expect(sqltoken.ON, "ON"); err != nil {
			return TableWithJoins{}, err
		}

		on, err := p.parseExpr(precLowest)
		if err != nil {
			return TableWithJoins{}, err
		}

		t.Joins = append(t.Joins, Join{Kind: kind, Right: right, On: *on})
	}

	return t, nil
}

func (p *parser) parseJoinKeyword() (JoinKind, bool, error) {
	switch {
	case p.at(sqltoken.JOIN):
		p.advance()
		return JoinInner, true, nil
	case p.at(sqltoken.INNER):
		p.advance()

		if _, err := p.expect(sqltoken.JOIN, "JOIN"); err != nil {
			return 0, false, err
		}

		return JoinInner, true, nil
	case p.at(sqltoken.LEFT):
		p.advance()
		p.skipOptional(sqltoken.OUTER)

		if _, err := p.expect(sqltoken.JOIN, "JOIN"); err != nil {
			return 0, false, err
		}

		return JoinLeftOuter, true, nil
	case p.at(sqltoken.RIGHT):
		p.advance()
		p.skipOptional(sqltoken.OUTER)

		if _, err := p.expect(sqltoken.JOIN, "JOIN"); err != nil {
			return 0, false, err
		}

		return JoinRightOuter, true, nil
	case p.at(sqltoken.FULL):
		p.advance()
		p.skipOptional(sqltoken.OUTER)

		if _, err := p.expect(sqltoken.JOIN, "JOIN"); err != nil {
			return 0, false, err
		}

		return JoinFullOuter, true, nil
	default:
		return 0, false, nil
	}
}

func (p *parser) skipOptional(t sqltoken.TokenType) {
	if p.at(t) {
		p.advance()
	}
}

func (p *parser) parseTableFactor() (TableFactor, error) {
	pos := p.cur().Position

	if p.at(sqltoken.OPENED_PARENS) {
		p.advance()

		q, err := p.parseQuery()
		if err != nil {
			return TableFactor{}, err
		}

		if _, err := p.expect(sqltoken.CLOSED_PARENS, ")"); err != nil {
			return TableFactor{}, err
		}

		tf := TableFactor{Kind: TableFactorDerived, Query: q, Pos: pos}

		if p.at(sqltoken.AS) {
			p.advance()
		}

		if p.at(sqltoken.IDENTIFIER) {
			tf.Alias = p.advance().Value
		}

		return tf, nil
	}

	name, err := p.parseObjectName()
	if err != nil {
		return TableFactor{}, err
	}

	tf := TableFactor{Kind: TableFactorTable, Name: name, Pos: pos}

	if p.at(sqltoken.AS) {
		p.advance()

		alias, err := p.expect(sqltoken.IDENTIFIER, "alias")
		if err != nil {
			return TableFactor{}, err
		}

		tf.Alias = alias.Value
	} else if p.at(sqltoken.IDENTIFIER) {
		tf.Alias = p.advance().Value
	}

	return tf, nil
}

func (p *parser) parseObjectName() (ObjectName, error) {
	first, err := p.expect(sqltoken.IDENTIFIER, "identifier")
	if err != nil {
		return nil, err
	}

	name := ObjectName{{Name: first.Value, Pos: first.Position}}

	for p.at(sqltoken.DOT) {
		p.advance()

		next, err := p.expect(sqltoken.IDENTIFIER, "identifier")
		if err != nil {
			return nil, err
		}

		name = append(name, Ident{Name: next.Value, Pos: next.Position})
	}

	return name, nil
}

func (p *parser) parseOrderByList() ([]OrderByItem, error) {
	var out []OrderByItem

	for {
		e, err := p.parseExpr(precLowest)
		if err != nil {
			return nil, err
		}

		item := OrderByItem{Expr: *e}

		if tok, ok := p.tryKeywordModifier(ascOrDesc); ok {
			item.Desc = strings.EqualFold(tok.Value, "DESC")
		}

		out = append(out, item)

		if p.at(sqltoken.COMMA) {
			p.advance()
			continue
		}

		break
	}

	return out, nil
}

func (p *parser) parseExprList() ([]Expr, error) {
	var out []Expr

	for {
		e, err := p.parseExpr(precLowest)
		if err != nil {
			return nil, err
		}

		out = append(out, *e)

		if p.at(sqltoken.COMMA) {
			p.advance()
			continue
		}

		break
	}

	return out, nil
}

// precedence tiers, lowest to highest binding.
type prec int

const (
	precLowest prec = iota
	precOr
	precAnd
	precNot
	precComparison
	precConcat
	precAdditive
	precMultiplicative
	precUnary
)

func binOpPrec(t sqltoken.Token) (prec, string, bool) {
	switch t.Type {
	case sqltoken.OR:
		return precOr, "OR", true
	case sqltoken.AND:
		return precAnd, "AND", true
	case sqltoken.EQUAL:
		return precComparison, "=", true
	case sqltoken.NOT_EQUAL:
		return precComparison, "!=", true
	case sqltoken.LESS_THAN:
		return precComparison, "<", true
	case sqltoken.LESS_EQUAL:
		return precComparison, "<=", true
	case sqltoken.GREATER_THAN:
		return precComparison, ">", true
	case sqltoken.GREATER_EQUAL:
		return precComparison, ">=", true
	case sqltoken.CONCAT:
		return precConcat, "||", true
	case sqltoken.PLUS:
		return precAdditive, "+", true
	case sqltoken.MINUS:
		return precAdditive, "-", true
	case sqltoken.MULTIPLY:
		return precMultiplicative, "*", true
	case sqltoken.DIVIDE:
		return precMultiplicative, "/", true
	case sqltoken.PERCENT:
		return precMultiplicative, "%", true
	default:
		return precLowest, "", false
	}
}

// parseExpr is a precedence-climbing descent: each binary operator's
// tier is tried in turn, pulling operands from the next tier up.
// parsercombinator models clause structure above this function; full
// operator precedence is deliberately left to this cursor-based climb
// rather than a wall of nested Or/Seq combinators, the same division
// of labor the teacher's own parser stages keep (structural
// recognition in one pass, semantic/precedence concerns in the next).
func (p *parser) parseExpr(min prec) (*Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	for {
		opPrec, op, ok := binOpPrec(p.cur())
		if !ok || opPrec < min {
			break
		}

		pos := p.cur().Position
		p.advance()

		right, err := p.parseExpr(opPrec + 1)
		if err != nil {
			return nil, err
		}

		left = &Expr{Kind: ExprBinaryOp, Pos: pos, Op: op, Left: left, Right: right}
	}

	if p.at(sqltoken.IS) {
		pos := p.cur().Position
		p.advance()

		neg := false
		if p.at(sqltoken.NOT) {
			p.advance()
			neg = true
		}

		if _, err := p.expect(sqltoken.NULL, "NULL"); err != nil {
			return nil, err
		}

		kind := ExprIsNull
		if neg {
			kind = ExprIsNotNull
		}

		left = &Expr{Kind: kind, Pos: pos, Operand1: left}
	}

	return left, nil
}

func (p *parser) parseUnary() (*Expr, error) {
	if p.at(sqltoken.NOT) {
		pos := p.cur().Position
		p.advance()

		operand, err := p.parseExpr(precNot)
		if err != nil {
			return nil, err
		}

		return &Expr{Kind: ExprUnaryOp, Pos: pos, Op: "NOT", Left: operand}, nil
	}

	if p.at(sqltoken.MINUS) {
		pos := p.cur().Position
		p.advance()

		operand, err := p.parseExpr(precUnary)
		if err != nil {
			return nil, err
		}

		return &Expr{Kind: ExprUnaryOp, Pos: pos, Op: "-", Left: operand}, nil
	}

	return p.parsePrimary()
}

func (p *parser) parsePrimary() (*Expr, error) {
	t := p.cur()

	switch t.Type {
	case sqltoken.NUMBER:
		p.advance()
		return &Expr{Kind: ExprValue, Pos: t.Position, ValueKind: ValueNumber, Literal: t.Value}, nil
	case sqltoken.STRING:
		p.advance()
		return &Expr{Kind: ExprValue, Pos: t.Position, ValueKind: ValueString, Literal: t.Value}, nil
	case sqltoken.BOOLEAN:
		p.advance()
		return &Expr{Kind: ExprValue, Pos: t.Position, ValueKind: ValueBoolean, Literal: t.Value}, nil
	case sqltoken.NULL:
		p.advance()
		return &Expr{Kind: ExprValue, Pos: t.Position, ValueKind: ValueNull}, nil
	case sqltoken.OPENED_PARENS:
		return p.parseParenthesized()
	case sqltoken.ARRAY:
		return p.parseArrayLiteral()
	case sqltoken.CASE:
		return p.parseCase()
	case sqltoken.IDENTIFIER, sqltoken.QUOTED_IDENTIFIER:
		return p.parseIdentOrCall()
	default:
		return nil, fmt.Errorf("%w: unexpected token %q at %d:%d", qs.ErrSyntax, t.Value, t.Position.Line, t.Position.Column)
	}
}

func (p *parser) parseParenthesized() (*Expr, error) {
	pos := p.cur().Position
	p.advance()

	if p.at(sqltoken.SELECT) {
		q, err := p.parseQuery()
		if err != nil {
			return nil, err
		}

		if _, err := p.expect(sqltoken.CLOSED_PARENS, ")"); err != nil {
			return nil, err
		}

		return &Expr{Kind: ExprSubquery, Pos: pos, Subquery: q}, nil
	}

	first, err := p.parseExpr(precLowest)
	if err != nil {
		return nil, err
	}

	if p.at(sqltoken.COMMA) {
		items := []Expr{*first}

		for p.at(sqltoken.COMMA) {
			p.advance()

			e, err := p.parseExpr(precLowest)
			if err != nil {
				return nil, err
			}

			items = append(items, *e)
		}

		if _, err := p.expect(sqltoken.CLOSED_PARENS, ")"); err != nil {
			return nil, err
		}

		return &Expr{Kind: ExprTuple, Pos: pos, Items: items}, nil
	}

	if _, err := p.expect(sqltoken.CLOSED_PARENS, ")"); err != nil {
		return nil, err
	}

	return first, nil
}

func (p *parser) parseArrayLiteral() (*Expr, error) {
	pos := p.cur().Position
	p.advance()

	if _, err := p.expect(sqltoken.OPENED_BRACKET, "["); err != nil {
		return nil, err
	}

	var items []Expr

	if !p.at(sqltoken.CLOSED_BRACKET) {
		exprs, err := p.parseExprList()
		if err != nil {
			return nil, err
		}

		items = exprs
	}

	if _, err := p.expect(sqltoken.CLOSED_BRACKET, "]"); err != nil {
		return nil, err
	}

	return &Expr{Kind: ExprArray, Pos: pos, Items: items}, nil
}

func (p *parser) parseCase() (*Expr, error) {
	pos := p.cur().Position
	p.advance()

	e := &Expr{Kind: ExprCase, Pos: pos}

	if !p.at(sqltoken.WHEN) {
		operand, err := p.parseExpr(precLowest)
		if err != nil {
			return nil, err
		}

		e.Operand = operand
	}

	for p.at(sqltoken.WHEN) {
		p.advance()

		when, err := p.parseExpr(precLowest)
		if err != nil {
			return nil, err
		}

		if _, err := p.expect(sqltoken.THEN, "THEN"); err != nil {
			return nil, err
		}

		then, err := p.parseExpr(precLowest)
		if err != nil {
			return nil, err
		}

		e.WhenThen = append(e.WhenThen, WhenThen{When: *when, Then: *then})
	}

	if p.at(sqltoken.ELSE) {
		p.advance()

		elseExpr, err := p.parseExpr(precLowest)
		if err != nil {
			return nil, err
		}

		e.ElseResult = elseExpr
	}

	if _, err := p.expect(sqltoken.END, "END"); err != nil {
		return nil, err
	}

	return e, nil
}

func (p *parser) parseIdentOrCall() (*Expr, error) {
	name, err := p.parseObjectName()
	if err != nil {
		return nil, err
	}

	if !p.at(sqltoken.OPENED_PARENS) {
		kind := ExprIdent
		if len(name) > 1 {
			kind = ExprCompoundIdent
		}

		return &Expr{Kind: kind, Pos: name[0].Pos, Path: name}, nil
	}

	pos := p.cur().Position
	p.advance()

	call := &Expr{Kind: ExprFunctionCall, Pos: pos, FuncName: name}

	if p.at(sqltoken.MULTIPLY) && p.peekIs(1, sqltoken.CLOSED_PARENS) {
		p.advance()
		call.Args = append(call.Args, FuncArg{Star: true})
	} else if !p.at(sqltoken.CLOSED_PARENS) {
		args, err := p.parseFuncArgList()
		if err != nil {
			return nil, err
		}

		call.Args = args
	}

	if _, err := p.expect(sqltoken.CLOSED_PARENS, ")"); err != nil {
		return nil, err
	}

	if p.at(sqltoken.OVER) {
		over, err := p.parseWindowSpec()
		if err != nil {
			return nil, err
		}

		call.Over = over
	}

	return call, nil
}

func (p *parser) parseFuncArgList() ([]FuncArg, error) {
	var out []FuncArg

	for {
		arrow := p.peekIs(1, sqltoken.EQUAL) && p.peekIs(2, sqltoken.GREATER_THAN)
		if p.at(sqltoken.IDENTIFIER) && (p.peekIs(1, sqltoken.AT) || arrow) {
			name := p.advance().Value
			p.advance() // `@` or the `=` of `=>`: `name@expr` / `name => expr`
			if arrow {
				p.advance() // the `>` of `=>`
			}

			e, err := p.parseExpr(precLowest)
			if err != nil {
				return nil, err
			}

			out = append(out, FuncArg{Name: name, Expr: *e})
		} else {
			e, err := p.parseExpr(precLowest)
			if err != nil {
				return nil, err
			}

			out = append(out, FuncArg{Expr: *e})
		}

		if p.at(sqltoken.COMMA) {
			p.advance()
			continue
		}

		break
	}

	return out, nil
}

func (p *parser) parseWindowSpec() (*WindowSpec, error) {
	p.advance() // OVER

	if _, err := p.expect(sqltoken.OPENED_PARENS, "("); err != nil {
		return nil, err
	}

	spec := &WindowSpec{}

	if p.at(sqltoken.PARTITION) {
		if !p.tryClause(partitionByIntro) {
			return nil, fmt.Errorf("%w: expected BY after PARTITION at %d:%d", qs.ErrSyntax, p.cur().Position.Line, p.cur().Position.Column)
		}

		exprs, err := p.parseExprList()
		if err != nil {
			return nil, err
		}

		spec.PartitionBy = exprs
	}

	if p.at(sqltoken.ORDER) {
		if !p.tryClause(orderByIntro) {
			return nil, fmt.Errorf("%w: expected BY after ORDER at %d:%d", qs.ErrSyntax, p.cur().Position.Line, p.cur().Position.Column)
		}

		items, err := p.parseOrderByList()
		if err != nil {
			return nil, err
		}

		spec.OrderBy = items
	}

	if p.at(sqltoken.ROWS) || p.at(sqltoken.RANGE) {
		frame, err := p.parseWindowFrame()
		if err != nil {
			return nil, err
		}

		spec.Frame = frame
	}

	if _, err := p.expect(sqltoken.CLOSED_PARENS, ")"); err != nil {
		return nil, err
	}

	return spec, nil
}

func (p *parser) parseWindowFrame() (*WindowFrame, error) {
	unit := FrameRows
	if p.at(sqltoken.RANGE) {
		unit = FrameRange
	}

	p.advance()

	f := &WindowFrame{Unit: unit}

	if _, between := p.tryKeywordModifier(windowFrameBetween); !between {
		startKind, startExpr, err := p.parseFrameBound()
		if err != nil {
			return nil, err
		}

		f.StartKind = startKind
		f.StartExpr = startExpr
		f.EndKind = BoundCurrentRow

		return f, nil
	}

	startKind, startExpr, err := p.parseFrameBound()
	if err != nil {
		return nil, err
	}

	f.StartKind = startKind
	f.StartExpr = startExpr

	// AND already has a dedicated TokenType (unlike BETWEEN), so the
	// separator is a plain cursor check rather than a keywordToken match.
	if _, err := p.expect(sqltoken.AND, "AND"); err != nil {
		return nil, err
	}

	endKind, endExpr, err := p.parseFrameBound()
	if err != nil {
		return nil, err
	}

	f.EndKind = endKind
	f.EndExpr = endExpr

	return f, nil
}

func (p *parser) parseFrameBound() (FrameBoundKind, *Expr, error) {
	if p.at(sqltoken.CURRENT) {
		p.advance()

		if _, err := p.expect(sqltoken.ROW, "ROW"); err != nil {
			return 0, nil, err
		}

		return BoundCurrentRow, nil, nil
	}

	if p.at(sqltoken.UNBOUNDED) {
		p.advance()

		switch {
		case p.at(sqltoken.PRECEDING):
			p.advance()
			return BoundUnboundedPreceding, nil, nil
		case p.at(sqltoken.FOLLOWING):
			p.advance()
			return BoundUnboundedFollowing, nil, nil
		default:
			return 0, nil, fmt.Errorf("%w: expected PRECEDING or FOLLOWING at %d:%d", qs.ErrSyntax, p.cur().Position.Line, p.cur().Position.Column)
		}
	}

	e, err := p.parseExpr(precLowest)
	if err != nil {
		return 0, nil, err
	}

	switch {
	case p.at(sqltoken.PRECEDING):
		p.advance()
		return BoundPreceding, e, nil
	case p.at(sqltoken.FOLLOWING):
		p.advance()
		return BoundFollowing, e, nil
	default:
		return 0, nil, fmt.Errorf("%w: expected PRECEDING or FOLLOWING at %d:%d", qs.ErrSyntax, p.cur().Position.Line, p.cur().Position.Column)
	}
}

// ParseExpr parses a standalone expression fragment, for callers that
// need to reparse an expression outside a full query (e.g. the
// inliner) while reusing the same precedence climb.
func ParseExpr(src string) (*Expr, error) {
	toks, err := sqltoken.New(src).Tokenize()
	if err != nil {
		return nil, err
	}

	p := &parser{toks: filterTrivia(toks)}

	e, err := p.parseExpr(precLowest)
	if err != nil {
		return nil, err
	}

	if !p.at(sqltoken.EOF) {
		return nil, fmt.Errorf("%w: unexpected trailing token %q at %d:%d", qs.ErrSyntax, p.cur().Value, p.cur().Position.Line, p.cur().Position.Column)
	}

	return e, nil
}

// primitiveType matches a single token carrying one of the given
// sqltoken TokenTypes, the base matcher groupByIntro/orderByIntro/
// partitionByIntro compose over - the same role the teacher's
// primitiveType(name, types...) plays for its own tokenizer.TokenType
// (parser/parserstep2/simpleparser.go).
func primitiveType(types ...sqltoken.TokenType) pc.Parser[sqltoken.Token] {
	return func(pctx *pc.ParseContext[sqltoken.Token], tokens []pc.Token[sqltoken.Token]) (int, []pc.Token[sqltoken.Token], error) {
		if len(tokens) == 0 {
			return 0, nil, pc.ErrNotMatch
		}

		t := tokens[0].Val
		for _, tt := range types {
			if t.Type == tt {
				return 1, tokens[:1], nil
			}
		}

		return 0, nil, pc.ErrNotMatch
	}
}

// keywordToken matches a contextual keyword sqltoken lexes as a plain
// IDENTIFIER rather than a dedicated TokenType (BETWEEN, ASC, DESC).
func keywordToken(word string) pc.Parser[sqltoken.Token] {
	return func(pctx *pc.ParseContext[sqltoken.Token], tokens []pc.Token[sqltoken.Token]) (int, []pc.Token[sqltoken.Token], error) {
		if len(tokens) == 0 {
			return 0, nil, pc.ErrNotMatch
		}

		t := tokens[0].Val
		if t.Type == sqltoken.IDENTIFIER && strings.EqualFold(t.Value, word) {
			return 1, tokens[:1], nil
		}

		return 0, nil, pc.ErrNotMatch
	}
}

// Clause-introducing keyword sequences, composed from primitiveType/
// keywordToken via pc.SeqWithLabel/pc.Or/pc.Optional the same way the
// teacher builds groupByClause/orderByClause/withClause
// (parser/parserstep2/simpleparser.go) rather than hand-checking each
// keyword token in sequence.
var (
	orderByIntro       = pc.SeqWithLabel("order by clause", primitiveType(sqltoken.ORDER), primitiveType(sqltoken.BY))
	groupByIntro       = pc.SeqWithLabel("group by clause", primitiveType(sqltoken.GROUP), primitiveType(sqltoken.BY))
	partitionByIntro   = pc.SeqWithLabel("partition by clause", primitiveType(sqltoken.PARTITION), primitiveType(sqltoken.BY))
	ascOrDesc          = pc.Optional(pc.Or(keywordToken("DESC"), keywordToken("ASC")))
	windowFrameBetween = pc.Optional(keywordToken("BETWEEN"))
)
