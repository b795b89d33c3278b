package lang

import (
	"fmt"
	"strings"

	"github.com/queryscript/qs"
	"github.com/queryscript/qs/internal/sqlast"
)

// Parse lexes and parses a full QueryScript source file into a Schema
// of top-level statements (spec §4.E). Clause keywords are recognized
// by direct cursor matching, mirroring internal/sqlast/parse.go's
// token-cursor parser; SQL-valued statement bodies delegate entirely
// to internal/sqlast.Parse / ParseExpr, since a QueryScript Expr is,
// per original_source/qvm/src/ast/mod.rs's ExprBody, always a parsed
// SQL query or SQL scalar expression.
func Parse(src string) (*Schema, error) {
	toks, err := New(src).Tokenize()
	if err != nil {
		return nil, err
	}

	p := &parser{src: src, toks: filterTrivia(toks)}

	var stmts []Stmt

	for !p.at(EOF) {
		s, err := p.parseStmt()
		if err != nil {
			return nil, err
		}

		stmts = append(stmts, s)

		for p.at(SEMICOLON) {
			p.advance()
		}
	}

	return &Schema{Stmts: stmts}, nil
}

func filterTrivia(toks []Token) []Token {
	out := make([]Token, 0, len(toks))

	for _, t := range toks {
		switch t.Type {
		case WHITESPACE, LINE_COMMENT, BLOCK_COMMENT:
			continue
		default:
			out = append(out, t)
		}
	}

	return out
}

type parser struct {
	src  string
	toks []Token
	pos  int
}

func (p *parser) cur() Token {
	if p.pos >= len(p.toks) {
		return Token{Type: EOF}
	}

	return p.toks[p.pos]
}

func (p *parser) at(t TokenType) bool { return p.cur().Type == t }

func (p *parser) advance() Token {
	t := p.cur()
	if p.pos < len(p.toks) {
		p.pos++
	}

	return t
}

func (p *parser) expect(t TokenType, what string) (Token, error) {
	if !p.at(t) {
		return Token{}, fmt.Errorf("%w: expected %s at %d:%d, got %q", qs.ErrSyntax, what, p.cur().Position.Line, p.cur().Position.Column, p.cur().Value)
	}

	return p.advance(), nil
}

func (p *parser) parseStmt() (Stmt, error) {
	pos := p.cur().Position

	export := false
	if p.at(EXPORT) {
		p.advance()

		export = true
	}

	switch p.cur().Type {
	case TYPE:
		return p.parseTypeDef(export, pos)
	case LET:
		return p.parseLet(export, pos)
	case FN:
		return p.parseFnDef(export, pos)
	case EXTERN:
		return p.parseExtern(export, pos)
	case IMPORT:
		return p.parseImport(export, pos)
	default:
		e, err := p.parseExprBody()
		if err != nil {
			return Stmt{}, err
		}

		return Stmt{Export: export, Kind: StmtExpr, Pos: pos, Expr: e}, nil
	}
}

func (p *parser) parseTypeDef(export bool, pos Position) (Stmt, error) {
	p.advance() // type

	name, err := p.expect(IDENTIFIER, "type name")
	if err != nil {
		return Stmt{}, err
	}

	if _, err := p.expect(EQUAL, "="); err != nil {
		return Stmt{}, err
	}

	ty, err := p.parseType()
	if err != nil {
		return Stmt{}, err
	}

	return Stmt{Export: export, Kind: StmtTypeDef, Pos: pos, TypeDefName: toIdent(name), TypeDefBody: *ty}, nil
}

func (p *parser) parseLet(export bool, pos Position) (Stmt, error) {
	p.advance() // let

	name, err := p.expect(IDENTIFIER, "binding name")
	if err != nil {
		return Stmt{}, err
	}

	var typ *Type

	if p.at(COLON) {
		p.advance()

		t, err := p.parseType()
		if err != nil {
			return Stmt{}, err
		}

		typ = t
	}

	if _, err := p.expect(EQUAL, "="); err != nil {
		return Stmt{}, err
	}

	body, err := p.parseExprBody()
	if err != nil {
		return Stmt{}, err
	}

	return Stmt{Export: export, Kind: StmtLet, Pos: pos, LetName: toIdent(name), LetType: typ, LetBody: body}, nil
}

func (p *parser) parseExtern(export bool, pos Position) (Stmt, error) {
	p.advance() // extern

	name, err := p.expect(IDENTIFIER, "extern name")
	if err != nil {
		return Stmt{}, err
	}

	if _, err := p.expect(COLON, ":"); err != nil {
		return Stmt{}, err
	}

	ty, err := p.parseType()
	if err != nil {
		return Stmt{}, err
	}

	return Stmt{Export: export, Kind: StmtExtern, Pos: pos, ExternName: toIdent(name), ExternType: *ty}, nil
}

func (p *parser) parseFnDef(export bool, pos Position) (Stmt, error) {
	p.advance() // fn

	name, err := p.expect(IDENTIFIER, "function name")
	if err != nil {
		return Stmt{}, err
	}

	var generics []Ident

	if p.at(OPENED_ANGLE) {
		p.advance()

		for !p.at(CLOSED_ANGLE) {
			g, err := p.expect(IDENTIFIER, "generic parameter")
			if err != nil {
				return Stmt{}, err
			}

			generics = append(generics, toIdent(g))

			if p.at(COMMA) {
				p.advance()
			}
		}

		p.advance() // >
	}

	if _, err := p.expect(OPENED_PARENS, "("); err != nil {
		return Stmt{}, err
	}

	var args []FnArg

	for !p.at(CLOSED_PARENS) {
		argName, err := p.expect(IDENTIFIER, "argument name")
		if err != nil {
			return Stmt{}, err
		}

		if _, err := p.expect(COLON, ":"); err != nil {
			return Stmt{}, err
		}

		argType, err := p.parseType()
		if err != nil {
			return Stmt{}, err
		}

		args = append(args, FnArg{Name: toIdent(argName), Type: *argType})

		if p.at(COMMA) {
			p.advance()
		}
	}

	p.advance() // )

	var ret *Type

	if p.at(ARROW) {
		p.advance()

		r, err := p.parseType()
		if err != nil {
			return Stmt{}, err
		}

		ret = r
	}

	body, err := p.parseFnBody()
	if err != nil {
		return Stmt{}, err
	}

	return Stmt{
		Export: export, Kind: StmtFnDef, Pos: pos,
		FnName: toIdent(name), FnGenerics: generics, FnArgs: args, FnRet: ret, FnBody: body,
	}, nil
}

func (p *parser) parseFnBody() (FnBody, error) {
	switch {
	case p.at(NATIVE):
		p.advance()
		return FnBody{Kind: FnBodyNative}, nil
	case p.at(SQLKW):
		p.advance()
		return FnBody{Kind: FnBodySQL}, nil
	default:
		if _, err := p.expect(EQUAL, "="); err != nil {
			return FnBody{}, err
		}

		e, err := p.parseExprBody()
		if err != nil {
			return FnBody{}, err
		}

		return FnBody{Kind: FnBodyExpr, Expr: e}, nil
	}
}

func (p *parser) parseImport(export bool, pos Position) (Stmt, error) {
	p.advance() // import

	path, err := p.parsePath()
	if err != nil {
		return Stmt{}, err
	}

	list := ImportList{Kind: ImportNone}

	if p.at(DOT) {
		p.advance()

		if p.at(STAR) {
			p.advance()

			list.Kind = ImportStar
		} else if p.at(OPENED_BRACE) {
			p.advance()

			var items []Path

			for !p.at(CLOSED_BRACE) {
				item, err := p.parsePath()
				if err != nil {
					return Stmt{}, err
				}

				items = append(items, item)

				if p.at(COMMA) {
					p.advance()
				}
			}

			p.advance() // }

			list = ImportList{Kind: ImportItems, Items: items}
		}
	}

	var args []NameAndExpr

	if p.at(OPENED_PARENS) {
		p.advance()

		for !p.at(CLOSED_PARENS) {
			argName, err := p.expect(IDENTIFIER, "argument name")
			if err != nil {
				return Stmt{}, err
			}

			if _, err := p.expect(EQUAL, "="); err != nil {
				return Stmt{}, err
			}

			argExpr, err := p.parseExprBody()
			if err != nil {
				return Stmt{}, err
			}

			args = append(args, NameAndExpr{Name: toIdent(argName), Expr: argExpr})

			if p.at(COMMA) {
				p.advance()
			}
		}

		p.advance() // )
	}

	return Stmt{Export: export, Kind: StmtImport, Pos: pos, ImportPath: path, ImportList: list, ImportArgs: args}, nil
}

func (p *parser) parsePath() (Path, error) {
	first, err := p.expect(IDENTIFIER, "identifier")
	if err != nil {
		return nil, err
	}

	path := Path{toIdent(first)}

	for p.at(DOT) && p.peekIsIdentifier(1) {
		p.advance()

		next, err := p.expect(IDENTIFIER, "identifier")
		if err != nil {
			return nil, err
		}

		path = append(path, toIdent(next))
	}

	return path, nil
}

func (p *parser) peekIsIdentifier(offset int) bool {
	idx := p.pos + offset
	if idx >= len(p.toks) {
		return false
	}

	return p.toks[idx].Type == IDENTIFIER
}

func (p *parser) parseType() (*Type, error) {
	pos := p.cur().Position

	var t *Type
	var err error

	switch p.cur().Type {
	case STRUCT:
		t, err = p.parseStructType(pos)
	case LIST:
		t, err = p.parseListType(pos)
	case EXCLUDE:
		t, err = p.parseExcludeType(pos)
	case EXTERNAL:
		t, err = p.parseExternalType(pos)
	case IDENTIFIER:
		t, err = p.parseReferenceOrGenericType(pos)
	default:
		return nil, fmt.Errorf("%w: expected type at %d:%d, got %q", qs.ErrSyntax, pos.Line, pos.Column, p.cur().Value)
	}

	if err != nil {
		return nil, err
	}

	return t, nil
}

func (p *parser) parseStructType(pos Position) (*Type, error) {
	p.advance() // struct

	if _, err := p.expect(OPENED_BRACE, "{"); err != nil {
		return nil, err
	}

	var fields []StructField

	for !p.at(CLOSED_BRACE) {
		if p.at(IDENTIFIER) && p.cur().Value == "include" {
			p.advance()

			inc, err := p.parsePath()
			if err != nil {
				return nil, err
			}

			fields = append(fields, StructField{IsInclude: true, Include: inc})
		} else {
			name, err := p.expect(IDENTIFIER, "field name")
			if err != nil {
				return nil, err
			}

			if _, err := p.expect(COLON, ":"); err != nil {
				return nil, err
			}

			fieldType, err := p.parseType()
			if err != nil {
				return nil, err
			}

			nullable := false

			if p.at(QUESTION) {
				p.advance()

				nullable = true
			}

			fields = append(fields, StructField{Name: toIdent(name), Def: fieldType, Nullable: nullable})
		}

		if p.at(COMMA) {
			p.advance()
		}
	}

	p.advance() // }

	return &Type{Kind: TypeStruct, Pos: pos, Fields: fields}, nil
}

func (p *parser) parseListType(pos Position) (*Type, error) {
	p.advance() // list

	if _, err := p.expect(OPENED_ANGLE, "<"); err != nil {
		return nil, err
	}

	elem, err := p.parseType()
	if err != nil {
		return nil, err
	}

	if _, err := p.expect(CLOSED_ANGLE, ">"); err != nil {
		return nil, err
	}

	return &Type{Kind: TypeList, Pos: pos, Elem: elem}, nil
}

func (p *parser) parseExternalType(pos Position) (*Type, error) {
	p.advance() // external

	if _, err := p.expect(OPENED_ANGLE, "<"); err != nil {
		return nil, err
	}

	elem, err := p.parseType()
	if err != nil {
		return nil, err
	}

	if _, err := p.expect(CLOSED_ANGLE, ">"); err != nil {
		return nil, err
	}

	return &Type{Kind: TypeExternal, Pos: pos, Elem: elem}, nil
}

func (p *parser) parseExcludeType(pos Position) (*Type, error) {
	p.advance() // exclude

	if _, err := p.expect(OPENED_PARENS, "("); err != nil {
		return nil, err
	}

	inner, err := p.parseType()
	if err != nil {
		return nil, err
	}

	if _, err := p.expect(COMMA, ","); err != nil {
		return nil, err
	}

	var excluded []Ident

	for !p.at(CLOSED_PARENS) {
		id, err := p.expect(IDENTIFIER, "excluded field name")
		if err != nil {
			return nil, err
		}

		excluded = append(excluded, toIdent(id))

		if p.at(COMMA) {
			p.advance()
		}
	}

	p.advance() // )

	return &Type{Kind: TypeExclude, Pos: pos, ExcludeInner: inner, ExcludedFields: excluded}, nil
}

func (p *parser) parseReferenceOrGenericType(pos Position) (*Type, error) {
	path, err := p.parsePath()
	if err != nil {
		return nil, err
	}

	if !p.at(OPENED_ANGLE) {
		return &Type{Kind: TypeReference, Pos: pos, Reference: path}, nil
	}

	p.advance() // <

	var args []Type

	for !p.at(CLOSED_ANGLE) {
		arg, err := p.parseType()
		if err != nil {
			return nil, err
		}

		args = append(args, *arg)

		if p.at(COMMA) {
			p.advance()
		}
	}

	p.advance() // >

	return &Type{Kind: TypeGeneric, Pos: pos, GenericName: path, GenericArgs: args}, nil
}

// parseExprBody parses a value body as raw SQL (spec's
// ExprBody::SQLQuery / SQLExpr: a QueryScript value is always either a
// SQL query or a SQL scalar expression, there is no separate host
// expression grammar). It slices the enclosing source text between
// this statement's start and the next top-level statement boundary
// (tracking bracket depth so a nested `select`/`let` inside a
// subquery or struct literal never ends the slice early), then hands
// that fragment to internal/sqlast, which owns the actual grammar.
func (p *parser) parseExprBody() (*Expr, error) {
	pos := p.cur().Position
	startOffset := pos.Offset
	endOffset := p.findStmtBoundary()

	fragment := strings.TrimSpace(p.src[startOffset:endOffset])

	p.pos = p.boundaryTokenIndex(endOffset)

	if looksLikeQuery(fragment) {
		q, err := sqlast.Parse(fragment)
		if err != nil {
			return nil, err
		}

		return &Expr{Kind: ExprSQLQuery, Pos: pos, Query: q}, nil
	}

	e, err := sqlast.ParseExpr(fragment)
	if err != nil {
		return nil, err
	}

	return &Expr{Kind: ExprSQLExpr, Pos: pos, SQLExpr: e}, nil
}

func looksLikeQuery(fragment string) bool {
	return len(fragment) >= 6 && strings.EqualFold(fragment[:6], "select")
}

// findStmtBoundary scans forward from the current token, tracking
// paren/brace/bracket depth, and returns the source offset of the
// first depth-0 token that starts a new statement, of a closing
// bracket opened before the body (an import argument list's `)`), or
// of EOF. Angle tokens are SQL comparisons here, not brackets.
func (p *parser) findStmtBoundary() int {
	depth := 0

	for i := p.pos; i < len(p.toks); i++ {
		t := p.toks[i]

		switch t.Type {
		case OPENED_PARENS, OPENED_BRACE, OPENED_BRACKET:
			depth++
		case CLOSED_PARENS, CLOSED_BRACE, CLOSED_BRACKET:
			depth--
		}

		if depth < 0 {
			return t.Position.Offset
		}

		if depth > 0 {
			continue
		}

		if i > p.pos && isStmtStart(t.Type) {
			return t.Position.Offset
		}

		if t.Type == SEMICOLON {
			return t.Position.Offset
		}
	}

	return len(p.src)
}

func isStmtStart(t TokenType) bool {
	switch t {
	case TYPE, LET, FN, EXTERN, IMPORT, EXPORT, EOF:
		return true
	default:
		return false
	}
}

func (p *parser) boundaryTokenIndex(offset int) int {
	i := p.pos
	for i < len(p.toks) && p.toks[i].Position.Offset < offset {
		i++
	}

	return i
}

func toIdent(t Token) Ident {
	return Ident{Name: t.Value, Pos: t.Position}
}
