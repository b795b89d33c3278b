// Package lang tokenizes and parses QueryScript source files: the
// statement-level grammar (type/let/fn/extern/import/export) that
// wraps SQL fragments as value bodies (spec §4.E, §3 "StmtBody").
// Grounded on original_source/qvm/src/ast/mod.rs's StmtBody/Type/Expr
// shapes, in the same flat-TokenType/Lexer style as internal/sqlast/sqltoken.
package lang

// TokenType enumerates QueryScript source lexical categories.
type TokenType int

const (
	EOF TokenType = iota
	WHITESPACE
	LINE_COMMENT
	BLOCK_COMMENT
	IDENTIFIER
	STRING
	NUMBER

	OPENED_PARENS
	CLOSED_PARENS
	OPENED_BRACE
	CLOSED_BRACE
	OPENED_BRACKET
	CLOSED_BRACKET
	OPENED_ANGLE
	CLOSED_ANGLE
	COMMA
	DOT
	COLON
	SEMICOLON
	EQUAL
	ARROW // ->
	STAR
	QUESTION

	// Keywords.
	TYPE
	LET
	FN
	EXTERN
	IMPORT
	EXPORT
	AS
	FROM
	STRUCT
	LIST
	EXCLUDE
	EXTERNAL
	UNSAFE
	NATIVE
	SQLKW
)

var keywords = map[string]TokenType{
	"type": TYPE, "let": LET, "fn": FN, "extern": EXTERN, "import": IMPORT,
	"export": EXPORT, "as": AS, "from": FROM, "struct": STRUCT, "list": LIST,
	"exclude": EXCLUDE, "external": EXTERNAL, "unsafe": UNSAFE,
	"native": NATIVE, "sql": SQLKW,
}

// Position mirrors sqltoken.Position; kept distinct so internal/lang
// has no import-time dependency on internal/sqlast.
type Position struct {
	Line   int
	Column int
	Offset int
}

// Token is one lexical unit of QueryScript source.
type Token struct {
	Type     TokenType
	Value    string
	Position Position
}
