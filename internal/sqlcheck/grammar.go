package sqlcheck

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// The accepted dialect is a fixed ANSI-like subset covering exactly what the
// generator emits: CREATE VIEW, CREATE TABLE, INSERT ... SELECT with UNION
// ALL arms, searched CASE, CAST, window functions with OVER, and derived
// tables. Connector option blocks are stripped before parsing, so the grammar
// itself never sees WITH.
//
// Keywords are not reserved; they are ordinary Ident tokens matched
// case-insensitively. That is why aliases always require an explicit AS.

var sqlLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `--[^\n]*|/\*(?:[^*]|\*+[^*/])*\*+/`},
	{Name: "String", Pattern: `'(?:''|[^'])*'`},
	{Name: "Number", Pattern: `\d+(?:\.\d+)?`},
	{Name: "Ident", Pattern: "`[^`]+`|[A-Za-z_][A-Za-z0-9_$]*"},
	{Name: "Op", Pattern: `<>|!=|<=|>=|\|\|`},
	{Name: "Punct", Pattern: `[-+*/%(),.;=<>]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var sqlParser = participle.MustBuild[SQLStatement](
	participle.Lexer(sqlLexer),
	participle.Elide("Whitespace", "Comment"),
	participle.CaseInsensitive("Ident"),
	participle.UseLookahead(4),
)

type SQLStatement struct {
	CreateView  *CreateView  `( @@`
	CreateTable *CreateTable `| @@`
	Insert      *InsertStmt  `| @@`
	Select      *SelectStmt  `| @@ )`
	Semi        bool         `@";"?`
}

type CreateView struct {
	Name    QualifiedName `"CREATE" "VIEW" @@`
	Columns []string      `("(" @Ident ("," @Ident)* ")")?`
	Select  *SelectStmt   `"AS" @@`
}

type CreateTable struct {
	IfNotExists bool            `"CREATE" "TABLE" @("IF" "NOT" "EXISTS")?`
	Name        QualifiedName   `@@`
	Elements    []*TableElement `"(" @@ ("," @@)* ")"`
}

type TableElement struct {
	PrimaryKey *PrimaryKey `  @@`
	Column     *ColumnDef  `| @@`
}

type PrimaryKey struct {
	Columns     []string `"PRIMARY" "KEY" "(" @Ident ("," @Ident)* ")"`
	NotEnforced bool     `@("NOT" "ENFORCED")?`
}

type ColumnDef struct {
	Name string   `@Ident`
	Type *TypeRef `@@`
}

type TypeRef struct {
	Name string   `@Ident`
	Args []string `("(" @Number ("," @Number)* ")")?`
}

type InsertStmt struct {
	Table   QualifiedName `"INSERT" "INTO" @@`
	Columns []string      `("(" @Ident ("," @Ident)* ")")?`
	Select  *SelectStmt   `@@`
}

type SelectStmt struct {
	First *SelectCore    `@@`
	Union []*UnionClause `@@*`
}

type UnionClause struct {
	All  bool        `"UNION" @"ALL"?`
	Core *SelectCore `@@`
}

type SelectCore struct {
	Distinct bool          `"SELECT" @"DISTINCT"?`
	Items    []*SelectItem `@@ ("," @@)*`
	From     *FromClause   `("FROM" @@)?`
	Where    *Expr         `("WHERE" @@)?`
	GroupBy  []*Expr       `("GROUP" "BY" @@ ("," @@)*)?`
	Having   *Expr         `("HAVING" @@)?`
}

type SelectItem struct {
	Star  bool   `( @"*"`
	Expr  *Expr  `| @@ )`
	Alias string `("AS" @Ident)?`
}

type FromClause struct {
	Source *TableRef     `@@`
	Joins  []*JoinClause `@@*`
}

type JoinClause struct {
	Kind  []string  `@("INNER" | "LEFT" | "RIGHT" | "FULL" | "CROSS")? @"OUTER"?`
	Table *TableRef `"JOIN" @@`
	On    *Expr     `("ON" @@)?`
}

type TableRef struct {
	Subquery *SelectStmt    `( "(" @@ ")"`
	Name     *QualifiedName `| @@ )`
	Alias    string         `("AS" @Ident)?`
}

type QualifiedName struct {
	Parts []string `@Ident ("." @Ident)*`
}

type Expr struct {
	Left  *AndExpr   `@@`
	Right []*AndExpr `("OR" @@)*`
}

type AndExpr struct {
	Left  *NotExpr   `@@`
	Right []*NotExpr `("AND" @@)*`
}

type NotExpr struct {
	Not  bool       `@"NOT"?`
	Pred *Predicate `@@`
}

// Predicate is a comparison operand with an optional right-hand side. The
// AND inside BETWEEN binds here, below AndExpr, so "x BETWEEN 1 AND 2 AND y"
// parses the way SQL requires.
type Predicate struct {
	Left *Additive `@@`
	RHS  *PredRHS  `@@?`
}

type PredRHS struct {
	IsNull  *IsNullRHS  `( @@`
	In      *InRHS      `| @@`
	Like    *LikeRHS    `| @@`
	Between *BetweenRHS `| @@`
	Cmp     *CmpRHS     `| @@ )`
}

type IsNullRHS struct {
	Not bool `"IS" @"NOT"? "NULL"`
}

type InRHS struct {
	Not   bool    `@"NOT"? "IN"`
	Exprs []*Expr `"(" @@ ("," @@)* ")"`
}

type LikeRHS struct {
	Not     bool      `@"NOT"? "LIKE"`
	Pattern *Additive `@@`
}

type BetweenRHS struct {
	Not bool      `@"NOT"? "BETWEEN"`
	Lo  *Additive `@@`
	Hi  *Additive `"AND" @@`
}

type CmpRHS struct {
	Op    string    `@("=" | "<>" | "!=" | "<=" | ">=" | "<" | ">")`
	Right *Additive `@@`
}

type Additive struct {
	Left *Multiplicative `@@`
	Rest []*AddOp        `@@*`
}

type AddOp struct {
	Op    string          `@("+" | "-" | "||")`
	Right *Multiplicative `@@`
}

type Multiplicative struct {
	Left *Unary   `@@`
	Rest []*MulOp `@@*`
}

type MulOp struct {
	Op    string `@("*" | "/" | "%")`
	Right *Unary `@@`
}

type Unary struct {
	Op      string   `@("-" | "+")?`
	Primary *Primary `@@`
}

type Primary struct {
	Cast  *CastExpr      `( @@`
	Case  *CaseExpr      `| @@`
	Func  *FuncCall      `| @@`
	Null  bool           `| @"NULL"`
	True  bool           `| @"TRUE"`
	False bool           `| @"FALSE"`
	Str   *string        `| @String`
	Num   *string        `| @Number`
	Name  *QualifiedName `| @@`
	Sub   *Expr          `| "(" @@ ")" )`
}

type CastExpr struct {
	Expr *Expr    `"CAST" "(" @@`
	Type *TypeRef `"AS" @@ ")"`
}

// CaseExpr accepts searched CASE only; the generator never emits the simple
// operand form.
type CaseExpr struct {
	Whens []*WhenClause `"CASE" @@+`
	Else  *Expr         `("ELSE" @@)? "END"`
}

type WhenClause struct {
	Cond *Expr `"WHEN" @@`
	Then *Expr `"THEN" @@`
}

type FuncCall struct {
	Name QualifiedName `@@ "("`
	Star bool          `( @"*"`
	Args []*Expr       `| (@@ ("," @@)*)? ) ")"`
	Over *OverClause   `@@?`
}

type OverClause struct {
	PartitionBy []*Expr      `"OVER" "(" ("PARTITION" "BY" @@ ("," @@)*)?`
	OrderBy     []*OrderItem `("ORDER" "BY" @@ ("," @@)*)? ")"`
}

type OrderItem struct {
	Expr *Expr  `@@`
	Dir  string `@("ASC" | "DESC")?`
}
