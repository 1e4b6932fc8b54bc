package sqlcheck

import (
	"context"
	"errors"
	"runtime"
	"strings"

	"github.com/alecthomas/participle/v2"
	"golang.org/x/sync/errgroup"
)

// Input is one generated statement handed to the validator.
type Input struct {
	ID   string
	Kind string
	SQL  string
}

// Diagnostic pinpoints one parse failure. Line and Column are 1-based within
// the statement text as the caller supplied it.
type Diagnostic struct {
	StatementID string `json:"statement_id"`
	Line        int    `json:"line"`
	Column      int    `json:"column"`
	Message     string `json:"message"`
}

// StatementResult is the per-input verdict: the input's identity, whether it
// parsed, and its diagnostics (empty when OK).
type StatementResult struct {
	StatementID string       `json:"statement_id"`
	Kind        string       `json:"kind"`
	OK          bool         `json:"ok"`
	Diagnostics []Diagnostic `json:"diagnostics"`
}

// Report is the full validation outcome: every input checked, every failure
// reported. Validation never stops at the first bad statement. Results holds
// one entry per input in input order; Diagnostics is the same set flattened.
type Report struct {
	Checked     int
	Results     []StatementResult
	Diagnostics []Diagnostic
}

func (r *Report) OK() bool { return len(r.Diagnostics) == 0 }

// Add appends one input's verdict, keeping Results and Diagnostics in step.
func (r *Report) Add(in Input, diags []Diagnostic) {
	r.Checked++
	r.Results = append(r.Results, StatementResult{
		StatementID: in.ID,
		Kind:        in.Kind,
		OK:          len(diags) == 0,
		Diagnostics: diags,
	})
	r.Diagnostics = append(r.Diagnostics, diags...)
}

// ValidateStatements checks every input concurrently and returns diagnostics
// in input order regardless of which worker finished first.
func ValidateStatements(ctx context.Context, inputs []Input, workers int) *Report {
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}
	perInput := make([][]Diagnostic, len(inputs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, in := range inputs {
		i, in := i, in
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			perInput[i] = CheckStatement(in.ID, in.SQL)
			return nil
		})
	}
	_ = g.Wait()

	rep := &Report{}
	for i, in := range inputs {
		rep.Add(in, perInput[i])
	}
	return rep
}

// CheckStatement validates one statement blob. Statement-set wrappers are
// unwrapped, the blob is split on top-level semicolons, and connector option
// blocks are removed before each piece is parsed.
func CheckStatement(id, sql string) []Diagnostic {
	var diags []Diagnostic
	for _, stmt := range SplitStatements(UnwrapStatementSet(sql)) {
		cleaned := StripConnectorOptions(stmt)
		if strings.TrimSpace(StripComments(cleaned)) == "" {
			continue
		}
		if _, err := sqlParser.ParseString("", cleaned); err != nil {
			diags = append(diags, diagnose(id, err))
		}
	}
	return diags
}

const probePrefix = "SELECT "

// ValidateExpression checks a bare scalar expression by wrapping it in a
// synthetic single-column SELECT. Columns on the first line are shifted back
// so diagnostics point into the caller's expression text.
func ValidateExpression(id, expr string) []Diagnostic {
	probe := probePrefix + expr + " AS probe_expr"
	_, err := sqlParser.ParseString("", probe)
	if err == nil {
		return nil
	}
	d := diagnose(id, err)
	if d.Line == 1 {
		d.Column -= len(probePrefix)
		if d.Column < 1 {
			d.Column = 1
		}
	}
	return []Diagnostic{d}
}

func diagnose(id string, err error) Diagnostic {
	var perr participle.Error
	if errors.As(err, &perr) {
		pos := perr.Position()
		return Diagnostic{StatementID: id, Line: pos.Line, Column: pos.Column, Message: perr.Message()}
	}
	return Diagnostic{StatementID: id, Line: 1, Column: 1, Message: err.Error()}
}

// UnwrapStatementSet strips an EXECUTE STATEMENT SET BEGIN ... END wrapper,
// leaving the inner statements. Anything not shaped like a wrapper comes back
// unchanged.
func UnwrapStatementSet(sql string) string {
	rest, ok := eatKeywords(strings.TrimSpace(sql), "EXECUTE", "STATEMENT", "SET", "BEGIN")
	if !ok {
		return sql
	}
	t := strings.TrimSpace(rest)
	t = strings.TrimSpace(strings.TrimSuffix(t, ";"))
	if len(t) >= 3 && strings.EqualFold(t[len(t)-3:], "END") &&
		(len(t) == 3 || isWordBoundary(t[len(t)-4])) {
		return t[:len(t)-3]
	}
	return sql
}

func eatKeywords(s string, words ...string) (string, bool) {
	for _, w := range words {
		s = strings.TrimLeft(s, " \t\r\n")
		if len(s) < len(w) || !strings.EqualFold(s[:len(w)], w) {
			return "", false
		}
		if len(s) > len(w) && !isWordBoundary(s[len(w)]) {
			return "", false
		}
		s = s[len(w):]
	}
	return s, true
}

func isWordBoundary(b byte) bool {
	return !(b == '_' || b >= '0' && b <= '9' || b >= 'A' && b <= 'Z' || b >= 'a' && b <= 'z')
}

// SplitStatements splits on semicolons that sit outside string literals and
// comments. Empty pieces are dropped.
func SplitStatements(sql string) []string {
	var out []string
	var b strings.Builder
	flush := func() {
		if s := strings.TrimSpace(b.String()); s != "" {
			out = append(out, s)
		}
		b.Reset()
	}

	const (
		plain = iota
		inString
		inLineComment
		inBlockComment
	)
	state := plain
	for i := 0; i < len(sql); i++ {
		c := sql[i]
		switch state {
		case inString:
			b.WriteByte(c)
			if c == '\'' {
				if i+1 < len(sql) && sql[i+1] == '\'' {
					b.WriteByte('\'')
					i++
				} else {
					state = plain
				}
			}
		case inLineComment:
			b.WriteByte(c)
			if c == '\n' {
				state = plain
			}
		case inBlockComment:
			b.WriteByte(c)
			if c == '*' && i+1 < len(sql) && sql[i+1] == '/' {
				b.WriteByte('/')
				i++
				state = plain
			}
		default:
			switch {
			case c == ';':
				flush()
			case c == '\'':
				b.WriteByte(c)
				state = inString
			case c == '-' && i+1 < len(sql) && sql[i+1] == '-':
				b.WriteString("--")
				i++
				state = inLineComment
			case c == '/' && i+1 < len(sql) && sql[i+1] == '*':
				b.WriteString("/*")
				i++
				state = inBlockComment
			default:
				b.WriteByte(c)
			}
		}
	}
	flush()
	return out
}

// StripConnectorOptions removes every WITH ( ... ) connector block. The
// dialect has no common table expressions, so a WITH outside quotes is always
// an options block; its parentheses are balanced quote-aware.
func StripConnectorOptions(sql string) string {
	var b strings.Builder
	inString := false
	for i := 0; i < len(sql); {
		c := sql[i]
		if inString {
			b.WriteByte(c)
			if c == '\'' {
				inString = false
			}
			i++
			continue
		}
		if c == '\'' {
			b.WriteByte(c)
			inString = true
			i++
			continue
		}
		if (c == 'W' || c == 'w') && hasKeywordAt(sql, i, "WITH") {
			j := i + 4
			for j < len(sql) && isSpace(sql[j]) {
				j++
			}
			if j < len(sql) && sql[j] == '(' {
				end, ok := matchParen(sql, j)
				if ok {
					i = end + 1
					continue
				}
			}
		}
		b.WriteByte(c)
		i++
	}
	return b.String()
}

func hasKeywordAt(s string, i int, kw string) bool {
	if i+len(kw) > len(s) || !strings.EqualFold(s[i:i+len(kw)], kw) {
		return false
	}
	if i > 0 && !isWordBoundary(s[i-1]) {
		return false
	}
	return i+len(kw) == len(s) || isWordBoundary(s[i+len(kw)])
}

// matchParen returns the index of the parenthesis closing the one at open,
// skipping string literals.
func matchParen(s string, open int) (int, bool) {
	depth := 0
	inString := false
	for i := open; i < len(s); i++ {
		c := s[i]
		if inString {
			if c == '\'' {
				inString = false
			}
			continue
		}
		switch c {
		case '\'':
			inString = true
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// StripComments removes line and block comments, quote-aware.
func StripComments(sql string) string {
	var b strings.Builder
	inString := false
	for i := 0; i < len(sql); i++ {
		c := sql[i]
		if inString {
			b.WriteByte(c)
			if c == '\'' {
				inString = false
			}
			continue
		}
		switch {
		case c == '\'':
			b.WriteByte(c)
			inString = true
		case c == '-' && i+1 < len(sql) && sql[i+1] == '-':
			for i < len(sql) && sql[i] != '\n' {
				i++
			}
			if i < len(sql) {
				b.WriteByte('\n')
			}
		case c == '/' && i+1 < len(sql) && sql[i+1] == '*':
			i += 2
			for i+1 < len(sql) && !(sql[i] == '*' && sql[i+1] == '/') {
				i++
			}
			i++
			b.WriteByte(' ')
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Flatten collapses a statement to one line for CSV reporting.
func Flatten(sql string) string {
	return strings.Join(strings.Fields(sql), " ")
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\r' || b == '\n'
}
