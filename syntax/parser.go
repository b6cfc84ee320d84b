package syntax

import (
	"fmt"
	"strings"

	"github.com/xaonfc/posish/arena"
	"github.com/xaonfc/posish/ast"
	"github.com/xaonfc/posish/token"
)

// AliasLookup is the contract the parser needs from the shell's alias
// table (owned by interp, spec §4.7) to perform alias substitution at
// command-word position (spec §4.2).
type AliasLookup interface {
	Lookup(name string) (repl string, ok bool)
}

// ParseError is a syntax error (spec §4.2, "Error reporting" and spec §7).
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string { return fmt.Sprintf("%d: %s", e.Line, e.Msg) }

// Parser is a one-token-lookahead recursive-descent parser over the
// grammar in spec §4.2.
type Parser struct {
	lex     *Lexer
	pending []token.Token // tokens injected by alias substitution, consumed before the lexer
	tok     token.Token

	aliases         AliasLookup
	nextWordAliasOK bool // set when the previous alias replacement ended in a space

	pendingHeredocs []*ast.Redirect // redirections awaiting their body, in order (spec §4.1/§4.2)

	arena *arena.Arena
	name  string
}

// NewParser returns a Parser for src. a may be nil; when non-nil it is
// Mark/Reset around each top-level statement (spec §3: "Lifetime is one
// top-level command (arena-scoped) for parser output").
func NewParser(src, name string, aliases AliasLookup, a *arena.Arena) *Parser {
	return &Parser{lex: NewLexer(src), aliases: aliases, arena: a, name: name}
}

func (p *Parser) errf(line int, format string, args ...any) error {
	return &ParseError{Line: line, Msg: fmt.Sprintf(format, args...)}
}

// advance pulls the next raw token, preferring anything alias substitution
// already queued up.
func (p *Parser) advance(cmdStart bool) error {
	if len(p.pending) > 0 {
		p.tok = p.pending[0]
		p.pending = p.pending[1:]
		return nil
	}
	t, err := p.lex.Next(cmdStart)
	if err != nil {
		return p.errf(p.lex.Line(), "%s", err)
	}
	p.tok = t
	if t.Kind == token.NEWLINE && len(p.pendingHeredocs) > 0 {
		for _, r := range p.pendingHeredocs {
			strip := r.Kind == ast.RedirHeredocStripTabs
			r.Hdoc = p.lex.ReadHeredocBody(heredocDelim(r.Target.Raw), strip)
		}
		p.pendingHeredocs = nil
	}
	return nil
}

// resolveAlias performs alias substitution on the current command-word
// token, chasing chained aliases (guarded against cycles) and propagating
// the "trailing space expands the next word too" rule (spec §4.2).
func (p *Parser) resolveAlias() error {
	seen := map[string]bool{}
	for p.aliases != nil && p.tok.Kind == token.WORD && !seen[p.tok.Value] {
		repl, ok := p.aliases.Lookup(p.tok.Value)
		if !ok {
			return nil
		}
		seen[p.tok.Value] = true
		trailingSpace := strings.HasSuffix(repl, " ") || strings.HasSuffix(repl, "\t")

		sub := NewLexer(repl)
		var toks []token.Token
		first := true
		for {
			t, err := sub.Next(first)
			if err != nil {
				return p.errf(p.tok.Line, "in alias %q: %s", p.tok.Value, err)
			}
			if t.Kind == token.EOF {
				break
			}
			toks = append(toks, t)
			first = false
		}
		if len(toks) == 0 {
			if err := p.advance(true); err != nil {
				return err
			}
			continue
		}
		p.pending = append(append([]token.Token{}, toks[1:]...), p.pending...)
		p.tok = toks[0]
		p.nextWordAliasOK = trailingSpace
	}
	return nil
}

// Parse parses a complete program (spec grammar rule "program").
func (p *Parser) Parse() (*ast.File, error) {
	f := &ast.File{Name: p.name}
	if err := p.advance(true); err != nil {
		return nil, err
	}
	for {
		for p.tok.Kind == token.NEWLINE {
			if err := p.advance(true); err != nil {
				return nil, err
			}
		}
		if p.tok.Kind == token.EOF {
			break
		}
		var mark arena.Mark
		if p.arena != nil {
			mark = p.arena.Mark()
		}
		stmt, err := p.statementList()
		if err != nil {
			return nil, err
		}
		if p.arena != nil {
			p.arena.Reset(mark)
		}
		f.Stmts = append(f.Stmts, &ast.Stmt{Cmd: stmt, SrcLine: stmt.Line()})
	}
	return f, nil
}

// statementList parses the "list" grammar rule up to the next top-level
// terminator, returning a Node (possibly a *ast.List chain).
func (p *Parser) statementList() (ast.Node, error) {
	left, err := p.andOr()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.tok.Kind == token.OPERATOR && p.tok.Op == token.Semicolon:
			line := p.tok.Line
			if err := p.advance(true); err != nil {
				return nil, err
			}
			if p.atStatementEnd() {
				return left, nil
			}
			right, err := p.andOr()
			if err != nil {
				return nil, err
			}
			left = &ast.List{Left: left, Right: right, SrcLine: line}
		case p.tok.Kind == token.OPERATOR && p.tok.Op == token.Amp:
			line := p.tok.Line
			if err := p.advance(true); err != nil {
				return nil, err
			}
			if p.atStatementEnd() {
				return &ast.List{Left: left, Async: true, SrcLine: line}, nil
			}
			right, err := p.andOr()
			if err != nil {
				return nil, err
			}
			left = &ast.List{Left: left, Right: right, Async: true, SrcLine: line}
		case p.tok.Kind == token.NEWLINE:
			return left, nil
		default:
			return left, nil
		}
	}
}

func (p *Parser) atStatementEnd() bool {
	if p.tok.Kind == token.EOF || p.tok.Kind == token.NEWLINE {
		return true
	}
	if p.tok.Kind == token.KEYWORD {
		switch p.tok.Value {
		case "}", "then", "else", "elif", "fi", "do", "done", "esac":
			return true
		}
	}
	if p.tok.Kind == token.OPERATOR && (p.tok.Op == token.RParen || p.tok.Op == token.DblSemicolon) {
		return true
	}
	return false
}

// andOr parses "and_or".
func (p *Parser) andOr() (ast.Node, error) {
	left, err := p.pipeline()
	if err != nil {
		return nil, err
	}
	for p.tok.Kind == token.OPERATOR && (p.tok.Op == token.AndAnd || p.tok.Op == token.OrOr) {
		or := p.tok.Op == token.OrOr
		line := p.tok.Line
		if err := p.advance(true); err != nil {
			return nil, err
		}
		p.skipNewlines()
		right, err := p.pipeline()
		if err != nil {
			return nil, err
		}
		left = &ast.AndOr{Left: left, Right: right, Or: or, SrcLine: line}
	}
	return left, nil
}

func (p *Parser) skipNewlines() error {
	for p.tok.Kind == token.NEWLINE {
		if err := p.advance(true); err != nil {
			return err
		}
	}
	return nil
}

// pipeline parses "pipeline".
func (p *Parser) pipeline() (ast.Node, error) {
	negated := false
	if p.tok.Kind == token.KEYWORD && p.tok.Value == "!" {
		negated = true
		if err := p.advance(true); err != nil {
			return nil, err
		}
	}
	line := p.tok.Line
	left, err := p.command()
	if err != nil {
		return nil, err
	}
	if p.tok.Kind == token.OPERATOR && p.tok.Op == token.Pipe {
		if err := p.advance(true); err != nil {
			return nil, err
		}
		p.skipNewlines()
		right, err := p.pipeline()
		if err != nil {
			return nil, err
		}
		return &ast.Pipeline{Negated: negated, Left: left, Right: right, SrcLine: line}, nil
	}
	if negated {
		return &ast.Pipeline{Negated: true, Left: left, SrcLine: line}, nil
	}
	return left, nil
}

// command parses "command": simple, compound, or a function definition.
// Per the grammar, `compound_command [ redir_list ]` allows trailing
// redirections after a compound command; those are folded into a wrapping
// *ast.Stmt since the compound node variants themselves carry no redirect
// field (spec §3's Data Model only gives Command one).
func (p *Parser) command() (ast.Node, error) {
	var (
		node ast.Node
		err  error
	)
	switch {
	case p.tok.Kind == token.KEYWORD && p.tok.Value == "if":
		node, err = p.ifClause()
	case p.tok.Kind == token.KEYWORD && p.tok.Value == "while":
		node, err = p.loopClause(false)
	case p.tok.Kind == token.KEYWORD && p.tok.Value == "until":
		node, err = p.loopClause(true)
	case p.tok.Kind == token.KEYWORD && p.tok.Value == "for":
		node, err = p.forClause()
	case p.tok.Kind == token.KEYWORD && p.tok.Value == "case":
		node, err = p.caseClause()
	case p.tok.Kind == token.KEYWORD && p.tok.Value == "{":
		node, err = p.groupClause()
	case p.tok.Kind == token.KEYWORD && p.tok.Value == "function":
		node, err = p.funcClauseKeyword()
	case p.tok.Kind == token.OPERATOR && p.tok.Op == token.LParen:
		node, err = p.subshellClause()
	case p.tok.Kind == token.WORD && p.looksLikeFuncDef():
		node, err = p.funcClauseShort()
	default:
		return p.simpleCommand()
	}
	if err != nil {
		return nil, err
	}
	redirs, err := p.trailingRedirs()
	if err != nil {
		return nil, err
	}
	if len(redirs) == 0 {
		return node, nil
	}
	return &ast.Stmt{Cmd: node, Redirs: redirs, SrcLine: node.Line()}, nil
}

// trailingRedirs consumes zero or more redirections immediately following a
// compound command (spec grammar: "compound_command [ redir_list ]").
func (p *Parser) trailingRedirs() ([]*ast.Redirect, error) {
	var out []*ast.Redirect
	for p.tok.Kind == token.IONUMBER || (p.tok.Kind == token.OPERATOR && isRedirOp(p.tok.Op)) {
		r, err := p.redirection()
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (p *Parser) looksLikeFuncDef() bool {
	// Heuristic lookahead would need 2 tokens; keep a tiny local peek by
	// scanning raw source without consuming state, since our Lexer/Parser
	// only support 1-token lookahead by contract.
	name := p.tok.Value
	rest := strings.TrimLeft(p.lex.src[p.lex.Pos():], " \t")
	return strings.HasPrefix(rest, "()") && isNameLike(name)
}

func isNameLike(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			continue
		}
		if i > 0 && r >= '0' && r <= '9' {
			continue
		}
		return false
	}
	return true
}

func (p *Parser) funcClauseShort() (ast.Node, error) {
	line := p.tok.Line
	name := p.tok.Value
	// consume NAME, then the literal "()" which the lexer hands back as
	// two operator tokens.
	if err := p.advance(false); err != nil {
		return nil, err
	}
	if err := p.expectOp(token.LParen); err != nil {
		return nil, err
	}
	if err := p.expectOp(token.RParen); err != nil {
		return nil, err
	}
	p.skipNewlines()
	body, err := p.compoundBody()
	if err != nil {
		return nil, err
	}
	return &ast.FuncDecl{Name: name, Body: body, SrcLine: line}, nil
}

func (p *Parser) funcClauseKeyword() (ast.Node, error) {
	line := p.tok.Line
	if err := p.advance(false); err != nil {
		return nil, err
	}
	if p.tok.Kind != token.WORD {
		return nil, p.errf(p.tok.Line, "syntax error near unexpected token %q", p.tok.Value)
	}
	name := p.tok.Value
	if err := p.advance(true); err != nil {
		return nil, err
	}
	if p.tok.Kind == token.OPERATOR && p.tok.Op == token.LParen {
		if err := p.expectOp(token.LParen); err != nil {
			return nil, err
		}
		if err := p.expectOp(token.RParen); err != nil {
			return nil, err
		}
	}
	p.skipNewlines()
	body, err := p.compoundBody()
	if err != nil {
		return nil, err
	}
	return &ast.FuncDecl{Name: name, Body: body, SrcLine: line}, nil
}

// compoundBody parses one compound command to serve as a function body or
// as the body of `{ ... }`/`( ... )`.
func (p *Parser) compoundBody() (ast.Node, error) {
	if p.tok.Kind == token.KEYWORD {
		switch p.tok.Value {
		case "if":
			return p.ifClause()
		case "while":
			return p.loopClause(false)
		case "until":
			return p.loopClause(true)
		case "for":
			return p.forClause()
		case "case":
			return p.caseClause()
		case "{":
			return p.groupClause()
		}
	}
	if p.tok.Kind == token.OPERATOR && p.tok.Op == token.LParen {
		return p.subshellClause()
	}
	return nil, p.errf(p.tok.Line, "syntax error near unexpected token %q", p.tok.Value)
}

func (p *Parser) expectOp(op token.Op) error {
	if p.tok.Kind != token.OPERATOR || p.tok.Op != op {
		return p.errf(p.tok.Line, "syntax error near unexpected token %q", p.tok.Value)
	}
	return p.advance(true)
}

func (p *Parser) expectKeyword(kw string) error {
	if p.tok.Kind != token.KEYWORD || p.tok.Value != kw {
		return p.errf(p.tok.Line, "syntax error near unexpected token %q, expected %q", p.tok.Value, kw)
	}
	return p.advance(true)
}

func (p *Parser) ifClause() (ast.Node, error) {
	line := p.tok.Line
	if err := p.advance(true); err != nil { // consume "if"
		return nil, err
	}
	cond, err := p.statementList()
	if err != nil {
		return nil, err
	}
	if err := p.sep(); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("then"); err != nil {
		return nil, err
	}
	then, err := p.statementList()
	if err != nil {
		return nil, err
	}
	if err := p.sep(); err != nil {
		return nil, err
	}
	var elseNode ast.Node
	switch {
	case p.tok.Kind == token.KEYWORD && p.tok.Value == "elif":
		p.tok.Value = "if" // reuse ifClause by pretending elif is if
		elseNode, err = p.ifClause()
		if err != nil {
			return nil, err
		}
		return &ast.If{Cond: cond, Then: then, Else: elseNode, SrcLine: line}, nil
	case p.tok.Kind == token.KEYWORD && p.tok.Value == "else":
		if err := p.advance(true); err != nil {
			return nil, err
		}
		elseNode, err = p.statementList()
		if err != nil {
			return nil, err
		}
		if err := p.sep(); err != nil {
			return nil, err
		}
	}
	if err := p.expectKeyword("fi"); err != nil {
		return nil, err
	}
	return &ast.If{Cond: cond, Then: then, Else: elseNode, SrcLine: line}, nil
}

// sep consumes statement separators (';' and/or newlines) between clauses.
func (p *Parser) sep() error {
	for p.tok.Kind == token.NEWLINE || (p.tok.Kind == token.OPERATOR && p.tok.Op == token.Semicolon) {
		if err := p.advance(true); err != nil {
			return err
		}
	}
	return nil
}

func (p *Parser) loopClause(until bool) (ast.Node, error) {
	line := p.tok.Line
	if err := p.advance(true); err != nil {
		return nil, err
	}
	cond, err := p.statementList()
	if err != nil {
		return nil, err
	}
	if err := p.sep(); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("do"); err != nil {
		return nil, err
	}
	body, err := p.statementList()
	if err != nil {
		return nil, err
	}
	if err := p.sep(); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("done"); err != nil {
		return nil, err
	}
	return &ast.Loop{Until: until, Cond: cond, Body: body, SrcLine: line}, nil
}

func (p *Parser) forClause() (ast.Node, error) {
	line := p.tok.Line
	if err := p.advance(false); err != nil {
		return nil, err
	}
	if p.tok.Kind != token.WORD {
		return nil, p.errf(p.tok.Line, "syntax error near unexpected token %q", p.tok.Value)
	}
	name := p.tok.Value
	if err := p.advance(true); err != nil {
		return nil, err
	}
	p.sep()
	var words []*ast.Word
	if p.tok.Kind == token.KEYWORD && p.tok.Value == "in" {
		if err := p.advance(false); err != nil {
			return nil, err
		}
		for p.tok.Kind == token.WORD {
			words = append(words, &ast.Word{Raw: p.tok.Value, SrcLine: p.tok.Line})
			if err := p.advance(false); err != nil {
				return nil, err
			}
		}
		if words == nil {
			words = []*ast.Word{}
		}
	}
	if err := p.sep(); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("do"); err != nil {
		return nil, err
	}
	body, err := p.statementList()
	if err != nil {
		return nil, err
	}
	if err := p.sep(); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("done"); err != nil {
		return nil, err
	}
	return &ast.For{VarName: name, Words: words, Body: body, SrcLine: line}, nil
}

func (p *Parser) caseClause() (ast.Node, error) {
	line := p.tok.Line
	if err := p.advance(false); err != nil {
		return nil, err
	}
	if p.tok.Kind != token.WORD {
		return nil, p.errf(p.tok.Line, "syntax error near unexpected token %q", p.tok.Value)
	}
	word := &ast.Word{Raw: p.tok.Value, SrcLine: p.tok.Line}
	if err := p.advance(true); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("in"); err != nil {
		return nil, err
	}
	p.sep()
	var items []ast.CaseItem
	for !(p.tok.Kind == token.KEYWORD && p.tok.Value == "esac") {
		if p.tok.Kind == token.OPERATOR && p.tok.Op == token.LParen {
			if err := p.advance(false); err != nil {
				return nil, err
			}
		}
		var pats []*ast.Word
		for {
			if p.tok.Kind != token.WORD {
				return nil, p.errf(p.tok.Line, "syntax error near unexpected token %q", p.tok.Value)
			}
			pats = append(pats, &ast.Word{Raw: p.tok.Value, SrcLine: p.tok.Line})
			if err := p.advance(false); err != nil {
				return nil, err
			}
			if p.tok.Kind == token.OPERATOR && p.tok.Op == token.Pipe {
				if err := p.advance(false); err != nil {
					return nil, err
				}
				continue
			}
			break
		}
		if err := p.expectOp(token.RParen); err != nil {
			return nil, err
		}
		p.sep()
		var body ast.Node
		if !(p.tok.Kind == token.OPERATOR && p.tok.Op == token.DblSemicolon) &&
			!(p.tok.Kind == token.KEYWORD && p.tok.Value == "esac") {
			var err error
			body, err = p.statementList()
			if err != nil {
				return nil, err
			}
		}
		items = append(items, ast.CaseItem{Patterns: pats, Body: body})
		if p.tok.Kind == token.OPERATOR && p.tok.Op == token.DblSemicolon {
			if err := p.advance(true); err != nil {
				return nil, err
			}
		}
		p.sep()
	}
	if err := p.expectKeyword("esac"); err != nil {
		return nil, err
	}
	return &ast.Case{Word: word, Items: items, SrcLine: line}, nil
}

func (p *Parser) subshellClause() (ast.Node, error) {
	line := p.tok.Line
	if err := p.advance(true); err != nil {
		return nil, err
	}
	body, err := p.statementList()
	if err != nil {
		return nil, err
	}
	if err := p.expectOp(token.RParen); err != nil {
		return nil, err
	}
	return &ast.Subshell{Body: body, SrcLine: line}, nil
}

func (p *Parser) groupClause() (ast.Node, error) {
	line := p.tok.Line
	if err := p.advance(true); err != nil {
		return nil, err
	}
	body, err := p.statementList()
	if err != nil {
		return nil, err
	}
	if p.tok.Kind != token.KEYWORD || p.tok.Value != "}" {
		return nil, p.errf(p.tok.Line, "syntax error near unexpected token %q, expected '}'", p.tok.Value)
	}
	if err := p.advance(false); err != nil {
		return nil, err
	}
	return &ast.Group{Body: body, SrcLine: line}, nil
}

// simpleCommand parses "simple": leading assignments/redirs, then a
// command word and trailing words/assignments/redirs.
func (p *Parser) simpleCommand() (ast.Node, error) {
	cmd := &ast.Command{SrcLine: p.tok.Line}
	sawCommandWord := false

	for {
		switch {
		case p.tok.Kind == token.IONUMBER:
			r, err := p.redirection()
			if err != nil {
				return nil, err
			}
			cmd.Redirs = append(cmd.Redirs, r)
			continue
		case p.tok.Kind == token.OPERATOR && isRedirOp(p.tok.Op):
			r, err := p.redirection()
			if err != nil {
				return nil, err
			}
			cmd.Redirs = append(cmd.Redirs, r)
			continue
		case p.tok.Kind == token.WORD:
			if !sawCommandWord {
				if name, val, ok := splitAssignment(p.tok.Value); ok {
					line := p.tok.Line
					if err := p.advance(false); err != nil {
						return nil, err
					}
					cmd.Assigns = append(cmd.Assigns, &ast.Assign{Name: name, Value: val, SrcLine: line})
					continue
				}
				if err := p.resolveAlias(); err != nil {
					return nil, err
				}
				if p.tok.Kind != token.WORD {
					break
				}
				cmd.Args = append(cmd.Args, &ast.Word{Raw: p.tok.Value, SrcLine: p.tok.Line})
				sawCommandWord = true
				if err := p.advance(false); err != nil {
					return nil, err
				}
				if p.nextWordAliasOK {
					p.nextWordAliasOK = false
					if err := p.resolveAlias(); err != nil {
						return nil, err
					}
				}
				continue
			}
			cmd.Args = append(cmd.Args, &ast.Word{Raw: p.tok.Value, SrcLine: p.tok.Line})
			if err := p.advance(false); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	if len(cmd.Args) == 0 && len(cmd.Assigns) == 0 && len(cmd.Redirs) == 0 {
		return nil, p.errf(p.tok.Line, "syntax error near unexpected token %q", tokenText(p.tok))
	}
	return cmd, nil
}

func tokenText(t token.Token) string {
	if t.Kind == token.EOF {
		return "newline"
	}
	return t.Value
}

func isRedirOp(op token.Op) bool {
	switch op {
	case token.Less, token.Great, token.DGreat, token.ClobGreat,
		token.LessAmp, token.GreatAmp, token.LessGreat, token.DLess, token.DLessDash:
		return true
	}
	return false
}

// redirection parses one redirection, including consuming its heredoc body
// immediately after the command's terminating newline (spec §4.2).
func (p *Parser) redirection() (*ast.Redirect, error) {
	ioNum := -1
	line := p.tok.Line
	if p.tok.Kind == token.IONUMBER {
		n := 0
		fmt.Sscanf(p.tok.Value, "%d", &n)
		ioNum = n
		if err := p.advance(false); err != nil {
			return nil, err
		}
	}
	op := p.tok.Op
	if err := p.advance(false); err != nil {
		return nil, err
	}
	if p.tok.Kind != token.WORD {
		return nil, p.errf(p.tok.Line, "syntax error near unexpected token %q", tokenText(p.tok))
	}
	target := &ast.Word{Raw: p.tok.Value, SrcLine: p.tok.Line}

	r := &ast.Redirect{IONumber: ioNum, Target: target, SrcLine: line}
	switch op {
	case token.Less:
		r.Kind = ast.RedirFileIn
		if ioNum < 0 {
			r.IONumber = 0
		}
	case token.Great:
		r.Kind = ast.RedirFileOut
		if ioNum < 0 {
			r.IONumber = 1
		}
	case token.ClobGreat:
		r.Kind = ast.RedirFileOutClobber
		if ioNum < 0 {
			r.IONumber = 1
		}
	case token.DGreat:
		r.Kind = ast.RedirFileAppend
		if ioNum < 0 {
			r.IONumber = 1
		}
	case token.LessAmp:
		r.Kind = ast.RedirDupIn
		if ioNum < 0 {
			r.IONumber = 0
		}
		parseDupTarget(r, target.Raw)
	case token.GreatAmp:
		r.Kind = ast.RedirDupOut
		if ioNum < 0 {
			r.IONumber = 1
		}
		parseDupTarget(r, target.Raw)
	case token.LessGreat:
		r.Kind = ast.RedirRW
		if ioNum < 0 {
			r.IONumber = 0
		}
	case token.DLess, token.DLessDash:
		if op == token.DLessDash {
			r.Kind = ast.RedirHeredocStripTabs
		} else {
			r.Kind = ast.RedirHeredoc
		}
		if ioNum < 0 {
			r.IONumber = 0
		}
		p.pendingHeredocs = append(p.pendingHeredocs, r)
	}
	if err := p.advance(false); err != nil {
		return nil, err
	}
	return r, nil
}

func parseDupTarget(r *ast.Redirect, raw string) {
	if raw == "-" {
		r.DupClose = true
		return
	}
	n := 0
	if _, err := fmt.Sscanf(raw, "%d", &n); err == nil {
		r.DupFD = n
	}
}

// heredocDelim strips one layer of quoting from a heredoc delimiter word so
// `<<EOF`, `<<"EOF"`, and `<<'EOF'` all compare against the literal text
// "EOF" (whether the delimiter was quoted only affects whether the body is
// itself subject to expansion, which the expander consults Target.Raw for).
func heredocDelim(raw string) string {
	if len(raw) >= 2 {
		if (raw[0] == '"' && raw[len(raw)-1] == '"') || (raw[0] == '\'' && raw[len(raw)-1] == '\'') {
			return raw[1 : len(raw)-1]
		}
	}
	return raw
}

func splitAssignment(word string) (name string, val *ast.Word, ok bool) {
	i := strings.IndexByte(word, '=')
	if i <= 0 {
		return "", nil, false
	}
	n := word[:i]
	if !isNameLike(n) {
		return "", nil, false
	}
	v := word[i+1:]
	return n, &ast.Word{Raw: v}, true
}
