package sandbox

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// NotFoundError reports a command name that is neither a shell builtin,
// a function defined by the script, nor an executable on PATH.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("command %q not found", e.Name)
}

// SyntaxError reports a command line the shell parser rejects.
type SyntaxError struct {
	Err error
}

func (e *SyntaxError) Error() string {
	return "could not parse command: " + e.Err.Error()
}

func (e *SyntaxError) Unwrap() error { return e.Err }

// preflight parses command and, when it is a single simple command with a
// literal name, checks that the name resolves. Lists, pipelines and
// compound commands are left to the shell, which reports a missing
// program with exit status 127.
func preflight(command string, lookPath func(string) (string, error)) error {
	prog, err := syntax.NewParser(syntax.Variant(syntax.LangBash)).Parse(strings.NewReader(command), "")
	if err != nil {
		return &SyntaxError{Err: err}
	}
	if len(prog.Stmts) != 1 {
		return nil
	}
	stmt := prog.Stmts[0]
	if stmt.Negated || stmt.Background || stmt.Coprocess {
		return nil
	}
	call, ok := stmt.Cmd.(*syntax.CallExpr)
	if !ok || len(call.Args) == 0 {
		return nil
	}
	name := call.Args[0].Lit()
	if name == "" || interp.IsBuiltin(name) || isKeyword(name) {
		return nil
	}
	if _, err := lookPath(name); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, exec.ErrDot) || strings.Contains(name, "/") {
			return &NotFoundError{Name: name}
		}
	}
	return nil
}

// missingName returns the first literal command name in command that does
// not resolve, for reporting an exit status of 127. It falls back to the
// first word when every name resolves.
func missingName(command string, lookPath func(string) (string, error)) string {
	fallback := command
	if fields := strings.Fields(command); len(fields) > 0 {
		fallback = fields[0]
	}
	prog, err := syntax.NewParser(syntax.Variant(syntax.LangBash)).Parse(strings.NewReader(command), "")
	if err != nil {
		return fallback
	}
	funcs := make(map[string]bool)
	syntax.Walk(prog, func(node syntax.Node) bool {
		if fn, ok := node.(*syntax.FuncDecl); ok && fn.Name != nil {
			funcs[fn.Name.Value] = true
		}
		return true
	})
	name := ""
	syntax.Walk(prog, func(node syntax.Node) bool {
		if name != "" {
			return false
		}
		call, ok := node.(*syntax.CallExpr)
		if !ok || len(call.Args) == 0 {
			return true
		}
		lit := call.Args[0].Lit()
		if lit == "" || funcs[lit] || interp.IsBuiltin(lit) || isKeyword(lit) {
			return true
		}
		if _, err := lookPath(lit); err != nil {
			name = lit
		}
		return true
	})
	if name == "" {
		return fallback
	}
	return name
}

// isKeyword covers reserved words that can appear in command position
// without forming a compound command in the parsed tree.
func isKeyword(name string) bool {
	switch name {
	case "!", "[[", "]]", "{", "}", "time", "coproc":
		return true
	}
	return false
}
