// Package checker contains the structural pass of the typechecker: it reads
// source files, lowers every method definition to a control-flow graph, and
// reports the shape errors that do not need whole-program inference. The
// deeper inference passes plug in behind the same Check entry point.
package checker

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sift-lang/sift/cfg"
)

// Diagnostic is a single reported problem in a file.
type Diagnostic struct {
	Path    string `json:"path"`
	Line    int    `json:"line"`
	Message string `json:"message"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s:%d: %s", d.Path, d.Line, d.Message)
}

// Result is the outcome of checking one file.
type Result struct {
	Path        string
	Diagnostics []Diagnostic
	Graphs      []*cfg.CFG
}

// Checker runs the per-file pass. Safe for use from multiple worker
// goroutines; it holds no mutable state.
type Checker struct {
	fs     afero.Fs
	logger logrus.FieldLogger
}

// New returns a Checker reading sources from fs.
func New(fs afero.Fs, logger logrus.FieldLogger) *Checker {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Checker{fs: fs, logger: logger.WithField("component", "checker")}
}

// Check processes paths in order, polling canceled between files and
// stopping early, with the results so far, once it reports true. canceled
// may be nil for non-cancelable runs.
func (c *Checker) Check(paths []string, canceled func() bool) []Result {
	results := make([]Result, 0, len(paths))
	for _, path := range paths {
		if canceled != nil && canceled() {
			c.logger.WithField("remaining", len(paths)-len(results)).Debug("check canceled, returning early")
			return results
		}
		results = append(results, c.CheckFile(path))
	}
	return results
}

// CheckFile runs the structural pass over a single file. Read errors are
// diagnostics, not failures: a file that vanished mid-edit is an everyday
// language-server condition.
func (c *Checker) CheckFile(path string) Result {
	contents, err := afero.ReadFile(c.fs, path)
	if err != nil {
		return Result{Path: path, Diagnostics: []Diagnostic{
			{Path: path, Line: 0, Message: fmt.Sprintf("cannot read file: %v", err)},
		}}
	}
	return c.checkContents(path, contents)
}

type scope struct {
	kind string // "class", "module" or "def"
	name string
	line int
}

func (c *Checker) checkContents(path string, contents []byte) Result {
	res := Result{Path: path}

	var stack []scope
	var owner []string // enclosing class/module names
	var body []string  // collected lines of the innermost def

	scanner := bufio.NewScanner(bytes.NewReader(contents))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "class "):
			stack = append(stack, scope{kind: "class", name: strings.Fields(line)[1], line: lineNo})
			owner = append(owner, strings.Fields(line)[1])
		case strings.HasPrefix(line, "module "):
			stack = append(stack, scope{kind: "module", name: strings.Fields(line)[1], line: lineNo})
			owner = append(owner, strings.Fields(line)[1])
		case strings.HasPrefix(line, "def "):
			name := methodName(line)
			if len(stack) > 0 && stack[len(stack)-1].kind == "def" {
				res.Diagnostics = append(res.Diagnostics, Diagnostic{
					Path: path, Line: lineNo,
					Message: fmt.Sprintf("method %s defined inside method %s", name, stack[len(stack)-1].name),
				})
			}
			stack = append(stack, scope{kind: "def", name: name, line: lineNo})
			body = body[:0]
		case line == "end":
			if len(stack) == 0 {
				res.Diagnostics = append(res.Diagnostics, Diagnostic{
					Path: path, Line: lineNo, Message: "unexpected end",
				})
				continue
			}
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			switch top.kind {
			case "def":
				res.Graphs = append(res.Graphs, lowerMethod(symbolName(owner, top.name), body))
				body = nil
			default:
				owner = owner[:len(owner)-1]
			}
		default:
			if len(stack) > 0 && stack[len(stack)-1].kind == "def" && line != "" {
				body = append(body, line)
			}
		}
	}

	for i := len(stack) - 1; i >= 0; i-- {
		res.Diagnostics = append(res.Diagnostics, Diagnostic{
			Path: path, Line: stack[i].line,
			Message: fmt.Sprintf("%s %s is never closed", stack[i].kind, stack[i].name),
		})
	}
	return res
}

func methodName(line string) string {
	rest := strings.TrimPrefix(line, "def ")
	if i := strings.IndexAny(rest, "( "); i >= 0 {
		return rest[:i]
	}
	return rest
}

func symbolName(owner []string, method string) string {
	if len(owner) == 0 {
		return method
	}
	return strings.Join(owner, "::") + "#" + method
}

// lowerMethod lowers a method body to a single-block CFG. Straight-line
// bodies are by far the common case; branchy methods get their shape from
// the real parser, which is not part of the structural pass.
func lowerMethod(symbol string, body []string) *cfg.CFG {
	block := &cfg.Block{ID: 0}
	ret := "nil"
	for i, line := range body {
		dest := "t" + strconv.Itoa(i)
		if lhs, rhs, ok := strings.Cut(line, " = "); ok && !strings.ContainsAny(lhs, " \t") {
			dest = strings.TrimSpace(lhs)
			line = strings.TrimSpace(rhs)
		}
		block.Bindings = append(block.Bindings, cfg.Binding{Dest: dest, Instr: lowerExpr(line)})
		ret = dest
	}
	block.Term = cfg.Ret{Value: ret}
	return &cfg.CFG{Symbol: symbol, Blocks: []*cfg.Block{block}}
}

func lowerExpr(expr string) cfg.Instruction {
	if n, err := strconv.ParseInt(expr, 10, 64); err == nil {
		return cfg.IntLit{Value: n}
	}
	if len(expr) >= 2 && expr[0] == '"' && expr[len(expr)-1] == '"' {
		return cfg.StrLit{Value: expr[1 : len(expr)-1]}
	}
	if recv, rest, ok := strings.Cut(expr, "."); ok && !strings.Contains(recv, " ") {
		method, args := splitCall(rest)
		return cfg.Send{Recv: recv, Method: method, Args: args}
	}
	if method, args := splitCall(expr); len(args) > 0 || strings.Contains(expr, "(") {
		return cfg.Send{Recv: "self", Method: method, Args: args}
	}
	return cfg.Ident{Name: expr}
}

func splitCall(expr string) (string, []string) {
	name, rest, ok := strings.Cut(expr, "(")
	if !ok {
		if method, arg, ok := strings.Cut(expr, " "); ok {
			return method, strings.Fields(arg)
		}
		return expr, nil
	}
	rest = strings.TrimSuffix(strings.TrimSpace(rest), ")")
	if rest == "" {
		return name, nil
	}
	args := strings.Split(rest, ",")
	for i := range args {
		args[i] = strings.TrimSpace(args[i])
	}
	return name, args
}
