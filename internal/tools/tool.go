// Package tools provides directive extraction and the tool dispatcher.
//
// The reasoning process requests side effects by embedding bracket-delimited
// directives in its output, e.g. [EXEC]ls /tmp[/EXEC]. The dispatcher locates
// the directive, runs the matching executor, and always returns a structured
// Result — executor faults never escape as errors.
package tools

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/TeleQwen/TeleQwen/internal/config"
)

// Result is the structured outcome of one tool execution. It is serialized
// as JSON and fed back into the next reasoning turn.
type Result struct {
	Status    string `json:"status"`
	Output    string `json:"output"`
	Truncated bool   `json:"truncated"`
}

// Result status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

func success(output string, truncated bool) Result {
	return Result{Status: StatusSuccess, Output: output, Truncated: truncated}
}

func errorf(format string, args ...any) Result {
	return Result{Status: StatusError, Output: fmt.Sprintf(format, args...)}
}

// Kind identifies a tool directive. The set is closed: every kind the
// dispatcher understands is listed in the table below.
type Kind string

const (
	KindWebSearch   Kind = "WEB_SEARCH"
	KindWebRead     Kind = "WEB_READ"
	KindFileRead    Kind = "FILE_READ"
	KindFileWrite   Kind = "FILE_WRITE"
	KindListFiles   Kind = "LIST_FILES"
	KindExec        Kind = "EXEC"
	KindPython      Kind = "PYTHON"
	KindSelfModify  Kind = "SELF_MODIFY"
	KindSelfRestart Kind = "SELF_RESTART"
)

// directive describes one entry of the closed tool table.
type directive struct {
	Kind   Kind
	TwoArg bool // body is "first|second", split on the first separator
}

// Directives is the fixed extraction priority order. When a response contains
// several distinct directive types, the one listed first here wins regardless
// of where it appears in the text. Reorder with care: clients rely on the
// observable tie-break.
var Directives = []directive{
	{Kind: KindWebSearch},
	{Kind: KindWebRead},
	{Kind: KindFileRead},
	{Kind: KindFileWrite, TwoArg: true},
	{Kind: KindListFiles},
	{Kind: KindExec},
	{Kind: KindPython},
	{Kind: KindSelfModify, TwoArg: true},
	{Kind: KindSelfRestart},
}

// Extract scans text for the first directive in table-priority order.
// The body may span newlines. Returns ok=false when no directive is present.
func Extract(text string) (Kind, string, bool) {
	for _, d := range Directives {
		openTag := "[" + string(d.Kind) + "]"
		closeTag := "[/" + string(d.Kind) + "]"
		start := strings.Index(text, openTag)
		if start < 0 {
			continue
		}
		rest := text[start+len(openTag):]
		end := strings.Index(rest, closeTag)
		if end < 0 {
			continue
		}
		return d.Kind, strings.TrimSpace(rest[:end]), true
	}
	return "", "", false
}

// splitTwoArg splits a two-argument directive body on its first separator.
// A body without a separator is a format error.
func splitTwoArg(body string) (first, second string, ok bool) {
	i := strings.Index(body, "|")
	if i < 0 {
		return "", "", false
	}
	return strings.TrimSpace(body[:i]), body[i+1:], true
}

// Dispatcher executes directives. All executors confine their faults to the
// returned Result; there is no sandboxing of the requested side effect.
type Dispatcher struct {
	timeout       time.Duration
	maxOutput     int
	searchResults int
	pythonBinary  string
	workspace     string
	installRoot   string
	httpClient    *http.Client
	// exit is called (after a delay) by SELF_RESTART. Overridable in tests.
	exit func(code int)
}

// NewDispatcher creates a dispatcher from tool and path configuration.
func NewDispatcher(tc config.ToolsConfig, pc config.PathsConfig) *Dispatcher {
	timeout := tc.Timeout
	if timeout == 0 {
		timeout = 600 * time.Second
	}
	maxOutput := tc.MaxOutputLength
	if maxOutput == 0 {
		maxOutput = 4000
	}
	results := tc.SearchMaxResults
	if results == 0 {
		results = 8
	}
	python := tc.PythonBinary
	if python == "" {
		python = "python3"
	}
	return &Dispatcher{
		timeout:       timeout,
		maxOutput:     maxOutput,
		searchResults: results,
		pythonBinary:  python,
		workspace:     pc.Workspace,
		installRoot:   pc.InstallRoot,
		httpClient:    &http.Client{Timeout: 60 * time.Second},
		exit:          osExit,
	}
}

// Dispatch runs the directive and returns its structured result. The switch
// is exhaustive over the directive table; an unknown kind is an error result,
// not a fault.
func (d *Dispatcher) Dispatch(ctx context.Context, kind Kind, body string) Result {
	switch kind {
	case KindWebSearch:
		return d.webSearch(ctx, body)
	case KindWebRead:
		return d.webRead(ctx, body)
	case KindFileRead:
		return d.fileRead(body)
	case KindFileWrite:
		path, content, ok := splitTwoArg(body)
		if !ok {
			return errorf("FILE_WRITE requires 'filepath|content' format")
		}
		return d.fileWrite(path, content)
	case KindListFiles:
		if body == "" {
			body = "."
		}
		return d.listFiles(body)
	case KindExec:
		return d.execCommand(ctx, body)
	case KindPython:
		return d.runPython(ctx, body)
	case KindSelfModify:
		path, content, ok := splitTwoArg(body)
		if !ok {
			return errorf("SELF_MODIFY requires 'relative_path|content' format")
		}
		return d.selfModify(path, content)
	case KindSelfRestart:
		return d.selfRestart()
	default:
		return errorf("Unknown tool: %s", kind)
	}
}

// truncate caps text at max characters, appending an explicit marker.
func truncate(text string, max int) (string, bool) {
	if len(text) <= max {
		return text, false
	}
	return text[:max] + "\n...[Output Truncated]", true
}

func (d *Dispatcher) truncated(text string) (string, bool) {
	return truncate(text, d.maxOutput)
}
