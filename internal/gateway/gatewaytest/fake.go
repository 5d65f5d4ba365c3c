// Package gatewaytest provides a scripted gateway.Runner for tests.
package gatewaytest

import (
	"context"
	"strings"
	"sync"

	"github.com/kubeci-dev/ciprov/internal/gateway"
)

// Response is a canned result for commands matching a prefix.
type Response struct {
	Stdout   string
	Stderr   string
	ExitCode int

	// Handler, when set, replaces the canned output.
	Handler func(cmd gateway.Command) (gateway.Result, error)
}

type rule struct {
	prefix string
	resp   Response
}

// Fake records every command and answers from registered rules.
// Commands matching no rule succeed with empty output.
type Fake struct {
	mu    sync.Mutex
	rules []rule
	calls []gateway.Command
}

// New creates an empty fake runner.
func New() *Fake {
	return &Fake{}
}

// On registers a response for commands whose rendered argv starts with prefix.
// Rules registered later take precedence.
func (f *Fake) On(prefix string, resp Response) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, rule{prefix: prefix, resp: resp})
	return f
}

// Run implements gateway.Runner.
func (f *Fake) Run(_ context.Context, cmd gateway.Command) (gateway.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	var matched *Response
	line := cmd.String()
	for i := len(f.rules) - 1; i >= 0; i-- {
		if strings.HasPrefix(line, f.rules[i].prefix) {
			r := f.rules[i].resp
			matched = &r
			break
		}
	}
	f.mu.Unlock()

	if matched == nil {
		return gateway.Result{}, nil
	}
	if matched.Handler != nil {
		return matched.Handler(cmd)
	}

	res := gateway.Result{
		Stdout:   []byte(matched.Stdout),
		Stderr:   []byte(matched.Stderr),
		ExitCode: matched.ExitCode,
	}
	if matched.ExitCode != 0 {
		return res, &gateway.CommandError{
			Argv:     cmd.Argv(),
			ExitCode: matched.ExitCode,
			Stderr:   matched.Stderr,
		}
	}
	return res, nil
}

// Calls returns every command run so far, in order.
func (f *Fake) Calls() []gateway.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]gateway.Command(nil), f.calls...)
}

// CallsWithPrefix returns the rendered commands starting with prefix.
func (f *Fake) CallsWithPrefix(prefix string) []string {
	var out []string
	for _, c := range f.Calls() {
		if line := c.String(); strings.HasPrefix(line, prefix) {
			out = append(out, line)
		}
	}
	return out
}
