// Package aitest provides a scripted ai.Oracle for tests.
package aitest

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/david/casematch/internal/ai"
)

// ErrOracleDown is returned by Failing.
var ErrOracleDown = errors.New("oracle unavailable")

// Call records one Complete invocation.
type Call struct {
	System   string
	Messages []ai.Message
	Options  ai.Options
}

// Prompt returns the concatenated message contents.
func (c Call) Prompt() string {
	parts := make([]string, 0, len(c.Messages))
	for _, m := range c.Messages {
		parts = append(parts, m.Content)
	}
	return strings.Join(parts, "\n")
}

// Oracle answers through Respond and records every call. It is safe for concurrent use.
type Oracle struct {
	Respond func(call Call) (string, error)

	mu    sync.Mutex
	calls []Call
}

func (o *Oracle) Complete(ctx context.Context, system string, messages []ai.Message, opts ai.Options) (string, error) {
	call := Call{System: system, Messages: messages, Options: opts}
	o.mu.Lock()
	o.calls = append(o.calls, call)
	o.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if o.Respond == nil {
		return "", nil
	}
	return o.Respond(call)
}

func (o *Oracle) Calls() []Call {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Call(nil), o.calls...)
}

// Static always replies with reply.
func Static(reply string) *Oracle {
	return &Oracle{Respond: func(Call) (string, error) { return reply, nil }}
}

// Failing always fails.
func Failing() *Oracle {
	return &Oracle{Respond: func(Call) (string, error) { return "", ErrOracleDown }}
}

// Routes replies with the first value whose key occurs in the system prompt or
// messages, falling back to def.
func Routes(def string, routes map[string]string) *Oracle {
	return &Oracle{Respond: func(call Call) (string, error) {
		text := call.System + "\n" + call.Prompt()
		for key, reply := range routes {
			if strings.Contains(text, key) {
				return reply, nil
			}
		}
		return def, nil
	}}
}
