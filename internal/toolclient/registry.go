package toolclient

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/yaya56vv/cortex/internal/catalog"
)

// Registry is the static tool-name → client table. It is immutable after
// construction and safe for concurrent use.
type Registry struct {
	clients map[string]Client
	order   []string
}

// NewRegistry indexes the given clients by tool name. A later client for the
// same tool replaces an earlier one.
func NewRegistry(clients ...Client) *Registry {
	r := &Registry{clients: make(map[string]Client, len(clients))}
	for _, c := range clients {
		tool := c.Tool()
		if _, seen := r.clients[tool]; !seen {
			r.order = append(r.order, tool)
		}
		r.clients[tool] = c
	}
	return r
}

// Resolve returns the client for a tool name.
func (r *Registry) Resolve(tool string) (Client, bool) {
	c, ok := r.clients[tool]
	return c, ok
}

// Tools returns registered tool names in registration order.
func (r *Registry) Tools() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Call dispatches one action through the registered client. A tool with no
// client, or an action the catalog does not declare, yields a synthesized
// "unknown_action" failure rather than a crash.
func (r *Registry) Call(ctx context.Context, tool, action string, args map[string]any) Result {
	if _, ok := catalog.Lookup(tool, action); !ok {
		return Failure(action, KindUnknownAction, fmt.Sprintf("no such action %s.%s", tool, action))
	}
	client, ok := r.clients[tool]
	if !ok {
		return Failure(action, KindUnknownAction, fmt.Sprintf("no client registered for tool %q", tool))
	}
	return client.Call(ctx, action, args)
}

// maxHealthProbes bounds how many health probes run concurrently.
const maxHealthProbes = 4

// HealthAll probes every registered client in parallel and returns a
// tool → health map.
func (r *Registry) HealthAll(ctx context.Context) map[string]Health {
	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		out = make(map[string]Health, len(r.clients))
	)
	sem := make(chan struct{}, maxHealthProbes)
	for tool, client := range r.clients {
		wg.Add(1)
		go func(tool string, client Client) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			h := client.Health(ctx)
			mu.Lock()
			out[tool] = h
			mu.Unlock()
		}(tool, client)
	}
	wg.Wait()
	return out
}

// Mismatch reports drift between the catalog and the registry: catalog tools
// with no client, and clients serving tools the catalog does not declare.
type Mismatch struct {
	// MissingClients lists catalog tools with no registered client.
	MissingClients []string `json:"missing_clients,omitempty"`

	// UnknownTools lists registered clients whose tool is not in the catalog.
	UnknownTools []string `json:"unknown_tools,omitempty"`
}

// Empty reports whether catalog and registry agree.
func (m Mismatch) Empty() bool {
	return len(m.MissingClients) == 0 && len(m.UnknownTools) == 0
}

// CatalogMismatch compares the registry against the catalog. A mismatch is
// reported at health aggregation but never prevents boot.
func (r *Registry) CatalogMismatch() Mismatch {
	var m Mismatch
	for _, tool := range catalog.Tools() {
		if _, ok := r.clients[tool]; !ok {
			m.MissingClients = append(m.MissingClients, tool)
		}
	}
	for tool := range r.clients {
		if !catalog.Has(tool) {
			m.UnknownTools = append(m.UnknownTools, tool)
		}
	}
	sort.Strings(m.UnknownTools)
	return m
}
