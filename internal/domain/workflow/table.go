package workflow

import (
	"fmt"
	"sort"

	"github.com/opsledger/workflow-engine/internal/domain/entity"
)

// Side fields a transition rule may require before entering the target status.
const (
	FieldRejectionReason = "rejection_reason"
	FieldPaidDate        = "paid_date"
)

// Rule is the allow predicate plus required-fields list for one edge
type Rule struct {
	roles            map[entity.Role]bool
	denySelfApproval bool
	requiredFields   []string
	clearsRejection  bool
}

// RuleOption configures a transition rule
type RuleOption func(*Rule)

// Roles restricts the edge to the given roles. The admin role is always
// permitted regardless of the list.
func Roles(roles ...entity.Role) RuleOption {
	return func(r *Rule) {
		for _, role := range roles {
			r.roles[role] = true
		}
	}
}

// DenySelfApproval rejects the edge when the actor owns the record, unless
// the actor holds the admin role
func DenySelfApproval() RuleOption {
	return func(r *Rule) {
		r.denySelfApproval = true
	}
}

// Requires adds a side field that must be present before entering the target
func Requires(field string) RuleOption {
	return func(r *Rule) {
		r.requiredFields = append(r.requiredFields, field)
	}
}

// ClearsRejection clears the rejection reason on the way out of rejected
func ClearsRejection() RuleOption {
	return func(r *Rule) {
		r.clearsRejection = true
	}
}

// RequiredFields returns the side fields this edge demands
func (r *Rule) RequiredFields() []string {
	return append([]string(nil), r.requiredFields...)
}

type edge struct {
	from Status
	to   Status
}

// Table is the fixed transition table for one record kind: a mapping from
// (current status, requested status) to an allow predicate and required fields
type Table struct {
	initial Status
	states  map[Status]bool
	edges   map[edge]*Rule
}

// Initial returns the status a freshly created record starts in
func (t *Table) Initial() Status {
	return t.initial
}

// Contains returns true if the status belongs to this table's vocabulary
func (t *Table) Contains(s Status) bool {
	return t.states[s]
}

// Rule returns the rule for the (from, to) edge, or false if the edge is
// absent from the table
func (t *Table) Rule(from, to Status) (*Rule, bool) {
	r, ok := t.edges[edge{from, to}]
	return r, ok
}

// Terminal returns true if no edge leaves the status
func (t *Table) Terminal(s Status) bool {
	for e := range t.edges {
		if e.from == s {
			return false
		}
	}
	return true
}

// PermittedTargets returns the statuses reachable in one step from the given
// status, sorted for deterministic output
func (t *Table) PermittedTargets(from Status) []Status {
	var targets []Status
	for e := range t.edges {
		if e.from == from {
			targets = append(targets, e.to)
		}
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i] < targets[j] })
	return targets
}

// TableBuilder assembles a transition table
type TableBuilder struct {
	table *Table
}

// StateConfig configures the outgoing edges of a single status
type StateConfig struct {
	builder *TableBuilder
	from    Status
}

// NewBuilder creates a table builder over the given status vocabulary
func NewBuilder(initial Status, states ...Status) *TableBuilder {
	t := &Table{
		initial: initial,
		states:  map[Status]bool{initial: true},
		edges:   make(map[edge]*Rule),
	}
	for _, s := range states {
		t.states[s] = true
	}
	return &TableBuilder{table: t}
}

// Configure returns the edge configuration for the given source status
func (b *TableBuilder) Configure(from Status) *StateConfig {
	if !b.table.states[from] {
		panic(fmt.Sprintf("status not in table vocabulary: %s", from))
	}
	return &StateConfig{builder: b, from: from}
}

// Permit adds an edge from the configured status to the target status
func (c *StateConfig) Permit(to Status, opts ...RuleOption) *StateConfig {
	t := c.builder.table
	if !t.states[to] {
		panic(fmt.Sprintf("target status not in table vocabulary: %s", to))
	}
	rule := &Rule{roles: make(map[entity.Role]bool)}
	for _, opt := range opts {
		opt(rule)
	}
	t.edges[edge{c.from, to}] = rule
	return c
}

// Build returns the assembled immutable table
func (b *TableBuilder) Build() *Table {
	return b.table
}
