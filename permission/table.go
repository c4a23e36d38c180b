package permission

import (
	"errors"
	"sort"
	"sync"
)

var (
	// ErrUnknownOperation is returned for operations missing from a Table.
	ErrUnknownOperation = errors.New("unknown operation")
	// ErrTableFrozen is returned by Register after Freeze.
	ErrTableFrozen = errors.New("operation table frozen")
)

// Rule guards one operation.
type Rule struct {
	Public bool
	Roles  []string
}

// Table maps operation names to rules. Register everything during
// initialization, then Freeze.
type Table struct {
	mu     sync.RWMutex
	rules  map[string]Rule
	frozen bool
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{rules: make(map[string]Rule)}
}

// Register adds or replaces the rule for op. A non-public rule with no roles
// only admits authenticated callers.
func (t *Table) Register(op string, rule Rule) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.frozen {
		return ErrTableFrozen
	}
	if op == "" {
		return errors.New("operation name empty")
	}
	roles := make([]string, len(rule.Roles))
	copy(roles, rule.Roles)
	rule.Roles = roles
	t.rules[op] = rule
	return nil
}

// Freeze rejects further registrations.
func (t *Table) Freeze() {
	t.mu.Lock()
	t.frozen = true
	t.mu.Unlock()
}

// Rule returns the rule for op.
func (t *Table) Rule(op string) (Rule, error) {
	if t == nil {
		return Rule{}, ErrUnknownOperation
	}
	t.mu.RLock()
	defer t.mu.RUnlock()

	rule, ok := t.rules[op]
	if !ok {
		return Rule{}, ErrUnknownOperation
	}
	return rule, nil
}

// Operations lists registered operation names in sorted order.
func (t *Table) Operations() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]string, 0, len(t.rules))
	for op := range t.rules {
		out = append(out, op)
	}
	sort.Strings(out)
	return out
}
