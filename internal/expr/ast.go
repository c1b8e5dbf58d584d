package expr

// Node is a parsed expression tree node. The tree is immutable after
// parsing and safe to evaluate concurrently.
type Node interface {
	node()
}

// LiteralNode holds a constant: float64, string, bool, or nil.
type LiteralNode struct {
	Value any
}

// IdentNode references a context variable by dotted path, e.g.
// email.risk_score parses to Path ["email", "risk_score"].
type IdentNode struct {
	Path []string
}

// UnaryNode is "not x" or numeric negation.
type UnaryNode struct {
	Op    string // "not", "-"
	Right Node
}

// BinaryNode covers logical connectives, comparisons, membership, and
// arithmetic. Op is one of: and, or, ==, !=, <, <=, >, >=, in, contains,
// +, -, *, /, %.
type BinaryNode struct {
	Op    string
	Left  Node
	Right Node
}

// IsNullNode is "x IS NULL" / "x IS NOT NULL".
type IsNullNode struct {
	Left    Node
	Negated bool
}

// CallNode invokes a helper from the fixed function library.
type CallNode struct {
	Name string // lowercased
	Args []Node
}

// ListNode is a literal list: [a, b, c].
type ListNode struct {
	Elems []Node
}

func (*LiteralNode) node() {}
func (*IdentNode) node()   {}
func (*UnaryNode) node()   {}
func (*BinaryNode) node()  {}
func (*IsNullNode) node()  {}
func (*CallNode) node()    {}
func (*ListNode) node()    {}
