// Package expr implements the rule condition language: a lexer, parser,
// and sandboxed tree-walking interpreter over an allow-listed context.
// There is no dynamic code generation; a parsed tree can only read the
// context values handed to Eval and call the fixed helper library.
package expr

import (
	"fmt"
	"strings"
)

// Context holds the named values an expression may reference. Every allowed
// root name must be present; absent payload fields map to nil so that
// IS NULL and exists() behave predictably.
type Context map[string]any

// EvalBool evaluates the tree and requires a boolean result, as rule
// conditions must be predicates.
func EvalBool(node Node, ctx Context) (bool, error) {
	v, err := Eval(node, ctx)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("condition must evaluate to a boolean, got %T", v)
	}
	return b, nil
}

// Eval walks the tree against the context. It never panics; malformed
// operations surface as errors.
func Eval(node Node, ctx Context) (any, error) {
	switch n := node.(type) {
	case *LiteralNode:
		return n.Value, nil

	case *IdentNode:
		return resolvePath(n.Path, ctx)

	case *ListNode:
		elems := make([]any, 0, len(n.Elems))
		for _, elem := range n.Elems {
			v, err := Eval(elem, ctx)
			if err != nil {
				return nil, err
			}
			elems = append(elems, v)
		}
		return elems, nil

	case *UnaryNode:
		return evalUnary(n, ctx)

	case *BinaryNode:
		return evalBinary(n, ctx)

	case *IsNullNode:
		v, err := Eval(n.Left, ctx)
		if err != nil {
			return nil, err
		}
		if n.Negated {
			return v != nil, nil
		}
		return v == nil, nil

	case *CallNode:
		return evalCall(n, ctx)
	}

	return nil, fmt.Errorf("unknown node type %T", node)
}

// resolvePath resolves a dotted identifier. The root must be an allow-listed
// context name; property access only descends into plain data maps, never
// into arbitrary objects.
func resolvePath(path []string, ctx Context) (any, error) {
	root, ok := ctx[path[0]]
	if !ok {
		return nil, fmt.Errorf("unknown identifier %q", path[0])
	}

	current := root
	for _, part := range path[1:] {
		if current == nil {
			return nil, nil
		}
		m, ok := current.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("cannot access %q on %T in %s", part, current, strings.Join(path, "."))
		}
		current = m[part]
	}
	return current, nil
}

func evalUnary(n *UnaryNode, ctx Context) (any, error) {
	v, err := Eval(n.Right, ctx)
	if err != nil {
		return nil, err
	}

	switch n.Op {
	case "not":
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("not requires a boolean, got %T", v)
		}
		return !b, nil
	case "-":
		num, ok := toNumber(v)
		if !ok {
			return nil, fmt.Errorf("negation requires a number, got %T", v)
		}
		return -num, nil
	}
	return nil, fmt.Errorf("unknown unary operator %q", n.Op)
}

func evalBinary(n *BinaryNode, ctx Context) (any, error) {
	// Logical connectives short-circuit.
	if n.Op == "and" || n.Op == "or" {
		left, err := EvalBool(n.Left, ctx)
		if err != nil {
			return nil, err
		}
		if n.Op == "and" && !left {
			return false, nil
		}
		if n.Op == "or" && left {
			return true, nil
		}
		return EvalBool(n.Right, ctx)
	}

	left, err := Eval(n.Left, ctx)
	if err != nil {
		return nil, err
	}
	right, err := Eval(n.Right, ctx)
	if err != nil {
		return nil, err
	}

	switch n.Op {
	case "==":
		return looseEqual(left, right), nil
	case "!=":
		return !looseEqual(left, right), nil
	case "<", "<=", ">", ">=":
		return compareOrdered(n.Op, left, right)
	case "in":
		return evalMembership(left, right)
	case "contains":
		return evalMembership(right, left)
	case "+", "-", "*", "/", "%":
		return evalArithmetic(n.Op, left, right)
	}
	return nil, fmt.Errorf("unknown operator %q", n.Op)
}

func evalCall(n *CallNode, ctx Context) (any, error) {
	fn := functions[n.Name]

	if len(n.Args) < fn.minArgs || (fn.maxArgs >= 0 && len(n.Args) > fn.maxArgs) {
		return nil, fmt.Errorf("%s: wrong argument count %d", n.Name, len(n.Args))
	}

	args := make([]any, 0, len(n.Args))
	for _, argNode := range n.Args {
		v, err := Eval(argNode, ctx)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}
	return fn.fn(args)
}

// evalMembership implements both "x in y" and "y contains x": needle in a
// list, or substring of a string.
func evalMembership(needle, haystack any) (any, error) {
	switch h := haystack.(type) {
	case []any:
		for _, candidate := range h {
			if looseEqual(needle, candidate) {
				return true, nil
			}
		}
		return false, nil
	case string:
		s, ok := needle.(string)
		if !ok {
			return false, nil
		}
		return strings.Contains(h, s), nil
	case nil:
		return false, nil
	}
	return nil, fmt.Errorf("membership requires a list or string, got %T", haystack)
}

func compareOrdered(op string, left, right any) (any, error) {
	if ln, ok := toNumber(left); ok {
		rn, ok := toNumber(right)
		if !ok {
			return nil, fmt.Errorf("cannot compare number with %T", right)
		}
		return applyOrdered(op, ln, rn), nil
	}
	if ls, ok := left.(string); ok {
		rs, ok := right.(string)
		if !ok {
			return nil, fmt.Errorf("cannot compare string with %T", right)
		}
		switch op {
		case "<":
			return ls < rs, nil
		case "<=":
			return ls <= rs, nil
		case ">":
			return ls > rs, nil
		default:
			return ls >= rs, nil
		}
	}
	return nil, fmt.Errorf("cannot order %T values", left)
}

func applyOrdered(op string, l, r float64) bool {
	switch op {
	case "<":
		return l < r
	case "<=":
		return l <= r
	case ">":
		return l > r
	default:
		return l >= r
	}
}

func evalArithmetic(op string, left, right any) (any, error) {
	if op == "+" {
		if ls, ok := left.(string); ok {
			if rs, ok := right.(string); ok {
				return ls + rs, nil
			}
		}
	}

	ln, ok1 := toNumber(left)
	rn, ok2 := toNumber(right)
	if !ok1 || !ok2 {
		return nil, fmt.Errorf("arithmetic requires numbers, got %T and %T", left, right)
	}

	switch op {
	case "+":
		return ln + rn, nil
	case "-":
		return ln - rn, nil
	case "*":
		return ln * rn, nil
	case "/":
		if rn == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		return ln / rn, nil
	case "%":
		if rn == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		return float64(int64(ln) % int64(rn)), nil
	}
	return nil, fmt.Errorf("unknown arithmetic operator %q", op)
}

// looseEqual compares values with numeric coercion so that int-typed
// context values compare equal to expression literals.
func looseEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if an, ok := toNumber(a); ok {
		if bn, ok := toNumber(b); ok {
			return an == bn
		}
		return false
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	}
	return false
}

func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
