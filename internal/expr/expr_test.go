package expr

import (
	"strings"
	"testing"
)

func testContext() Context {
	return Context{
		"email": map[string]any{
			"valid":      true,
			"risk_score": 35,
			"disposable": true,
			"domain":     "mailinator.com",
		},
		"phone":              nil,
		"address":            nil,
		"name":               nil,
		"ip":                 map[string]any{"tor": false, "country": "DE"},
		"device":             nil,
		"transaction_amount": 15000.0,
		"currency":           "USD",
		"session_id":         "sess-42",
		"metadata":           map[string]any{"channel": "web"},
		"risk_score":         40,
		"risk_level":         "medium",
	}
}

func evalCondition(t *testing.T, condition string) bool {
	t.Helper()
	node, err := Parse(condition)
	if err != nil {
		t.Fatalf("parse %q: %v", condition, err)
	}
	result, err := EvalBool(node, testContext())
	if err != nil {
		t.Fatalf("eval %q: %v", condition, err)
	}
	return result
}

func TestConditions(t *testing.T) {
	tests := []struct {
		condition string
		want      bool
	}{
		// Comparisons and numeric coercion.
		{"transaction_amount > 10000", true},
		{"transaction_amount <= 10000", false},
		{"risk_score == 40", true},
		{"risk_score != 40", false},
		{"email.risk_score >= 35", true},

		// Logical connectives with case-insensitive synonyms.
		{"transaction_amount > 10000 and currency == 'USD'", true},
		{"transaction_amount > 10000 AND currency == 'EUR'", false},
		{"currency == 'EUR' or currency == 'USD'", true},
		{"NOT email.valid", false},
		{"not (currency == 'EUR')", true},
		{"transaction_amount > 10000 && currency == 'USD'", true},
		{"currency == 'EUR' || currency == 'USD'", true},

		// Short-circuit: right side would error if evaluated.
		{"false and length(1) > 0", false},
		{"true or length(1) > 0", true},

		// IS NULL / IS NOT NULL.
		{"phone IS NULL", true},
		{"phone is null", true},
		{"email IS NOT NULL", true},
		{"phone.risk_score IS NULL", true},

		// Membership.
		{"currency in ['USD', 'EUR']", true},
		{"currency in ['GBP', 'EUR']", false},
		{"email.domain contains 'mailinator'", true},
		{"'web' in metadata.channel", true},

		// String predicates.
		{"startsWith(currency, 'US')", true},
		{"endsWith(email.domain, '.com')", true},
		{"matches(session_id, '^sess-[0-9]+$')", true},

		// Helpers.
		{"between(transaction_amount, 10000, 20000)", true},
		{"between(risk_score, 50, 60)", false},
		{"exists(email)", true},
		{"exists(phone)", false},
		{"isEmpty(phone)", true},
		{"isEmail('a@example.com')", true},
		{"isEmail('nonsense')", false},
		{"isPhone('+4915112345678')", true},
		{"isPostalCode('94105', 'US')", true},
		{"isPostalCode('ABC', 'US')", false},
		{"inList(currency, 'USD', 'EUR')", true},
		{"inList(risk_level, ['low', 'medium'])", true},
		{"daysSince('2000-01-01') > 1000", true},

		// Arithmetic and numeric helpers.
		{"transaction_amount / 2 == 7500", true},
		{"abs(-5) == 5", true},
		{"max(risk_score, email.risk_score) == 40", true},
		{"min(3, 1, 2) == 1", true},
		{"round(2.6) == 3", true},
		{"lower(currency) == 'usd'", true},
		{"length(session_id) == 7", true},

		// Nested property access on the allow-listed context.
		{"email.disposable == true and transaction_amount > 1000", true},
		{"ip.country == 'DE'", true},
		{"ip.tor", false},
	}

	for _, tt := range tests {
		t.Run(tt.condition, func(t *testing.T) {
			if got := evalCondition(t, tt.condition); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHTMLEntityDecoding(t *testing.T) {
	// Stored conditions may arrive HTML-entity encoded.
	got := evalCondition(t, "transaction_amount &gt; 10000 &amp;&amp; currency == &#39;USD&#39;")
	if !got {
		t.Error("entity-encoded condition should evaluate true")
	}
}

func TestParseErrors(t *testing.T) {
	conditions := []string{
		"",
		"   ",
		"transaction_amount >",
		"(transaction_amount > 10",
		"currency == 'unterminated",
		"transaction_amount > 10 10",
		"foo(1)",          // unknown function
		"a = b",           // single equals
		"x IS",            // incomplete IS NULL
		"[1, 2",           // unterminated list
		"1 ^ 2",           // unsupported operator
		"between(1, 2)",   // arity
		"exists(1, 2, 3)", // arity
	}

	for _, condition := range conditions {
		t.Run(condition, func(t *testing.T) {
			if _, err := Parse(condition); err == nil {
				t.Errorf("expected parse error for %q", condition)
			}
		})
	}
}

func TestEvalErrors(t *testing.T) {
	conditions := []string{
		"unknown_variable == 1",    // not in allow-listed context
		"currency.foo == 1",        // property access on a string
		"transaction_amount",       // non-boolean result
		"not transaction_amount",   // not on a number
		"transaction_amount and true", // and on a number
		"transaction_amount / 0 > 1",
		"matches(session_id, '(')", // invalid regex
		"daysSince('not a date') > 0",
		"currency < 5", // string vs number ordering
	}

	for _, condition := range conditions {
		t.Run(condition, func(t *testing.T) {
			node, err := Parse(condition)
			if err != nil {
				return // parse-time rejection is fine too
			}
			if _, err := EvalBool(node, testContext()); err == nil {
				t.Errorf("expected evaluation error for %q", condition)
			}
		})
	}
}

func TestPrecedence(t *testing.T) {
	// or binds looser than and.
	got := evalCondition(t, "false and false or true")
	if !got {
		t.Error("expected (false and false) or true == true")
	}

	// Comparison binds tighter than not.
	got = evalCondition(t, "not risk_score > 50")
	if !got {
		t.Error("expected not (risk_score > 50) == true")
	}

	// Multiplication binds tighter than addition.
	got = evalCondition(t, "2 + 3 * 4 == 14")
	if !got {
		t.Error("expected 2 + (3 * 4) == 14")
	}
}

func TestDeterminism(t *testing.T) {
	node, err := Parse("email.disposable and transaction_amount > 10000")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	ctx := testContext()
	first, err := EvalBool(node, ctx)
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	for i := 0; i < 100; i++ {
		got, err := EvalBool(node, ctx)
		if err != nil {
			t.Fatalf("eval %d: %v", i, err)
		}
		if got != first {
			t.Fatalf("evaluation not deterministic at iteration %d", i)
		}
	}
}

func TestSandboxRejectsUnknownNames(t *testing.T) {
	// Resolution only sees the context map; nothing else is reachable.
	node, err := Parse("os.environ == 'x'")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, err := EvalBool(node, testContext()); err == nil {
		t.Error("expected unknown identifier error")
	}
	if _, err := Parse("eval('1+1') == 2"); err == nil {
		t.Error("expected unknown function error")
	}
}

func TestNilPropagation(t *testing.T) {
	// Dotted access through a nil field resolves to nil, not an error.
	got := evalCondition(t, "phone.flags.voip IS NULL")
	if !got {
		t.Error("expected nil propagation through absent field")
	}
}

func TestLexerPositions(t *testing.T) {
	_, err := Parse("transaction_amount > @")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "position") {
		t.Errorf("error should carry a position: %v", err)
	}
}
