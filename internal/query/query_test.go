package query

import (
	"strings"
	"testing"
)

func TestFieldMatchWire(t *testing.T) {
	t.Parallel()

	cases := []struct {
		got  []Expr
		want string
	}{
		{From("user@domain"), `(FROM "user@domain")`},
		{To("user@domain"), `(TO "user@domain")`},
		{Cc("user@domain"), `(CC "user@domain")`},
		{Subject("invoice"), `(SUBJECT "invoice")`},
	}

	for _, c := range cases {
		if s := Compile(c.got); s != c.want {
			t.Errorf("Compile = %q, want %q", s, c.want)
		}
	}
}

func TestFieldBuildersReturnOneExprPerValue(t *testing.T) {
	t.Parallel()

	if got := From("a@x", "b@x", "c@x"); len(got) != 3 {
		t.Errorf("From returned %d exprs, want 3", len(got))
	}
}

func TestOrFoldsLeft(t *testing.T) {
	t.Parallel()

	got := Compile(AnyOf(From("a@x", "b@x", "c@x")))
	want := `(OR (OR (FROM "a@x") (FROM "b@x")) (FROM "c@x"))`
	if got != want {
		t.Errorf("Compile = %q, want %q", got, want)
	}
}

func TestAndFoldsLeftWithJuxtaposition(t *testing.T) {
	t.Parallel()

	got := Compile(AllOf(From("a@x"), To("b@x"), Cc("c@x")))
	want := `(((FROM "a@x") (TO "b@x")) (CC "c@x"))`
	if got != want {
		t.Errorf("Compile = %q, want %q", got, want)
	}
}

func TestSingleChildIdentity(t *testing.T) {
	t.Parallel()

	want := `(FROM "a@x")`
	if got := Compile(AllOf(From("a@x"))); got != want {
		t.Errorf("AllOf single child = %q, want %q", got, want)
	}
	if got := Compile(AnyOf(From("a@x"))); got != want {
		t.Errorf("AnyOf single child = %q, want %q", got, want)
	}
}

func TestEmptyCombinatorsCompileAway(t *testing.T) {
	t.Parallel()

	if got := Compile(AnyOf()); got != "" {
		t.Errorf("empty AnyOf = %q, want empty program", got)
	}
	if got := Compile(AllOf()); got != "" {
		t.Errorf("empty AllOf = %q, want empty program", got)
	}
	if got := Compile(Not()); got != "" {
		t.Errorf("empty Not = %q, want empty program", got)
	}

	// An empty group nested inside a combination simply drops out.
	want := `(FROM "a@x")`
	if got := Compile(AllOf(From("a@x"), AnyOf())); got != want {
		t.Errorf("AllOf with empty group = %q, want %q", got, want)
	}
}

func TestNotJoinsChildren(t *testing.T) {
	t.Parallel()

	got := Compile(Not(To("@"), Cc("@")))
	want := `(NOT (TO "@") (CC "@"))`
	if got != want {
		t.Errorf("Compile = %q, want %q", got, want)
	}
}

func TestTopLevelListImplicitlyOrCombined(t *testing.T) {
	t.Parallel()

	got := Compile(append(From("a@x"), To("b@x")...))
	want := `(OR (FROM "a@x") (TO "b@x"))`
	if got != want {
		t.Errorf("Compile = %q, want %q", got, want)
	}
}

func TestNestedCombination(t *testing.T) {
	t.Parallel()

	// Mail from own domain that names no outside recipient.
	got := Compile(AllOf(
		From("@example.com"),
		AnyOf(To("@example.com"), Not(AnyOf(To("@"), Cc("@")))),
	))
	want := `((FROM "@example.com") (OR (TO "@example.com") (NOT (OR (TO "@") (CC "@")))))`
	if got != want {
		t.Errorf("Compile = %q, want %q", got, want)
	}
}

func TestBalancedParensAndKeywords(t *testing.T) {
	t.Parallel()

	programs := []string{
		Compile(AnyOf(From("a@x", "b@x"), To("c@x"))),
		Compile(AllOf(From("@x"), Not(To("@"), Cc("@")), Subject("news"))),
		Compile(AnyOf(Subject("a", "b", "c", "d"))),
	}

	for _, p := range programs {
		depth := 0
		for _, r := range p {
			switch r {
			case '(':
				depth++
			case ')':
				depth--
			}
			if depth < 0 {
				t.Fatalf("unbalanced parens in %q", p)
			}
		}
		if depth != 0 {
			t.Errorf("unbalanced parens in %q", p)
		}

		for _, word := range strings.Fields(strings.Map(func(r rune) rune {
			if r == '(' || r == ')' {
				return ' '
			}
			return r
		}, p)) {
			if strings.HasPrefix(word, `"`) {
				continue
			}
			switch word {
			case "FROM", "TO", "CC", "SUBJECT", "OR", "NOT":
			default:
				t.Errorf("unexpected keyword %q in %q", word, p)
			}
		}
	}
}
