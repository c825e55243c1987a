package mailbox

import (
	"reflect"
	"testing"

	"github.com/mailwarden/mailwarden/internal/query"
)

func TestTokenizeNestedProgram(t *testing.T) {
	t.Parallel()

	fields, rest, err := tokenize(`(OR (FROM "a@x") (FROM "b@x"))`, 0)
	if err != nil {
		t.Fatalf("tokenize: %v", err)
	}
	if rest != "" {
		t.Errorf("rest = %q", rest)
	}

	want := []interface{}{
		[]interface{}{
			"OR",
			[]interface{}{"FROM", "a@x"},
			[]interface{}{"FROM", "b@x"},
		},
	}
	if !reflect.DeepEqual(fields, want) {
		t.Errorf("fields = %#v, want %#v", fields, want)
	}
}

func TestTokenizeQuotedValuesKeepSpaces(t *testing.T) {
	t.Parallel()

	fields, _, err := tokenize(`(SUBJECT "weekly report")`, 0)
	if err != nil {
		t.Fatalf("tokenize: %v", err)
	}
	sub, ok := fields[0].([]interface{})
	if !ok || len(sub) != 2 || sub[1] != "weekly report" {
		t.Errorf("fields = %#v", fields)
	}
}

func TestTokenizeRejectsUnbalancedPrograms(t *testing.T) {
	t.Parallel()

	for _, program := range []string{`(FROM "a@x"`, `FROM "a@x")`, `(SUBJECT "unterminated)`} {
		if _, _, err := tokenize(program, 0); err == nil {
			t.Errorf("tokenize(%q) accepted a malformed program", program)
		}
	}
}

func TestParseSearchAcceptsCompiledQueries(t *testing.T) {
	t.Parallel()

	programs := []string{
		query.Compile(query.AnyOf(query.From("boss@", "@workplace.edu"))),
		query.Compile(query.AllOf(query.From("@example.com"), query.To("inbox@example.com"))),
		query.Compile(query.AllOf(
			query.From("@example.com"),
			query.AnyOf(query.To("@example.com"), query.Not(query.AnyOf(query.To("@"), query.Cc("@")))),
		)),
	}

	for _, p := range programs {
		if _, err := parseSearch(p); err != nil {
			t.Errorf("parseSearch(%q): %v", p, err)
		}
	}
}

func TestParseSearchRejectsEmptyProgram(t *testing.T) {
	t.Parallel()

	if _, err := parseSearch(""); err == nil {
		t.Error("parseSearch accepted an empty program")
	}
}
