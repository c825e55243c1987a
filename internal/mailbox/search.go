package mailbox

import (
	"fmt"
	"strings"

	"github.com/emersion/go-imap"
)

// parseSearch turns a compiled filter program such as
//
//	(OR (FROM "a@x") (FROM "b@x"))
//
// into the criteria structure the client library sends on the wire. The
// program grammar is exactly what internal/query emits: parenthesized
// groups, quoted strings and bare keywords.
func parseSearch(program string) (*imap.SearchCriteria, error) {
	fields, rest, err := tokenize(program, 0)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", program, err)
	}
	if rest != "" || len(fields) == 0 {
		return nil, fmt.Errorf("query %q: malformed program", program)
	}

	criteria := imap.NewSearchCriteria()
	if err := criteria.ParseWithCharset(fields, nil); err != nil {
		return nil, fmt.Errorf("query %q: %w", program, err)
	}
	return criteria, nil
}

// tokenize splits a search program into nested field lists. Quoted strings
// keep their content verbatim; everything else is an atom.
func tokenize(s string, depth int) (fields []interface{}, rest string, err error) {
	for len(s) > 0 {
		switch c := s[0]; {
		case c == ' ':
			s = s[1:]
		case c == '(':
			var sub []interface{}
			sub, s, err = tokenize(s[1:], depth+1)
			if err != nil {
				return nil, "", err
			}
			fields = append(fields, sub)
		case c == ')':
			if depth == 0 {
				return nil, "", fmt.Errorf("unbalanced %q", ")")
			}
			return fields, s[1:], nil
		case c == '"':
			end := strings.IndexByte(s[1:], '"')
			if end < 0 {
				return nil, "", fmt.Errorf("unterminated string")
			}
			fields = append(fields, s[1:1+end])
			s = s[2+end:]
		default:
			i := strings.IndexAny(s, " ()\"")
			if i < 0 {
				i = len(s)
			}
			fields = append(fields, s[:i])
			s = s[i:]
		}
	}
	if depth != 0 {
		return nil, "", fmt.Errorf("unbalanced %q", "(")
	}
	return fields, "", nil
}
