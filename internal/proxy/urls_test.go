package proxy

import (
	"reflect"
	"testing"

	"github.com/mailwarden/mailwarden/internal/message"
)

func TestExtractURLsTrimsTrailingPunctuation(t *testing.T) {
	m := &message.Mail{
		Parts: []message.Part{
			{MediaType: "text/plain", Text: "read this: https://example.com/article."},
		},
	}
	got := ExtractURLs(m)
	want := []string{"https://example.com/article"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ExtractURLs = %v, want %v", got, want)
	}
}

func TestExtractURLsDeduplicates(t *testing.T) {
	m := &message.Mail{
		Subject: "see https://a.example/x",
		Parts: []message.Part{
			{MediaType: "text/plain", Text: "https://a.example/x and https://b.example/y"},
			{MediaType: "text/plain", Text: "again https://a.example/x!"},
		},
	}
	got := ExtractURLs(m)
	want := []string{"https://a.example/x", "https://b.example/y"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ExtractURLs = %v, want %v", got, want)
	}
}

func TestExtractURLsFromHTMLPart(t *testing.T) {
	m := &message.Mail{
		Parts: []message.Part{
			{MediaType: "text/html", Text: `<p>go to <a href="http://example.org/page?id=1">here</a></p>`},
		},
	}
	got := ExtractURLs(m)
	want := []string{"http://example.org/page?id=1"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ExtractURLs = %v, want %v", got, want)
	}
}

func TestExtractURLsStopsAtDelimiters(t *testing.T) {
	m := &message.Mail{
		Parts: []message.Part{
			{MediaType: "text/plain", Text: `(https://example.com/a) <https://example.com/b> "https://example.com/c"`},
		},
	}
	got := ExtractURLs(m)
	want := []string{"https://example.com/a", "https://example.com/b", "https://example.com/c"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ExtractURLs = %v, want %v", got, want)
	}
}

func TestExtractURLsNoneFound(t *testing.T) {
	m := &message.Mail{
		Subject: "plain words only",
		Parts:   []message.Part{{MediaType: "text/plain", Text: "nothing to see"}},
	}
	if got := ExtractURLs(m); len(got) != 0 {
		t.Fatalf("ExtractURLs = %v, want empty", got)
	}
}
