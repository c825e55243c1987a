package proxy

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/mailwarden/mailwarden/internal/fetch"
	"github.com/mailwarden/mailwarden/internal/rules"
)

func proxyConfig() Config {
	return Config{
		StoreFolder:    "Proxied",
		SendFrom:       "proxy@example.com",
		KindleSendFrom: "kindle-from@example.com",
		KindleSendTo:   "me@kindle.com",
	}
}

func TestParseOptions(t *testing.T) {
	cfg := proxyConfig()

	opts := ParseOptions("proxy@example.com", cfg, "alice@example.org")
	if opts.AsText || opts.Bleach || opts.IncludeImages || opts.Inline || opts.SendSMTP {
		t.Errorf("plain address set options: %+v", opts)
	}
	if opts.SendFrom != "proxy@example.com" || opts.SendTo != "alice@example.org" {
		t.Errorf("delivery identities: %+v", opts)
	}

	opts = ParseOptions("txt+bleach+wolinks+inline@example.com", cfg, "alice@example.org")
	if !opts.AsText || !opts.Bleach || !opts.TextWithoutLinks || !opts.Inline {
		t.Errorf("combined flags not parsed: %+v", opts)
	}
	if opts.IncludeImages || opts.SendSMTP {
		t.Errorf("unrequested flags set: %+v", opts)
	}

	opts = ParseOptions("Proxy+Kindle+Images@Example.com", cfg, "alice@example.org")
	if !opts.SendSMTP || !opts.IncludeImages {
		t.Errorf("kindle address must enable sending: %+v", opts)
	}
	if opts.SendFrom != cfg.KindleSendFrom || opts.SendTo != cfg.KindleSendTo {
		t.Errorf("kindle delivery identities: %+v", opts)
	}
}

type fakeFetcher struct {
	results map[string]*fetch.Result
	calls   []string
}

func (f *fakeFetcher) Fetch(u string) (*fetch.Result, error) {
	f.calls = append(f.calls, u)
	res, ok := f.results[u]
	if !ok {
		return nil, errors.New("not found")
	}
	return res, nil
}

type fakeStore struct {
	appends []string // folder
	bodies  [][]byte
}

func (s *fakeStore) Search(string) ([]uint32, error) { return nil, nil }

func (s *fakeStore) Fetch([]uint32) ([]rules.RawMessage, error) { return nil, nil }

func (s *fakeStore) StoreFlags([]uint32, ...string) error { return nil }

func (s *fakeStore) Copy([]uint32, string) error { return nil }

func (s *fakeStore) Expunge() error { return nil }

func (s *fakeStore) SupportIdle() (bool, error) { return true, nil }

func (s *fakeStore) WaitForChange(time.Duration) (bool, error) { return false, nil }

func (s *fakeStore) Close() error { return nil }
func (s *fakeStore) Append(folder string, _ []string, _ time.Time, raw []byte) error {
	s.appends = append(s.appends, folder)
	s.bodies = append(s.bodies, raw)
	return nil
}

type recordingSender struct {
	sent []string // "from->to"
}

func (r *recordingSender) Send(from string, to []string, msg io.WriterTo) error {
	r.sent = append(r.sent, from+"->"+strings.Join(to, ","))
	return nil
}

func htmlResult(url, body string) *fetch.Result {
	return &fetch.Result{
		Body:      []byte(body),
		FinalURL:  url,
		Header:    http.Header{},
		MediaType: "text/html",
		Subtype:   "html",
		Charset:   "utf-8",
	}
}

func rawRequest(to, body string) []byte {
	return []byte("Message-ID: <p1@x>\r\n" +
		"From: Alice <alice@example.org>\r\n" +
		"To: " + to + "\r\n" +
		"Subject: links\r\n" +
		"Content-Type: text/plain\r\n" +
		"\r\n" + body + "\r\n")
}

func newTestProcessor(t *testing.T, f Fetcher, s rules.Sender, cfg Config) *Processor {
	t.Helper()
	p, err := NewProcessor(f, s, cfg)
	if err != nil {
		t.Fatalf("NewProcessor: %v", err)
	}
	return p
}

func TestProcessStoresEachURL(t *testing.T) {
	fetcher := &fakeFetcher{results: map[string]*fetch.Result{
		"https://a.example/1": htmlResult("https://a.example/1", "<html><head><title>One</title></head><body>x</body></html>"),
		"https://b.example/2": htmlResult("https://b.example/2", "<html><head><title>Two</title></head><body>y</body></html>"),
	}}
	store := &fakeStore{}
	sender := &recordingSender{}
	p := newTestProcessor(t, fetcher, sender, proxyConfig())

	window := rules.NewWindow()
	raw := rawRequest("proxy@example.com", "https://a.example/1 then https://b.example/2")
	stored, err := p.Process(store, raw, window)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if stored != 2 {
		t.Errorf("stored = %d, want 2", stored)
	}
	if len(store.appends) != 2 {
		t.Fatalf("appends = %v, want 2 stores", store.appends)
	}
	for _, folder := range store.appends {
		if folder != "Proxied" {
			t.Errorf("stored into %q", folder)
		}
	}
	if len(sender.sent) != 0 {
		t.Errorf("non-kindle request must not send: %v", sender.sent)
	}
	if bytes.Contains(store.bodies[0], []byte("Subject: One")) == bytes.Contains(store.bodies[1], []byte("Subject: One")) {
		t.Errorf("exactly one stored message should carry title One")
	}
}

func TestProcessSkipsSeenMessage(t *testing.T) {
	fetcher := &fakeFetcher{results: map[string]*fetch.Result{}}
	store := &fakeStore{}
	p := newTestProcessor(t, fetcher, &recordingSender{}, proxyConfig())

	window := rules.NewWindow()
	window.Mark("<p1@x>")
	raw := rawRequest("proxy@example.com", "https://a.example/1")
	stored, err := p.Process(store, raw, window)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if stored != 0 {
		t.Errorf("stored = %d, want 0", stored)
	}
	if len(fetcher.calls) != 0 || len(store.appends) != 0 {
		t.Errorf("seen message must be ignored: fetches=%v appends=%v", fetcher.calls, store.appends)
	}
}

func TestProcessFailedURLDoesNotStopOthers(t *testing.T) {
	fetcher := &fakeFetcher{results: map[string]*fetch.Result{
		"https://b.example/ok": htmlResult("https://b.example/ok", "<title>OK</title>"),
	}}
	store := &fakeStore{}
	p := newTestProcessor(t, fetcher, &recordingSender{}, proxyConfig())

	raw := rawRequest("proxy@example.com", "https://a.example/broken and https://b.example/ok")
	stored, err := p.Process(store, raw, rules.NewWindow())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if stored != 1 {
		t.Errorf("stored = %d, want only the working URL counted", stored)
	}
	if len(store.appends) != 1 {
		t.Fatalf("appends = %v, want the working URL stored", store.appends)
	}
}

func TestProcessKindleSends(t *testing.T) {
	fetcher := &fakeFetcher{results: map[string]*fetch.Result{
		"https://a.example/1": htmlResult("https://a.example/1", "<title>One</title><p>body</p>"),
	}}
	store := &fakeStore{}
	sender := &recordingSender{}
	p := newTestProcessor(t, fetcher, sender, proxyConfig())

	raw := rawRequest("proxy+kindle@example.com", "https://a.example/1")
	if _, err := p.Process(store, raw, rules.NewWindow()); err != nil {
		t.Fatalf("Process: %v", err)
	}
	want := []string{"kindle-from@example.com->me@kindle.com"}
	if len(sender.sent) != 1 || sender.sent[0] != want[0] {
		t.Errorf("sent = %v, want %v", sender.sent, want)
	}
	if len(store.appends) != 1 {
		t.Errorf("kindle delivery must still store a copy: %v", store.appends)
	}
}

func TestBuildFromURLTextModes(t *testing.T) {
	const page = `<html><head><title>Story</title></head><body><p class="obfuscated">ifmmp</p><a href="/next">next page</a></body></html>`
	cfg := proxyConfig()
	cfg.Deobfuscators = map[string]string{"a.example": "shifted-alphabet"}
	fetcher := &fakeFetcher{results: map[string]*fetch.Result{
		"https://a.example/1": htmlResult("https://a.example/1", page),
	}}
	p := newTestProcessor(t, fetcher, &recordingSender{}, cfg)

	raw := rawRequest("proxy+txt+bleach+inline@example.com", "https://a.example/1")
	store := &fakeStore{}
	if _, err := p.Process(store, raw, rules.NewWindow()); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(store.bodies) != 1 {
		t.Fatalf("appends = %d", len(store.appends))
	}
	body := string(store.bodies[0])
	if !strings.Contains(body, "[TLB]: Story") {
		t.Errorf("subject should carry mode prefix and title:\n%s", body)
	}
	if !strings.Contains(body, "hello") {
		t.Errorf("obfuscated text should be decoded:\n%s", body)
	}
}

func TestDecodeText(t *testing.T) {
	cases := []struct {
		name    string
		body    []byte
		charset string
		want    string
	}{
		{"declared windows-1252", []byte{'a', 0x93, 'b'}, "windows-1252", "a“b"},
		{"declared overrides valid utf-8", []byte{'a', 0xc3, 0xa4}, "windows-1252", "aÃ¤"},
		{"utf-8 without declaration", []byte("grüß"), "", "grüß"},
		{"latin-1 fallback", []byte{'g', 'r', 0xfc, 0xdf}, "no-such-charset", "grüß"},
		{"newline normalization", []byte("a\r\nb\rc"), "", "a\nb\nc"},
	}
	for _, c := range cases {
		if got := decodeText(c.body, c.charset); got != c.want {
			t.Errorf("%s: decodeText = %q, want %q", c.name, got, c.want)
		}
	}
}

func TestBuildFromURLBinaryAttachment(t *testing.T) {
	fetcher := &fakeFetcher{results: map[string]*fetch.Result{
		"https://a.example/doc": {
			Body:      []byte("%PDF-1.4 fake"),
			FinalURL:  "https://a.example/doc",
			Header:    http.Header{},
			MediaType: "application/pdf",
			Subtype:   "pdf",
		},
	}}
	p := newTestProcessor(t, fetcher, &recordingSender{}, proxyConfig())

	store := &fakeStore{}
	raw := rawRequest("proxy@example.com", "https://a.example/doc")
	if _, err := p.Process(store, raw, rules.NewWindow()); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(store.bodies) != 1 {
		t.Fatalf("appends = %d", len(store.appends))
	}
	body := string(store.bodies[0])
	if !strings.Contains(body, "application/pdf") {
		t.Errorf("attachment content type missing:\n%s", body)
	}
	if !strings.Contains(body, ".pdf") {
		t.Errorf("attachment filename should get a pdf extension:\n%s", body)
	}
}
