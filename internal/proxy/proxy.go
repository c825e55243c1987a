// Package proxy implements the fetch-proxy content handler: URLs found in a
// matched message are retrieved, transformed and filed as new messages,
// optionally delivered right away.
package proxy

import (
	"bytes"
	"encoding/base64"
	"log/slog"
	"mime"
	"net/url"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/k3a/html2text"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
	gomail "gopkg.in/gomail.v2"

	"github.com/mailwarden/mailwarden/internal/fetch"
	"github.com/mailwarden/mailwarden/internal/message"
	"github.com/mailwarden/mailwarden/internal/rules"
)

// Config holds the proxy handler's addresses and limits.
type Config struct {
	// StoreFolder receives every built message.
	StoreFolder string
	// SendFrom is the identity proxied content is sent by.
	SendFrom string
	// Kindle delivery identities, used when the destination address
	// requests it.
	KindleSendFrom string
	KindleSendTo   string
	// MaxImages caps how many images one document may inline.
	MaxImages int
	// Deobfuscators maps a domain suffix to a registered transform name.
	Deobfuscators map[string]string
}

// Options are per-message processing switches, encoded as substrings of the
// destination address (e.g. "txt+kindle+81823@domain").
type Options struct {
	AsText           bool // convert HTML to plain text
	Bleach           bool // sanitize HTML
	IncludeImages    bool // inline images as data URIs
	TextWithoutLinks bool // drop link targets in text output
	Inline           bool // content in the body instead of an attachment
	SendSMTP         bool // transmit immediately besides storing

	SendFrom string
	SendTo   string
}

// ParseOptions extracts the processing switches from the destination
// address. sender is the original message's resolved sender, used as the
// delivery target unless kindle delivery is requested.
func ParseOptions(to string, cfg Config, sender string) Options {
	lower := strings.ToLower(to)
	kindle := strings.Contains(lower, "kindle")

	opts := Options{
		AsText:           strings.Contains(lower, "txt"),
		Bleach:           strings.Contains(lower, "bleach"),
		IncludeImages:    strings.Contains(lower, "images"),
		TextWithoutLinks: strings.Contains(lower, "wolinks"),
		Inline:           strings.Contains(lower, "inline"),
		SendSMTP:         kindle,
	}
	if kindle {
		opts.SendFrom, opts.SendTo = cfg.KindleSendFrom, cfg.KindleSendTo
	} else {
		opts.SendFrom, opts.SendTo = cfg.SendFrom, sender
	}
	return opts
}

// Fetcher retrieves one URL. Implemented by fetch.Client.
type Fetcher interface {
	Fetch(url string) (*fetch.Result, error)
}

// Processor implements rules.Proxy.
type Processor struct {
	fetcher Fetcher
	sender  rules.Sender
	cfg     Config
	deobs   map[string]Transform
}

// NewProcessor resolves the configured deobfuscators and returns a ready
// processor. Unknown transform names fail here, at startup.
func NewProcessor(fetcher Fetcher, sender rules.Sender, cfg Config) (*Processor, error) {
	deobs, err := resolveTransforms(cfg.Deobfuscators)
	if err != nil {
		return nil, &rules.FatalConfigError{Reason: err.Error()}
	}
	if cfg.MaxImages <= 0 {
		cfg.MaxImages = 100
	}
	return &Processor{fetcher: fetcher, sender: sender, cfg: cfg, deobs: deobs}, nil
}

// Process handles one fetched message: dedup, option parsing, then one
// independent fetch-and-store per extracted URL. A failing URL is logged
// and does not stop the others. It reports how many URLs were stored.
func (p *Processor) Process(s rules.Session, raw []byte, window *rules.Window) (int, error) {
	m, err := message.Parse(raw)
	if err != nil {
		return 0, err
	}
	if window.Seen(m.MessageID) {
		return 0, nil
	}
	window.Mark(m.MessageID)

	sender := m.Sender()
	opts := ParseOptions(m.To, p.cfg, sender)
	urls := ExtractURLs(m)
	slog.Info("Proxying URLs", "sender", sender, "count", len(urls))

	stored := 0
	for _, u := range urls {
		ok, err := p.fetchAndStore(s, u, m, opts)
		if ok {
			stored++
		}
		if err != nil {
			slog.Error("Failed to proxy URL", "url", u,
				"error", &rules.ContentFetchError{URL: u, Err: err})
		}
	}
	return stored, nil
}

// fetchAndStore retrieves one URL, builds a message from the content,
// appends it to the store folder and optionally transmits it. It reports
// whether the store succeeded.
func (p *Processor) fetchAndStore(s rules.Session, rawurl string, m *message.Mail, opts Options) (bool, error) {
	msg, err := p.buildFromURL(rawurl, m, opts)
	if err != nil {
		return false, err
	}

	var buf bytes.Buffer
	if _, err := msg.WriteTo(&buf); err != nil {
		return false, err
	}

	stored := true
	if err := s.Append(p.cfg.StoreFolder, nil, time.Now(), buf.Bytes()); err != nil {
		stored = false
		slog.Error("Failed to store proxied content", "folder", p.cfg.StoreFolder, "error", err)
	} else {
		slog.Info("Stored proxied content", "url", rawurl, "folder", p.cfg.StoreFolder)
	}

	if opts.SendSMTP {
		if err := p.sender.Send(opts.SendFrom, []string{opts.SendTo}, msg); err != nil {
			slog.Error("Failed to send proxied content", "to", opts.SendTo, "error", err)
		}
	}
	return stored, nil
}

func (p *Processor) buildFromURL(rawurl string, m *message.Mail, opts Options) (*gomail.Message, error) {
	res, err := p.fetcher.Fetch(rawurl)
	if err != nil {
		return nil, err
	}

	filename := filenameFrom(res)
	summary := res.FinalURL + "\nContent-Type: " + res.MediaType + "\n"

	if !strings.HasPrefix(res.MediaType, "text/") {
		// Binary content always goes out as an attachment.
		fullName := m.Subject + ": " + filename
		if strings.Contains(res.Subtype, "pdf") && !strings.HasSuffix(fullName, ".pdf") {
			fullName += ".pdf"
		}
		return message.Build(message.BuildOptions{
			Subject:           m.Subject,
			From:              opts.SendFrom,
			To:                opts.SendTo,
			Body:              summary,
			InReplyTo:         m.MessageID,
			MessageIDDomain:   "proxy",
			AttachBytes:       res.Body,
			AttachContentType: res.MediaType,
			AttachFilename:    fullName,
		}), nil
	}

	content := decodeText(res.Body, res.Charset)
	subtype := res.Subtype
	title := m.Subject
	prefix := ""

	if strings.Contains(subtype, "html") {
		content, title, subtype, prefix = p.transformHTML(content, res.FinalURL, opts)
		if title == "" {
			title = m.Subject
		}
		filename = fixExtension(filename, subtype)
	} else if strings.Contains(subtype, "plain") {
		filename = fixExtension(filename, "plain")
	}

	subject := title
	if prefix != "" {
		subject = "[" + prefix + "]: " + title
	}

	if opts.Inline {
		return message.Build(message.BuildOptions{
			Subject:         subject,
			From:            opts.SendFrom,
			To:              opts.SendTo,
			Body:            summary + "\n" + content,
			InReplyTo:       m.MessageID,
			MessageIDDomain: "proxy",
		}), nil
	}

	return message.Build(message.BuildOptions{
		Subject:           subject,
		From:              opts.SendFrom,
		To:                opts.SendTo,
		Body:              summary,
		InReplyTo:         m.MessageID,
		MessageIDDomain:   "proxy",
		AttachBytes:       []byte(content),
		AttachContentType: "text/" + subtype + "; charset=utf-8",
		AttachFilename:    m.Subject + ": " + filename,
	}), nil
}

// transformHTML applies the configured document transforms and reports the
// resulting content, title, subtype and subject prefix tag.
func (p *Processor) transformHTML(content, finalURL string, opts Options) (string, string, string, string) {
	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return content, "", "html", ""
	}

	base, _ := url.Parse(finalURL)
	absolutizeLinks(doc, base)

	prefix := ""
	if opts.Bleach {
		prefix = "B" + prefix
		for suffix, transform := range p.deobs {
			if host := hostOf(finalURL); strings.HasSuffix(host, suffix) {
				transform(doc)
			}
		}
		sanitize(doc)
	}
	if opts.IncludeImages {
		prefix = "I" + prefix
		p.inlineImages(doc)
	}

	title := findTitle(doc)
	rendered := renderHTML(doc)

	if opts.AsText {
		if opts.TextWithoutLinks {
			prefix = "TP" + prefix
			return html2text.HTML2TextWithOptions(rendered, html2text.WithLinksInnerText()), title, "plain", prefix
		}
		prefix = "TL" + prefix
		return html2text.HTML2Text(rendered), title, "plain", prefix
	}
	return rendered, title, "html", prefix
}

// inlineImages replaces img sources with base64 data URIs so the stored
// copy is self-contained. Images that cannot be fetched are dropped.
func (p *Processor) inlineImages(doc *html.Node) {
	inlined := 0
	var prune []*html.Node
	walk(doc, func(n *html.Node) {
		if n.Type != html.ElementNode || n.Data != "img" {
			return
		}
		src := ""
		for _, a := range n.Attr {
			if a.Key == "src" {
				src = a.Val
			}
		}
		if src == "" || strings.HasPrefix(src, "data:") || inlined >= p.cfg.MaxImages {
			prune = append(prune, n)
			return
		}

		res, err := p.fetcher.Fetch(src)
		if err != nil {
			slog.Debug("Failed to inline image", "src", src, "error", err)
			prune = append(prune, n)
			return
		}
		data := "data:" + res.MediaType + ";base64," + base64.StdEncoding.EncodeToString(res.Body)
		for i, a := range n.Attr {
			if a.Key == "src" {
				n.Attr[i].Val = data
			}
		}
		inlined++
	})
	for _, n := range prune {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
	}
}

func hostOf(rawurl string) string {
	u, err := url.Parse(rawurl)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// decodeText decodes fetched bytes to a string: the declared charset
// first, then valid UTF-8, then latin-1, which cannot fail. Newlines are
// normalized to \n.
func decodeText(b []byte, declared string) string {
	s, ok := decodeCharset(b, declared)
	if !ok {
		switch {
		case utf8.Valid(b):
			s = string(b)
		default:
			runes := make([]rune, len(b))
			for i, c := range b {
				runes[i] = rune(c)
			}
			s = string(runes)
		}
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

func decodeCharset(b []byte, name string) (string, bool) {
	if name == "" {
		return "", false
	}
	enc, _ := charset.Lookup(name)
	if enc == nil {
		return "", false
	}
	decoded, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", false
	}
	return string(decoded), true
}

// filenameFrom derives a filename from the Content-Disposition header or
// the final URL path.
func filenameFrom(res *fetch.Result) string {
	if cd := res.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil {
			if name := params["filename"]; name != "" {
				return name
			}
		}
	}
	if u, err := url.Parse(res.FinalURL); err == nil {
		if name := path.Base(u.Path); name != "" && name != "/" && name != "." {
			return name
		}
		if u.Host != "" {
			return u.Host
		}
	}
	return "download"
}

// fixExtension makes sure the filename matches the content subtype.
func fixExtension(filename, subtype string) string {
	switch {
	case subtype == "plain" && !strings.HasSuffix(filename, ".txt"):
		return filename + ".txt"
	case subtype == "html" && !strings.HasSuffix(filename, ".html"):
		return filename + ".html"
	}
	return filename
}
