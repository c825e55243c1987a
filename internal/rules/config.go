package rules

// Config carries the addresses, folders and templates the rule table and
// its content handlers are built from. It is materialized once at startup
// and passed by reference; nothing mutates it afterwards.
type Config struct {
	// Domain is the own address suffix, e.g. "@example.com".
	Domain string

	// Filter address lists.
	WorkSenders      []string
	Newsletters      []string
	RecordOnly       []string
	ObnoxiousSenders []string
	ProxyAddress     string

	// Target folders.
	WorkFolder  string
	LaterFolder string
	ReadFolder  string
	HintsFolder string

	// Auto-forward/reply handler.
	ForwardTo   string // where work mail is forwarded, e.g. "Work <user@workplace.edu>"
	ForwardFrom string // identity the forward is sent by
	ReplyFrom   string // identity the auto-reply is sent by

	// Reject handler.
	RejectFrom string

	// Per-language templates. ForwardNote may contain "{sender}", replaced
	// with the resolved sender of the triggering message.
	ReplyBody   map[string]string
	ForwardNote map[string]string
	RejectBody  map[string]string

	// DefaultLanguage is used when no template language matches the
	// message's Content-Language header.
	DefaultLanguage string
}

// languages lists the template keys available for language resolution.
func languages(templates map[string]string) []string {
	langs := make([]string, 0, len(templates))
	for lang := range templates {
		langs = append(langs, lang)
	}
	return langs
}

// template picks the body for lang, falling back to the default language.
func (c *Config) template(templates map[string]string, lang string) string {
	if body, ok := templates[lang]; ok {
		return body
	}
	return templates[c.DefaultLanguage]
}
