package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/mailwarden/mailwarden/internal/fetch"
	"github.com/mailwarden/mailwarden/internal/mailbox"
	"github.com/mailwarden/mailwarden/internal/outgoing"
	"github.com/mailwarden/mailwarden/internal/proxy"
	"github.com/mailwarden/mailwarden/internal/rules"
)

// Template defaults, used when the config file does not override them.
var (
	defaultReplyBody = map[string]string{
		"en": "I am currently away from my regular mailbox.\n" +
			"Your message has been forwarded and I will get back to you\n" +
			"as soon as I can.\n",
		"de": "Ich bin zur Zeit nicht an meinem gewohnten Postfach.\n" +
			"Ihre Nachricht wurde weitergeleitet und ich melde mich\n" +
			"sobald wie möglich.\n",
	}
	defaultForwardNote = map[string]string{
		"en": "Forwarded message from {sender}, received while away.\n",
		"de": "Weitergeleitete Nachricht von {sender}, eingegangen während der Abwesenheit.\n",
	}
	defaultRejectBody = map[string]string{
		"en": "Your message was deleted unread. Please stop writing to this address.\n",
		"de": "Ihre Nachricht wurde ungelesen gelöscht. Bitte schreiben Sie nicht mehr an diese Adresse.\n",
	}
)

func engineConfig() *rules.Config {
	cfg := &rules.Config{
		Domain: viper.GetString("domain"),

		WorkSenders:      viper.GetStringSlice("rules.work.senders"),
		Newsletters:      viper.GetStringSlice("rules.newsletters.to"),
		RecordOnly:       viper.GetStringSlice("rules.record_only.to"),
		ObnoxiousSenders: viper.GetStringSlice("rules.obnoxious.senders"),
		ProxyAddress:     viper.GetString("rules.proxy.address"),

		WorkFolder:  stringOr("rules.work.folder", "Work"),
		LaterFolder: stringOr("rules.newsletters.folder", "Later"),
		ReadFolder:  stringOr("rules.record_only.folder", "Read"),
		HintsFolder: stringOr("rules.hints.folder", "Hints"),

		ForwardTo:   viper.GetString("rules.work.forward_to"),
		ForwardFrom: viper.GetString("rules.work.forward_from"),
		ReplyFrom:   viper.GetString("rules.work.reply_from"),
		RejectFrom:  viper.GetString("rules.obnoxious.reject_from"),

		ReplyBody:   templatesOr("templates.reply", defaultReplyBody),
		ForwardNote: templatesOr("templates.forward_note", defaultForwardNote),
		RejectBody:  templatesOr("templates.reject", defaultRejectBody),

		DefaultLanguage: stringOr("templates.default_language", "en"),
	}
	return cfg
}

func mailboxConfig() mailbox.Config {
	return mailbox.Config{
		Server:   viper.GetString("imap.server"),
		Port:     intOr("imap.port", 993),
		Username: viper.GetString("imap.username"),
		Password: readSecret("imap.password", "IMAP password: "),
		Folder:   stringOr("imap.folder", "INBOX"),
	}
}

func smtpSender() *outgoing.Sender {
	return outgoing.New(
		viper.GetString("smtp.server"),
		intOr("smtp.port", 465),
		viper.GetString("smtp.username"),
		readSecret("smtp.password", "SMTP password: "),
		stringOr("smtp.security", "ssl"),
	)
}

func proxyProcessor(sender rules.Sender) (*proxy.Processor, error) {
	fetcher := fetch.New(fetch.Config{
		CacheDir:  viper.GetString("fetch.cache_dir"),
		Timeout:   durationOr("fetch.timeout", 30*time.Second),
		MaxSize:   viper.GetInt64("fetch.max_size"),
		UserAgent: stringOr("fetch.user_agent", "mailwarden/"+Version),
	})

	return proxy.NewProcessor(fetcher, sender, proxy.Config{
		StoreFolder:    stringOr("rules.proxy.folder", "Proxied"),
		SendFrom:       viper.GetString("rules.proxy.send_from"),
		KindleSendFrom: viper.GetString("rules.proxy.kindle_from"),
		KindleSendTo:   viper.GetString("rules.proxy.kindle_to"),
		MaxImages:      intOr("rules.proxy.max_images", 100),
		Deobfuscators:  viper.GetStringMapString("rules.proxy.deobfuscators"),
	})
}

func engineOptions(once bool) rules.Options {
	return rules.Options{
		Once:         once,
		InitialDelay: durationOr("engine.initial_delay", 5*time.Second),
		MaxDelay:     durationOr("engine.max_delay", 10*time.Minute),
		IdleTimeout:  durationOr("engine.idle_timeout", rules.DefaultIdleTimeout),
	}
}

// readSecret resolves a credential: config file or environment first
// (MAILWARDEN_IMAP_PASSWORD for "imap.password"), then an interactive
// prompt when running on a terminal.
func readSecret(key, label string) string {
	if value := viper.GetString(key); value != "" {
		return value
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return ""
	}

	fmt.Fprint(os.Stderr, label)
	secret, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return ""
	}
	return string(secret)
}

func stringOr(key, fallback string) string {
	if value := viper.GetString(key); value != "" {
		return value
	}
	return fallback
}

func intOr(key string, fallback int) int {
	if value := viper.GetInt(key); value != 0 {
		return value
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) time.Duration {
	if value := viper.GetDuration(key); value != 0 {
		return value
	}
	return fallback
}

func templatesOr(key string, fallback map[string]string) map[string]string {
	if value := viper.GetStringMapString(key); len(value) > 0 {
		return value
	}
	return fallback
}
