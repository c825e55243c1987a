package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Interactively generate a config.yaml file",
	RunE: func(cmd *cobra.Command, args []string) error {
		configFile := "config.yaml"

		if _, err := os.Stat(configFile); err == nil {
			fmt.Printf("config.yaml already exists. Remove it first to start over.\n")
			return nil
		}

		reader := bufio.NewReader(os.Stdin)

		fmt.Println("Let's set up your config.yaml!")

		fmt.Println("\n--- IMAP ---")
		imapServer := prompt(reader, "IMAP server (e.g. imap.example.com): ")
		imapPort := prompt(reader, "IMAP port (e.g. 993): ")
		imapUser := prompt(reader, "IMAP username: ")
		imapPass := promptSecret(reader, "IMAP password (empty to be asked at startup): ")
		imapFolder := prompt(reader, "Folder to watch (default INBOX): ")

		fmt.Println("\n--- SMTP ---")
		smtpServer := prompt(reader, "SMTP server (e.g. smtp.example.com): ")
		smtpPort := prompt(reader, "SMTP port (e.g. 465): ")
		smtpSecurity := prompt(reader, "SMTP security (ssl/starttls): ")
		smtpUser := prompt(reader, "SMTP username: ")
		smtpPass := promptSecret(reader, "SMTP password (empty to be asked at startup): ")

		fmt.Println("\n--- RULES ---")
		domain := prompt(reader, "Own address domain (e.g. @example.com): ")
		workSenders := promptMulti(reader, "Work sender address(es) (comma-separated, empty to skip): ")
		forwardTo := ""
		forwardFrom := ""
		replyFrom := ""
		if len(workSenders) > 0 {
			forwardTo = prompt(reader, "Forward work mail to: ")
			forwardFrom = prompt(reader, "Forward from identity: ")
			replyFrom = prompt(reader, "Auto-reply from identity: ")
		}
		newsletters := promptMulti(reader, "Newsletter recipient address(es) you subscribe with (comma-separated, empty to skip): ")
		recordOnly := promptMulti(reader, "Record-only recipient address(es) (comma-separated, empty to skip): ")
		obnoxious := promptMulti(reader, "Obnoxious sender address(es) (comma-separated, empty to skip): ")
		rejectFrom := ""
		if len(obnoxious) > 0 {
			rejectFrom = prompt(reader, "Rejection notice from identity: ")
		}
		proxyAddress := prompt(reader, "Fetch-proxy address (empty to skip): ")

		content := fmt.Sprintf(`imap:
  server: %s
  port: %s
  username: %s
  password: %s
  folder: %s

smtp:
  server: %s
  port: %s
  security: %s
  username: %s
  password: %s

domain: %s

rules:
  work:
    senders:
%s
    forward_to: %s
    forward_from: %s
    reply_from: %s
  newsletters:
    to:
%s
  record_only:
    to:
%s
  obnoxious:
    senders:
%s
    reject_from: %s
  proxy:
    address: %s
`, imapServer, imapPort, imapUser, imapPass, orDefault(imapFolder, "INBOX"),
			smtpServer, smtpPort, orDefault(smtpSecurity, "ssl"), smtpUser, smtpPass,
			domain,
			yamlList("      - ", workSenders), forwardTo, forwardFrom, replyFrom,
			yamlList("      - ", newsletters),
			yamlList("      - ", recordOnly),
			yamlList("      - ", obnoxious), rejectFrom,
			proxyAddress)

		if err := os.WriteFile(configFile, []byte(content), 0o600); err != nil {
			return fmt.Errorf("failed to write config.yaml: %w", err)
		}

		fmt.Println("\n✅ config.yaml created successfully.")
		return nil
	},
}

func prompt(r *bufio.Reader, label string) string {
	fmt.Print(label)
	text, _ := r.ReadString('\n')
	return strings.TrimSpace(text)
}

// promptSecret reads without echo when attached to a terminal, falling
// back to a plain prompt otherwise.
func promptSecret(r *bufio.Reader, label string) string {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return prompt(r, label)
	}
	fmt.Print(label)
	secret, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(secret))
}

func promptMulti(r *bufio.Reader, label string) []string {
	raw := prompt(r, label)
	parts := strings.Split(raw, ",")
	var cleaned []string
	for _, s := range parts {
		s = strings.TrimSpace(s)
		if s != "" {
			cleaned = append(cleaned, s)
		}
	}
	return cleaned
}

func yamlList(prefix string, values []string) string {
	var lines []string
	for _, v := range values {
		lines = append(lines, fmt.Sprintf("%s%s", prefix, v))
	}
	return strings.Join(lines, "\n")
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
