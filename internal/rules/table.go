package rules

import "github.com/mailwarden/mailwarden/internal/query"

// BuildTable constructs the rule table from configuration. Order matters:
// rules run top to bottom on every wake-up, so the broad self-mail rules
// come last.
func BuildTable(cfg *Config) []Rule {
	var table []Rule

	if len(cfg.WorkSenders) > 0 {
		table = append(table, Rule{
			Name:  "work",
			Query: query.Compile(query.AnyOf(query.From(cfg.WorkSenders...))),
			Steps: []Step{AutoForwardReply(), SetFlags(FlagSeen), Move(cfg.WorkFolder), Expunge()},
		})
	}

	if len(cfg.Newsletters) > 0 {
		table = append(table, Rule{
			Name:  "newsletters",
			Query: query.Compile(query.AnyOf(query.To(cfg.Newsletters...))),
			Steps: []Step{Move(cfg.LaterFolder), Expunge()},
		})
	}

	if len(cfg.RecordOnly) > 0 {
		table = append(table, Rule{
			Name:  "record-only",
			Query: query.Compile(query.AnyOf(query.To(cfg.RecordOnly...))),
			Steps: []Step{SetFlags(FlagSeen), Move(cfg.ReadFolder), Expunge()},
		})
	}

	if len(cfg.ObnoxiousSenders) > 0 {
		table = append(table, Rule{
			Name:  "obnoxious",
			Query: query.Compile(query.AnyOf(query.From(cfg.ObnoxiousSenders...))),
			Steps: []Step{RejectAndDelete()},
		})
	}

	if cfg.ProxyAddress != "" {
		table = append(table, Rule{
			Name:  "proxy",
			Query: query.Compile(query.AllOf(query.From(cfg.Domain), query.To(cfg.ProxyAddress))),
			Steps: []Step{FetchProxy(), SetFlags(FlagSeen), Move(cfg.ReadFolder), Expunge()},
		})
	}

	if cfg.Domain != "" {
		// Mail from self that names no outside recipient: keep as hints.
		table = append(table, Rule{
			Name: "self-hints",
			Query: query.Compile(query.AllOf(
				query.From(cfg.Domain),
				query.AnyOf(query.To(cfg.Domain), query.Not(query.AnyOf(query.To("@"), query.Cc("@")))),
			)),
			Steps: []Step{SetFlags(FlagSeen), Move(cfg.HintsFolder), Expunge()},
		})

		// Remaining mail from self: mark read and archive.
		table = append(table, Rule{
			Name:  "self-read",
			Query: query.Compile(query.AnyOf(query.From(cfg.Domain))),
			Steps: []Step{SetFlags(FlagSeen), Move(cfg.ReadFolder), Expunge()},
		})
	}

	return table
}
