package cmd

import (
	"testing"

	"github.com/spf13/viper"
)

func TestEngineConfigAddressLists(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	viper.Set("domain", "@example.com")
	viper.Set("rules.work.senders", []string{"boss@corp.example"})
	viper.Set("rules.newsletters.to", []string{"news+me@example.com"})
	viper.Set("rules.record_only.to", []string{"receipts@example.com"})
	viper.Set("rules.obnoxious.senders", []string{"spam@annoying.example"})

	cfg := engineConfig()

	if len(cfg.WorkSenders) != 1 || cfg.WorkSenders[0] != "boss@corp.example" {
		t.Errorf("WorkSenders = %v", cfg.WorkSenders)
	}
	// Newsletters and record-only lists hold recipient addresses; the
	// rule table matches them against To, not From.
	if len(cfg.Newsletters) != 1 || cfg.Newsletters[0] != "news+me@example.com" {
		t.Errorf("Newsletters = %v", cfg.Newsletters)
	}
	if len(cfg.RecordOnly) != 1 || cfg.RecordOnly[0] != "receipts@example.com" {
		t.Errorf("RecordOnly = %v", cfg.RecordOnly)
	}
	if len(cfg.ObnoxiousSenders) != 1 || cfg.ObnoxiousSenders[0] != "spam@annoying.example" {
		t.Errorf("ObnoxiousSenders = %v", cfg.ObnoxiousSenders)
	}
}

func TestEngineConfigDefaults(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	cfg := engineConfig()

	if cfg.WorkFolder != "Work" || cfg.LaterFolder != "Later" ||
		cfg.ReadFolder != "Read" || cfg.HintsFolder != "Hints" {
		t.Errorf("folder defaults: %+v", cfg)
	}
	if cfg.DefaultLanguage != "en" {
		t.Errorf("DefaultLanguage = %q", cfg.DefaultLanguage)
	}
	if cfg.ReplyBody["en"] == "" || cfg.ReplyBody["de"] == "" {
		t.Errorf("template defaults missing: %v", cfg.ReplyBody)
	}
}
