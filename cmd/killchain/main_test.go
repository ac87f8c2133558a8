package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/verte-zerg/killchain/internal/catalog"
	"github.com/verte-zerg/killchain/internal/model"
	"github.com/verte-zerg/killchain/internal/store"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestPhasesCommandListsCatalog(t *testing.T) {
	out, err := execute(t, "phases")
	if err != nil {
		t.Fatalf("phases: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != len(catalog.Phases()) {
		t.Fatalf("expected %d lines, got %d:\n%s", len(catalog.Phases()), len(lines), out)
	}
	if !strings.HasPrefix(lines[0], "1. ") || !strings.Contains(lines[0], "Reconnaissance (reconnaissance)") {
		t.Fatalf("unexpected first line %q", lines[0])
	}
}

func TestLeaderboardCommandPrintsSessions(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "server.db")
	st, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i, sid := range []string{"alpha-01", "bravo-02"} {
		if err := st.UpsertRound(ctx, model.RoundState{SessionID: sid, LogID: "recon_dns", CorrectPhase: catalog.PhaseReconnaissance, Difficulty: model.Beginner, UpdatedAt: now}); err != nil {
			t.Fatalf("upsert: %v", err)
		}
		if err := st.RecordResult(ctx, model.RoundResult{SessionID: sid, Phase: catalog.PhaseReconnaissance, Mitigation: "m", Correct: true, Points: 50 * (2 - i), RecordedAt: now}); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	if err := st.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	out, err := execute(t, "leaderboard", "--db", dbPath)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if !strings.Contains(out, "Leaderboard") || !strings.Contains(out, "alpha-01") || !strings.Contains(out, "bravo-02") {
		t.Fatalf("unexpected output:\n%s", out)
	}
	if strings.Index(out, "alpha-01") > strings.Index(out, "bravo-02") {
		t.Fatalf("expected alpha-01 ranked first:\n%s", out)
	}

	out, err = execute(t, "leaderboard", "--db", dbPath, "--session", "bravo")
	if err != nil {
		t.Fatalf("leaderboard filtered: %v", err)
	}
	if strings.Contains(out, "alpha-01") || !strings.Contains(out, "bravo-02") {
		t.Fatalf("filter not applied:\n%s", out)
	}
}

func TestLeaderboardRejectsBadLimit(t *testing.T) {
	if _, err := execute(t, "leaderboard", "--limit", "0"); err == nil {
		t.Fatalf("expected error for --limit 0")
	}
}

func TestValidatePlayConfig(t *testing.T) {
	valid := model.PlayConfig{APIURL: defaultAPIURL, Timeout: time.Second, LogFile: "/tmp/k.log"}
	tests := []struct {
		name    string
		mutate  func(*model.PlayConfig)
		wantErr bool
	}{
		{name: "valid", mutate: func(*model.PlayConfig) {}},
		{name: "empty url", mutate: func(c *model.PlayConfig) { c.APIURL = " " }, wantErr: true},
		{name: "empty url offline", mutate: func(c *model.PlayConfig) { c.APIURL = ""; c.Offline = true }},
		{name: "zero timeout", mutate: func(c *model.PlayConfig) { c.Timeout = 0 }, wantErr: true},
		{name: "negative delay", mutate: func(c *model.PlayConfig) { c.FallbackDelay = -time.Second }, wantErr: true},
		{name: "empty log file", mutate: func(c *model.PlayConfig) { c.LogFile = "" }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			if err := validatePlayConfig(cfg); (err != nil) != tt.wantErr {
				t.Fatalf("validatePlayConfig err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateServeConfig(t *testing.T) {
	valid := model.ServeConfig{Addr: ":5000", DBPath: "x.db", RatePerMinute: -1, Burst: 1, SessionTTL: time.Hour}
	if err := validateServeConfig(valid); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
	zeroRate := valid
	zeroRate.RatePerMinute = 0
	if err := validateServeConfig(zeroRate); err == nil {
		t.Fatalf("expected error for zero rate")
	}
	noTTL := valid
	noTTL.SessionTTL = 0
	if err := validateServeConfig(noTTL); err == nil {
		t.Fatalf("expected error for zero session ttl")
	}
}

func TestConfigTemplateSections(t *testing.T) {
	tmpl := defaultConfigTemplate()
	for _, want := range []string{"[play]", "[serve]", defaultAPIURL, "KILLCHAIN_"} {
		if !strings.Contains(tmpl, want) {
			t.Fatalf("template missing %q", want)
		}
	}
}
