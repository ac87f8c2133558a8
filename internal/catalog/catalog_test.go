package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/verte-zerg/killchain/internal/model"
)

func TestPhasesOrdered(t *testing.T) {
	got := Phases()
	want := []string{
		PhaseReconnaissance, PhaseWeaponization, PhaseDelivery, PhaseExploitation,
		PhaseInstallation, PhaseCommandControl, PhaseActionsObjectives,
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d phases, got %d", len(want), len(got))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("phase %d: expected %s, got %s", i, id, got[i].ID)
		}
	}
}

func TestFallbackIncidentsAreCopies(t *testing.T) {
	first := FallbackIncidents()
	first[0].Incident.Metadata["source_ip"] = "changed"
	again := FallbackIncidents()
	if again[0].Incident.Metadata["source_ip"] == "changed" {
		t.Fatalf("fallback incidents share metadata maps")
	}
	for _, fi := range again {
		if fi.Incident.ID == "" || fi.Incident.RawText == "" {
			t.Fatalf("fallback incident missing id or text: %+v", fi)
		}
		if _, ok := PhaseByID(fi.Phase); !ok {
			t.Fatalf("fallback incident %s has unknown phase %s", fi.Incident.ID, fi.Phase)
		}
	}
}

func TestEffectivenessRank(t *testing.T) {
	if EffectivenessRank("Very High") <= EffectivenessRank("High") {
		t.Fatalf("very high should outrank high")
	}
	if EffectivenessRank("bogus") != 0 {
		t.Fatalf("unknown label should rank 0")
	}
	if !IsEffective("high") || IsEffective("Medium") {
		t.Fatalf("unexpected IsEffective results")
	}
}

func TestBestMitigationFirstWinsTies(t *testing.T) {
	opts := []model.Mitigation{
		{ID: "a", Effectiveness: "High"},
		{ID: "b", Effectiveness: "Very High"},
		{ID: "c", Effectiveness: "Very High"},
	}
	best, ok := BestMitigation(opts)
	if !ok || best.ID != "b" {
		t.Fatalf("expected b, got %+v", best)
	}
	if _, ok := BestMitigation(nil); ok {
		t.Fatalf("expected no best mitigation for empty options")
	}
	best, _ = BestMitigation(FallbackMitigations())
	if best.ID != "mit_2" {
		t.Fatalf("expected mit_2 as fallback best, got %s", best.ID)
	}
}

func TestAchievementByID(t *testing.T) {
	a, ok := AchievementByID(AchievementScore1000)
	if !ok || a.Name == "" {
		t.Fatalf("expected achievement metadata, got %+v", a)
	}
	if _, ok := AchievementByID("nope"); ok {
		t.Fatalf("unexpected achievement")
	}
}

func TestDefaultContentCoversEveryPhase(t *testing.T) {
	c, err := DefaultContent()
	if err != nil {
		t.Fatalf("default content: %v", err)
	}
	for _, p := range Phases() {
		if len(c.IncidentsForPhases([]string{p.ID})) == 0 {
			t.Fatalf("no incidents for %s", p.ID)
		}
		mits := c.MitigationsFor(p.ID)
		if len(mits) < 2 {
			t.Fatalf("expected several mitigations for %s", p.ID)
		}
		best, _ := BestMitigation(mits)
		if !IsEffective(best.Effectiveness) {
			t.Fatalf("phase %s has no effective mitigation", p.ID)
		}
	}
}

func TestIncidentPayloadStripsAnswer(t *testing.T) {
	c, err := DefaultContent()
	if err != nil {
		t.Fatalf("default content: %v", err)
	}
	inc, ok := c.IncidentByID("c2_1")
	if !ok {
		t.Fatalf("expected c2_1")
	}
	p := inc.Payload()
	if p.ID != "c2_1" || p.Raw == "" {
		t.Fatalf("unexpected payload: %+v", p)
	}
	if p.Metadata["protocol"] != "HTTPS" {
		t.Fatalf("expected metadata to carry over, got %v", p.Metadata)
	}
}

func TestLoadContentRejectsUnknownPhase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "content.toml")
	data := `
[[incidents]]
id = "x"
phase = "lateral_movement"
raw = "something happened"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := LoadContent(path)
	if err == nil || !strings.Contains(err.Error(), "unknown phase") {
		t.Fatalf("expected unknown phase error, got %v", err)
	}
}

func TestLoadContentEmptyPathUsesEmbedded(t *testing.T) {
	c, err := LoadContent("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(c.Incidents) == 0 {
		t.Fatalf("expected embedded incidents")
	}
}
