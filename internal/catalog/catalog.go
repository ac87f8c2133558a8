// Package catalog holds static reference data: phases, fallback content and
// achievement metadata.
package catalog

import (
	"strings"

	"github.com/verte-zerg/killchain/internal/model"
)

// Phase identifiers in attack-chain order.
const (
	PhaseReconnaissance    = "reconnaissance"
	PhaseWeaponization     = "weaponization"
	PhaseDelivery          = "delivery"
	PhaseExploitation      = "exploitation"
	PhaseInstallation      = "installation"
	PhaseCommandControl    = "command_control"
	PhaseActionsObjectives = "actions_objectives"
)

// Achievement identifiers.
const (
	AchievementStreak5     = "streak_5"
	AchievementStreak10    = "streak_10"
	AchievementScore500    = "score_500"
	AchievementScore1000   = "score_1000"
	AchievementPhaseMaster = "phase_master"
)

var phases = []model.Phase{
	{ID: PhaseReconnaissance, Name: "Reconnaissance", Description: "Gathering information about the target", Icon: "🔍"},
	{ID: PhaseWeaponization, Name: "Weaponization", Description: "Coupling an exploit with a malicious payload", Icon: "🔨"},
	{ID: PhaseDelivery, Name: "Delivery", Description: "Transmitting the weapon to the target", Icon: "📧"},
	{ID: PhaseExploitation, Name: "Exploitation", Description: "Triggering exploit code on the victim system", Icon: "💥"},
	{ID: PhaseInstallation, Name: "Installation", Description: "Installing malware on the target system", Icon: "⚙️"},
	{ID: PhaseCommandControl, Name: "Command & Control", Description: "Establishing a channel for remote control", Icon: "📡"},
	{ID: PhaseActionsObjectives, Name: "Actions on Objectives", Description: "Achieving the attacker's goals", Icon: "🎯"},
}

// FallbackIncident is an offline incident together with its true phase.
type FallbackIncident struct {
	Incident model.Incident
	Phase    string
}

var fallbackIncidents = []FallbackIncident{
	{
		Phase: PhaseReconnaissance,
		Incident: model.Incident{
			ID:          "fallback_recon",
			RawText:     "Multiple DNS queries detected from external IP 185.234.218.12 for domain controllers and mail servers. Pattern suggests automated reconnaissance.",
			SourceLabel: "Network IDS",
			Severity:    "Medium",
			Metadata: map[string]string{
				"source_ip": "185.234.218.12",
				"queries":   "47",
				"targets":   "dc01.company.local, mail.company.local",
			},
		},
	},
	{
		Phase: PhaseDelivery,
		Incident: model.Incident{
			ID:          "fallback_delivery",
			RawText:     `Phishing campaign detected: 47 emails sent from "noreply@companysupport.tk" with malicious links to credential harvesting site.`,
			SourceLabel: "Email Security",
			Severity:    "High",
			Metadata: map[string]string{
				"sender":        "noreply@companysupport.tk",
				"recipients":    "47",
				"malicious_url": "company-login.tk",
			},
		},
	},
	{
		Phase: PhaseExploitation,
		Incident: model.Incident{
			ID:          "fallback_exploit",
			RawText:     "Process injection detected: winword.exe spawned powershell.exe with encoded command attempting to bypass AMSI. Memory analysis shows shellcode execution.",
			SourceLabel: "Endpoint Detection",
			Severity:    "Critical",
			Metadata: map[string]string{
				"parent_process": "winword.exe",
				"child_process":  "powershell.exe",
				"technique":      "Process Injection",
			},
		},
	},
}

var fallbackMitigations = []model.Mitigation{
	{ID: "mit_1", Name: "Network Monitoring", Description: "Monitor network traffic for suspicious patterns", Icon: "📡", Effectiveness: "High"},
	{ID: "mit_2", Name: "Email Filtering", Description: "Filter malicious emails and attachments", Icon: "📧", Effectiveness: "Very High"},
	{ID: "mit_3", Name: "User Training", Description: "Train users to recognize security threats", Icon: "🎓", Effectiveness: "Medium"},
	{ID: "mit_4", Name: "Endpoint Detection", Description: "Deploy EDR solutions for real-time threat detection", Icon: "💻", Effectiveness: "High"},
}

// Achievement describes an unlockable milestone.
type Achievement struct {
	ID          string
	Name        string
	Description string
	Icon        string
}

var achievements = []Achievement{
	{ID: AchievementStreak5, Name: "On Fire!", Description: "Reach a streak of 5 correct answers", Icon: "🔥"},
	{ID: AchievementStreak10, Name: "Unstoppable!", Description: "Reach a streak of 10 correct answers", Icon: "⚡"},
	{ID: AchievementScore500, Name: "Cyber Defender", Description: "Reach 500 total points", Icon: "🛡️"},
	{ID: AchievementScore1000, Name: "Kill Chain Master", Description: "Reach 1000 total points", Icon: "👑"},
	{ID: AchievementPhaseMaster, Name: "Phase Expert", Description: "Classify 4 different phases correctly at least 3 times each", Icon: "🎯"},
}

// Catalog is the reference data injected into a session engine.
type Catalog struct {
	Phases              []model.Phase
	FallbackIncidents   []FallbackIncident
	FallbackMitigations []model.Mitigation
	Achievements        []Achievement
}

// Default returns a copy of the built-in catalog.
func Default() Catalog {
	return Catalog{
		Phases:              Phases(),
		FallbackIncidents:   FallbackIncidents(),
		FallbackMitigations: FallbackMitigations(),
		Achievements:        Achievements(),
	}
}

// Phases returns the seven phases in order.
func Phases() []model.Phase {
	out := make([]model.Phase, len(phases))
	copy(out, phases)
	return out
}

// PhaseByID looks up a phase.
func PhaseByID(id string) (model.Phase, bool) {
	for _, p := range phases {
		if p.ID == id {
			return p, true
		}
	}
	return model.Phase{}, false
}

// FallbackIncidents returns the offline incident set.
func FallbackIncidents() []FallbackIncident {
	out := make([]FallbackIncident, len(fallbackIncidents))
	for i, fi := range fallbackIncidents {
		out[i] = FallbackIncident{Incident: cloneIncident(fi.Incident), Phase: fi.Phase}
	}
	return out
}

// FallbackMitigations returns the offline mitigation set.
func FallbackMitigations() []model.Mitigation {
	out := make([]model.Mitigation, len(fallbackMitigations))
	copy(out, fallbackMitigations)
	return out
}

// Achievements returns achievement metadata in evaluation order.
func Achievements() []Achievement {
	out := make([]Achievement, len(achievements))
	copy(out, achievements)
	return out
}

// AchievementByID looks up achievement metadata.
func AchievementByID(id string) (Achievement, bool) {
	for _, a := range achievements {
		if a.ID == id {
			return a, true
		}
	}
	return Achievement{}, false
}

// EffectivenessRank orders effectiveness labels; unknown labels rank 0.
func EffectivenessRank(label string) int {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "low":
		return 1
	case "medium":
		return 2
	case "high":
		return 3
	case "very high":
		return 4
	default:
		return 0
	}
}

// IsEffective reports whether a label counts as a correct mitigation.
func IsEffective(label string) bool {
	return EffectivenessRank(label) >= EffectivenessRank("High")
}

// BestMitigation returns the highest-ranked option, first wins on ties.
func BestMitigation(options []model.Mitigation) (model.Mitigation, bool) {
	if len(options) == 0 {
		return model.Mitigation{}, false
	}
	best := options[0]
	for _, m := range options[1:] {
		if EffectivenessRank(m.Effectiveness) > EffectivenessRank(best.Effectiveness) {
			best = m
		}
	}
	return best, true
}

func cloneIncident(in model.Incident) model.Incident {
	out := in
	if in.Metadata != nil {
		out.Metadata = make(map[string]string, len(in.Metadata))
		for k, v := range in.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}
