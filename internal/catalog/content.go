package catalog

import (
	_ "embed" // Default content pack.
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/verte-zerg/killchain/internal/model"
)

//go:embed content.toml
var defaultContent string

// ContentIncident is a server-side incident including its answer key.
type ContentIncident struct {
	ID          string            `toml:"id"`
	Phase       string            `toml:"phase"`
	Raw         string            `toml:"raw"`
	Source      string            `toml:"source"`
	Severity    string            `toml:"severity"`
	Timestamp   string            `toml:"timestamp"`
	Explanation string            `toml:"explanation"`
	Indicators  []string          `toml:"indicators"`
	Metadata    map[string]string `toml:"metadata"`
}

// ContentMitigation is a mitigation bound to the phase it counters.
type ContentMitigation struct {
	Phase         string `toml:"phase"`
	ID            string `toml:"id"`
	Name          string `toml:"name"`
	Description   string `toml:"description"`
	Icon          string `toml:"icon"`
	Effectiveness string `toml:"effectiveness"`
}

// Content is the incident and mitigation database served to players.
type Content struct {
	Incidents   []ContentIncident   `toml:"incidents"`
	Mitigations []ContentMitigation `toml:"mitigations"`
}

// DefaultContent decodes the embedded content pack.
func DefaultContent() (Content, error) {
	var c Content
	if _, err := toml.Decode(defaultContent, &c); err != nil {
		return Content{}, fmt.Errorf("failed to decode embedded content: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Content{}, err
	}
	return c, nil
}

// LoadContent reads a content pack from path. An empty path selects the
// embedded pack.
func LoadContent(path string) (Content, error) {
	if path == "" {
		return DefaultContent()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Content{}, fmt.Errorf("failed to read content pack: %w", err)
	}
	var c Content
	if _, err := toml.Decode(string(data), &c); err != nil {
		return Content{}, fmt.Errorf("failed to decode content pack: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Content{}, err
	}
	return c, nil
}

// Validate checks that every incident is answerable.
func (c Content) Validate() error {
	if len(c.Incidents) == 0 {
		return fmt.Errorf("content pack has no incidents")
	}
	seen := make(map[string]struct{}, len(c.Incidents))
	for _, inc := range c.Incidents {
		if inc.ID == "" || inc.Raw == "" {
			return fmt.Errorf("incident %q is missing id or raw text", inc.ID)
		}
		if _, ok := seen[inc.ID]; ok {
			return fmt.Errorf("duplicate incident id %q", inc.ID)
		}
		seen[inc.ID] = struct{}{}
		if _, ok := PhaseByID(inc.Phase); !ok {
			return fmt.Errorf("incident %q has unknown phase %q", inc.ID, inc.Phase)
		}
		if len(c.MitigationsFor(inc.Phase)) == 0 {
			return fmt.Errorf("phase %q has no mitigations", inc.Phase)
		}
	}
	return nil
}

// IncidentsForPhases returns incidents whose phase is in the allowed set,
// in pack order.
func (c Content) IncidentsForPhases(allowed []string) []ContentIncident {
	set := make(map[string]struct{}, len(allowed))
	for _, p := range allowed {
		set[p] = struct{}{}
	}
	var out []ContentIncident
	for _, inc := range c.Incidents {
		if _, ok := set[inc.Phase]; ok {
			out = append(out, inc)
		}
	}
	return out
}

// IncidentByID looks up an incident.
func (c Content) IncidentByID(id string) (ContentIncident, bool) {
	for _, inc := range c.Incidents {
		if inc.ID == id {
			return inc, true
		}
	}
	return ContentIncident{}, false
}

// MitigationsFor returns the mitigations countering a phase.
func (c Content) MitigationsFor(phase string) []model.Mitigation {
	var out []model.Mitigation
	for _, m := range c.Mitigations {
		if m.Phase != phase {
			continue
		}
		out = append(out, model.Mitigation{
			ID:            m.ID,
			Name:          m.Name,
			Description:   m.Description,
			Icon:          m.Icon,
			Effectiveness: m.Effectiveness,
		})
	}
	return out
}

// Payload strips the answer key for transmission to the player.
func (inc ContentIncident) Payload() model.LogPayload {
	meta := make(map[string]any, len(inc.Metadata))
	for k, v := range inc.Metadata {
		meta[k] = v
	}
	return model.LogPayload{
		ID:        inc.ID,
		Raw:       inc.Raw,
		Source:    inc.Source,
		Severity:  inc.Severity,
		Timestamp: inc.Timestamp,
		Metadata:  meta,
	}
}
