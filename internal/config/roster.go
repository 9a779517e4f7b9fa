package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Technician is a field engineer who can be auto-assigned to tickets.
type Technician struct {
	ID        string   `yaml:"id"`
	Name      string   `yaml:"name"`
	Phone     string   `yaml:"phone"`
	Locations []string `yaml:"locations"`
}

// Roster lists the technicians available for auto-assignment.
type Roster struct {
	Technicians []Technician `yaml:"technicians"`
}

// DefaultRoster is used when no roster file is present.
func DefaultRoster() Roster {
	return Roster{Technicians: []Technician{
		{ID: "tech-001", Name: "Rajesh Kumar", Phone: "9847012345", Locations: []string{"thiruvalla", "pathanamthitta", "changanassery"}},
		{ID: "tech-002", Name: "Suresh Nair", Phone: "9847023456", Locations: []string{"kottayam", "changanassery"}},
		{ID: "tech-003", Name: "Anil Thomas", Phone: "9847034567", Locations: []string{"kochi", "ernakulam"}},
		{ID: "tech-004", Name: "Biju Mathew", Phone: "9847045678", Locations: []string{"thiruvananthapuram", "trivandrum", "kollam"}},
		{ID: "tech-005", Name: "Vinod Pillai", Phone: "9847056789", Locations: []string{"alappuzha", "thiruvalla"}},
	}}
}

// LoadRoster reads the roster YAML file, falling back to DefaultRoster when it does not exist.
func LoadRoster(path string) (Roster, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultRoster(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultRoster(), nil
		}
		return Roster{}, fmt.Errorf("read roster: %w", err)
	}
	return ParseRoster(data)
}

// ParseRoster decodes roster YAML and validates entries.
func ParseRoster(data []byte) (Roster, error) {
	var roster Roster
	if err := yaml.Unmarshal(data, &roster); err != nil {
		return Roster{}, fmt.Errorf("decode roster: %w", err)
	}
	if len(roster.Technicians) == 0 {
		return Roster{}, errors.New("roster has no technicians")
	}
	for i, tech := range roster.Technicians {
		if strings.TrimSpace(tech.ID) == "" || strings.TrimSpace(tech.Name) == "" {
			return Roster{}, fmt.Errorf("technician %d: id and name required", i)
		}
		for j, loc := range tech.Locations {
			roster.Technicians[i].Locations[j] = strings.ToLower(strings.TrimSpace(loc))
		}
	}
	return roster, nil
}

// ForLocation returns technicians covering the location, or the whole roster if none do.
func (r Roster) ForLocation(location string) []Technician {
	loc := strings.ToLower(strings.TrimSpace(location))
	if loc == "" {
		return r.Technicians
	}
	var matched []Technician
	for _, tech := range r.Technicians {
		for _, area := range tech.Locations {
			if area != "" && strings.Contains(loc, area) {
				matched = append(matched, tech)
				break
			}
		}
	}
	if len(matched) == 0 {
		return r.Technicians
	}
	return matched
}
