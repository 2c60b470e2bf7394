package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mcdev12/fieldofplay/go/internal/fop"
	"github.com/mcdev12/fieldofplay/go/internal/models"
	"gopkg.in/yaml.v3"
)

var ErrInvalidCompetition = errors.New("invalid competition file")

// Competition is the YAML description of a meet.
type Competition struct {
	Name      string      `yaml:"name"`
	Platforms []string    `yaml:"platforms"`
	Timings   Timings     `yaml:"timings"`
	Groups    []GroupSpec `yaml:"groups"`
}

// Timings overrides the field of play defaults. Zero values keep the default.
type Timings struct {
	Referees               int           `yaml:"referees"`
	TimeAllowed            time.Duration `yaml:"time_allowed"`
	ConsecutiveTimeAllowed time.Duration `yaml:"consecutive_time_allowed"`
	TickInterval           time.Duration `yaml:"tick_interval"`
	DecisionWindow         time.Duration `yaml:"decision_window"`
	RefereeWakeUpDelay     time.Duration `yaml:"referee_wake_up_delay"`
	BreakRoundingStep      time.Duration `yaml:"break_rounding_step"`
}

type GroupSpec struct {
	Name            string        `yaml:"name"`
	Platform        string        `yaml:"platform"`
	CompetitionTime *time.Time    `yaml:"competition_time"`
	Athletes        []AthleteSpec `yaml:"athletes"`
}

type AthleteSpec struct {
	Lot        int     `yaml:"lot"`
	FirstName  string  `yaml:"first_name"`
	LastName   string  `yaml:"last_name"`
	Team       string  `yaml:"team"`
	Category   string  `yaml:"category"`
	BodyWeight float64 `yaml:"body_weight"`
	EntryTotal int     `yaml:"entry_total"`
	Snatch     int     `yaml:"snatch"`
	CleanJerk  int     `yaml:"clean_jerk"`
}

// LoadCompetition reads and validates a competition file.
func LoadCompetition(path string) (*Competition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read competition file: %w", err)
	}
	return ParseCompetition(data)
}

// ParseCompetition decodes a competition document.
func ParseCompetition(data []byte) (*Competition, error) {
	var c Competition
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse competition file: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Competition) validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidCompetition)
	}
	if len(c.Platforms) == 0 {
		return fmt.Errorf("%w: at least one platform is required", ErrInvalidCompetition)
	}
	known := make(map[string]bool, len(c.Platforms))
	for _, p := range c.Platforms {
		known[p] = true
	}
	for _, g := range c.Groups {
		if !known[g.Platform] {
			return fmt.Errorf("%w: group %q uses unknown platform %q", ErrInvalidCompetition, g.Name, g.Platform)
		}
	}
	if c.Timings.Referees != 0 && c.Timings.Referees%2 == 0 {
		return fmt.Errorf("%w: referee count must be odd, got %d", ErrInvalidCompetition, c.Timings.Referees)
	}
	return nil
}

// FieldOfPlayConfig applies the timings on top of the defaults.
func (c *Competition) FieldOfPlayConfig() fop.Config {
	cfg := fop.DefaultConfig()
	t := c.Timings
	if t.Referees > 0 {
		cfg.Referees = t.Referees
	}
	if t.TimeAllowed > 0 {
		cfg.TimeAllowed = t.TimeAllowed
	}
	if t.ConsecutiveTimeAllowed > 0 {
		cfg.ConsecutiveTimeAllowed = t.ConsecutiveTimeAllowed
	}
	if t.TickInterval > 0 {
		cfg.TickInterval = t.TickInterval
	}
	if t.DecisionWindow > 0 {
		cfg.DecisionWindow = t.DecisionWindow
	}
	if t.RefereeWakeUpDelay > 0 {
		cfg.RefereeWakeUpDelay = t.RefereeWakeUpDelay
	}
	if t.BreakRoundingStep > 0 {
		cfg.BreakRoundingStep = t.BreakRoundingStep
	}
	return cfg
}

// SeedGroups converts the groups of the file into models. Ids are left for
// the roster to assign.
func (c *Competition) SeedGroups() []*models.Group {
	groups := make([]*models.Group, 0, len(c.Groups))
	for _, spec := range c.Groups {
		g := &models.Group{
			Name:            spec.Name,
			Platform:        spec.Platform,
			CompetitionTime: spec.CompetitionTime,
		}
		for _, a := range spec.Athletes {
			athlete := &models.Athlete{
				LotNumber:  a.Lot,
				FirstName:  a.FirstName,
				LastName:   a.LastName,
				Team:       a.Team,
				Category:   a.Category,
				BodyWeight: a.BodyWeight,
				EntryTotal: a.EntryTotal,
			}
			athlete.Attempts[0].Declaration = a.Snatch
			athlete.Attempts[models.AttemptsPerLift].Declaration = a.CleanJerk
			g.Athletes = append(g.Athletes, athlete)
		}
		groups = append(groups, g)
	}
	return groups
}
