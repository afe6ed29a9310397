package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wricardo/boardgame-tracker/game/service"
)

var ErrInvalidSettings = errors.New("invalid settings")

// Settings are the server options that can live in a YAML file. Command line
// flags take precedence over anything set here.
type Settings struct {
	BoardsDir       string                   `yaml:"boards_dir"`
	DefaultBoard    string                   `yaml:"default_board"`
	SessionTTL      time.Duration            `yaml:"session_ttl"`
	CleanupInterval time.Duration            `yaml:"cleanup_interval"`
	RefreshInterval time.Duration            `yaml:"refresh_interval"`
	Animation       service.AnimationOptions `yaml:"animation"`
	SeedTeams       []service.TeamSeed       `yaml:"seed_teams"`
}

// DefaultSettings returns the settings used when no file is given
func DefaultSettings() *Settings {
	return &Settings{
		BoardsDir:       "boards",
		DefaultBoard:    ClassicBoardName,
		SessionTTL:      24 * time.Hour,
		CleanupInterval: time.Hour,
		RefreshInterval: time.Minute,
		Animation: service.AnimationOptions{
			StepDelay:     200 * time.Millisecond,
			TeleportDelay: 500 * time.Millisecond,
		},
		SeedTeams: []service.TeamSeed{
			{Name: "Barrows Bros", Color: "#8B4513", Members: []string{"Dharok", "Ahrim", "Karil"}},
			{Name: "GWD Squad", Color: "#DAA520", Members: []string{"Bandos", "Sara", "Zammy"}},
			{Name: "Slayer Gang", Color: "#228B22", Members: []string{"Duradel", "Nieve", "Steve"}},
		},
	}
}

// LoadSettings reads a YAML settings file over the defaults. An empty path
// returns the defaults unchanged.
func LoadSettings(path string) (*Settings, error) {
	s := DefaultSettings()
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks settings for values the server cannot run with
func (s *Settings) Validate() error {
	switch {
	case s.BoardsDir == "":
		return fmt.Errorf("%w: boards_dir is required", ErrInvalidSettings)
	case s.DefaultBoard != "" && !ValidBoardName(s.DefaultBoard):
		return fmt.Errorf("%w: default_board %q is not a valid board name", ErrInvalidSettings, s.DefaultBoard)
	case s.SessionTTL < 0, s.CleanupInterval < 0, s.RefreshInterval < 0:
		return fmt.Errorf("%w: intervals cannot be negative", ErrInvalidSettings)
	case s.Animation.StepDelay < 0 || s.Animation.TeleportDelay < 0:
		return fmt.Errorf("%w: animation delays cannot be negative", ErrInvalidSettings)
	}
	for i, team := range s.SeedTeams {
		if team.Name == "" {
			return fmt.Errorf("%w: seed_teams[%d] has no name", ErrInvalidSettings, i)
		}
	}
	return nil
}
