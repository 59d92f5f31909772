package model

import (
	"encoding/json"
	"fmt"
)

type MatchStrategy string

const (
	StrategyAtLeastTwo MatchStrategy = "atLeastTwo"
	StrategyAllMembers MatchStrategy = "allMembers"
)

func (s MatchStrategy) Valid() bool {
	return s == StrategyAtLeastTwo || s == StrategyAllMembers
}

// SessionSettings is the typed form of the sessions.settings blob.
// Stored JSON is versioned and parsed at the boundary; business logic
// never sees raw maps. Zero quota/ceiling values mean "unlimited".
type SessionSettings struct {
	Version        int           `json:"version"`
	MatchStrategy  MatchStrategy `json:"matchStrategy"`
	MaxRightSwipes int           `json:"maxRightSwipes"`
	MaxLeftSwipes  int           `json:"maxLeftSwipes"`
	MaxMatches     int           `json:"maxMatches"`
	AllowGuests    bool          `json:"allowGuests"`
}

const settingsVersion = 1

func DefaultSettings() SessionSettings {
	return SessionSettings{
		Version:       settingsVersion,
		MatchStrategy: StrategyAtLeastTwo,
	}
}

// ParseSettings reads a stored settings blob, applying defaults for
// missing fields and rejecting values the engine cannot honor.
func ParseSettings(raw json.RawMessage) (SessionSettings, error) {
	settings := DefaultSettings()
	if len(raw) == 0 {
		return settings, nil
	}

	if err := json.Unmarshal(raw, &settings); err != nil {
		return SessionSettings{}, fmt.Errorf("parse settings: %w", err)
	}

	if settings.Version == 0 {
		settings.Version = settingsVersion
	}
	if settings.Version > settingsVersion {
		return SessionSettings{}, fmt.Errorf("unsupported settings version %d", settings.Version)
	}
	if settings.MatchStrategy == "" {
		settings.MatchStrategy = StrategyAtLeastTwo
	}
	if !settings.MatchStrategy.Valid() {
		return SessionSettings{}, fmt.Errorf("unknown match strategy %q", settings.MatchStrategy)
	}
	if settings.MaxRightSwipes < 0 || settings.MaxLeftSwipes < 0 || settings.MaxMatches < 0 {
		return SessionSettings{}, fmt.Errorf("negative limit in settings")
	}

	return settings, nil
}

func (s SessionSettings) Marshal() (json.RawMessage, error) {
	s.Version = settingsVersion
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal settings: %w", err)
	}
	return data, nil
}

// SessionFilters is the typed form of the sessions.filters blob: the
// catalog query the session browses. Opaque to the engine beyond its
// fingerprint, mutable by any member.
type SessionFilters struct {
	Version   int      `json:"version"`
	Genres    []string `json:"genres,omitempty"`
	YearFrom  int      `json:"yearFrom,omitempty"`
	YearTo    int      `json:"yearTo,omitempty"`
	MediaType string   `json:"mediaType,omitempty"`
	Unwatched bool     `json:"unwatched,omitempty"`
}

func ParseFilters(raw json.RawMessage) (SessionFilters, error) {
	var filters SessionFilters
	if len(raw) == 0 {
		return SessionFilters{Version: settingsVersion}, nil
	}
	if err := json.Unmarshal(raw, &filters); err != nil {
		return SessionFilters{}, fmt.Errorf("parse filters: %w", err)
	}
	if filters.Version == 0 {
		filters.Version = settingsVersion
	}
	if filters.YearFrom < 0 || filters.YearTo < 0 || (filters.YearTo > 0 && filters.YearFrom > filters.YearTo) {
		return SessionFilters{}, fmt.Errorf("invalid year range")
	}
	return filters, nil
}

func (f SessionFilters) Marshal() (json.RawMessage, error) {
	f.Version = settingsVersion
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("marshal filters: %w", err)
	}
	return data, nil
}
