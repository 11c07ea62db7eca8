package entity

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type Source string

const (
	SourceLocal Source = "local"
	SourceSteam Source = "steam"
)

// AppID is a Steam application identifier. Older documents store it as a JSON
// number, so it is accepted in both forms and always written as a string.
type AppID string

func (a *AppID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}

		*a = AppID(s)

		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("appid must be a string or a number: %w", err)
	}

	*a = AppID(n.String())

	return nil
}

// Entry is one playable item of the library. Order of entries in the
// collection is user controlled.
type Entry struct {
	ID     int64   `json:"id"`     // Minted at creation, never reused
	Name   string  `json:"name"`   // Display name, renamable
	Source Source  `json:"source"` // Immutable after creation
	Path   *string `json:"path"`   // Executable, set only for local entries
	AppID  *AppID  `json:"appid"`  // Set only for steam entries
	Image  *string `json:"image"`  // Optional cover art
}

// Valid reports whether exactly one of Path or AppID is set and it matches Source.
func (e Entry) Valid() bool {
	switch e.Source {
	case SourceLocal:
		return e.Path != nil && *e.Path != "" && e.AppID == nil
	case SourceSteam:
		return e.AppID != nil && *e.AppID != "" && e.Path == nil
	}

	return false
}

func StringPtr(s string) *string {
	return &s
}

func AppIDPtr(id AppID) *AppID {
	return &id
}
