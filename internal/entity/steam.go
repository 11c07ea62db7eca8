package entity

import "github.com/google/uuid"

// SteamTitle describes an installed Steam title found by discovery. It is
// never persisted, only offered for import.
type SteamTitle struct {
	AppID      AppID  `yaml:"appid"`
	Name       string `yaml:"name"`
	InstallDir string `yaml:"installdir"`
	LibraryDir string `yaml:"library"` // Steam library the manifest was found in
}

// LaunchResult is the outcome of a fire-and-forget launch. The child process
// is not observed after it has been started.
type LaunchResult struct {
	ID      uuid.UUID
	EntryID int64
	OK      bool
	Err     error
}
