package common

import "fmt"

var (
	ErrEntryAlreadyExists = fmt.Errorf("entry already exists")
	ErrEntryNotFound      = fmt.Errorf("entry not found")
	ErrCancelled          = fmt.Errorf("cancelled by user")
	ErrInvalidName        = fmt.Errorf("invalid entry name")
	ErrInvalidPath        = fmt.Errorf("invalid executable path")
	ErrInvalidAppID       = fmt.Errorf("invalid steam appid")
	ErrSteamRootNotFound  = fmt.Errorf("steam installation not found")
)
