//go:build windows

package registry

import (
	"path/filepath"

	"golang.org/x/sys/windows/registry"
)

type registryValue struct {
	root  registry.Key
	path  string
	value string
}

var steamRegistryValues = []registryValue{
	{registry.CURRENT_USER, `Software\Valve\Steam`, "SteamPath"},
	{registry.LOCAL_MACHINE, `SOFTWARE\WOW6432Node\Valve\Steam`, "InstallPath"},
	{registry.LOCAL_MACHINE, `SOFTWARE\Valve\Steam`, "InstallPath"},
}

func platformRoots() []string {
	var roots []string

	for _, rv := range steamRegistryValues {
		if path, ok := readString(rv); ok {
			roots = append(roots, filepath.FromSlash(path))
		}
	}

	return roots
}

func readString(rv registryValue) (string, bool) {
	k, err := registry.OpenKey(rv.root, rv.path, registry.QUERY_VALUE)
	if err != nil {
		return "", false
	}
	defer k.Close()

	s, _, err := k.GetStringValue(rv.value)
	if err != nil || s == "" {
		return "", false
	}

	return s, true
}
