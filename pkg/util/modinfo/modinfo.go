// Package modinfo is the Forge mod list the proxy
// announces in server list pings.
package modinfo

// Default is announced when the proxy presents itself as a
// Forge server but knows no mods of its backends.
var Default = &ModInfo{Type: "FML", Mods: []Mod{}}

// ModInfo is the "modinfo" object of a legacy Forge ping response.
type ModInfo struct {
	Type string `json:"type"`
	Mods []Mod  `json:"modList"`
}

// Mod is one entry of the mod list.
type Mod struct {
	ID      string `json:"modid"`
	Version string `json:"version"`
}
