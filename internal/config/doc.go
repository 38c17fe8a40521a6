// Package config provides configuration loading, merging, and path
// management for the agent runtime.
//
// # Configuration Loading
//
// Load implements a three-tier loading strategy, later sources
// overriding earlier ones:
//
//  1. Global config (~/.config/agentrt/agentrt.json[c])
//  2. Project config (<directory>/.agentrt/agentrt.json[c])
//  3. Environment variables (AGENTRT_MODEL, AGENTRT_PROVIDER, and the
//     per-provider API key variables; an API key variable only fills a
//     provider key that no config file set)
//
// # Supported Formats
//
// Both JSON and JSONC (JSON with comments) are accepted; JSONC files
// have their // and /* */ comments stripped before parsing.
//
// # Configuration Merging
//
// When multiple sources are found they are merged field by field:
// scalars overwrite, maps combine key by key, and a zero-valued struct
// field in the source leaves the target's existing value untouched.
//
// # Path Management
//
// GetPaths returns XDG Base Directory Specification compliant paths:
//   - Data: ~/.local/share/agentrt (XDG_DATA_HOME)
//   - Config: ~/.config/agentrt (XDG_CONFIG_HOME)
//   - Cache: ~/.cache/agentrt (XDG_CACHE_HOME)
//   - State: ~/.local/state/agentrt (XDG_STATE_HOME)
//
// On Windows these are adapted to use APPDATA.
package config
