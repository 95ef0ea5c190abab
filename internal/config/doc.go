// Package config provides user configuration management for midiboot.
//
// This package manages a YAML-based configuration file that stores what
// midiboot has learned about the devices on each MIDI port (identity, boot
// code version, bank table, last update) together with application
// preferences. The configuration follows OS-specific conventions for
// storage location.
//
// # Configuration File Location
//
// The configuration file is stored in platform-appropriate locations:
//   - Linux: $XDG_CONFIG_HOME/midiboot/config.yaml or $HOME/.config/midiboot/config.yaml
//   - macOS: $HOME/.config/midiboot/config.yaml
//   - Windows: %LOCALAPPDATA%\midiboot\config.yaml
//
// # Usage Example
//
//	registry, err := config.LoadRegistry()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	registry.RecordIdentity("/dev/ttyUSB0", ident)
//	hints := registry.Hints("/dev/ttyUSB0", nil)
//
//	// Save changes atomically
//	if err := registry.Save(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Thread Safety
//
// The global registry uses sync.Once for safe initialization across goroutines.
// File writes are protected by a mutex and go through a temporary file.
package config
