// Package urls holds the documentation links printed by the CLI, so they
// can be moved in one place.
package urls
