// Package app wires the application together: it owns the logger, loads
// the project configuration, registers capability modules, and drives
// builds through the engine and composer. Process-level concerns (flags,
// exit codes) live in the cli package.
package app
