// Package app wires application dependencies for the CLI.
//
// It loads Config from the YAML file and the environment, builds the zerolog
// logger, opens the passphrase-sealed store, and exposes the room key and
// backup key services via the Wire struct for commands to use.
package app
