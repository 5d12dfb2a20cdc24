// Package app contains the core application logic. It wires the operator
// registry, the executor strategy, the metadata service and the health
// check server together, decoupled from any specific entrypoint like a CLI.
package app
