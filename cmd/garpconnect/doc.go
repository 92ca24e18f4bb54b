// Package main hosts the garpconnect CLI entrypoint and command graph.
//
// The Cobra-based command tree covers running the connector in the
// foreground, inspecting the processing journal, one-shot file
// processing, carrier service point lookups, and configuration
// scaffolding. Heavy lifting lives in the internal packages; commands
// here only resolve configuration and render output.
package main
