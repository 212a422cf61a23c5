package main

import (
	"github.com/planexec/planexec/chatgen"
	"github.com/planexec/planexec/chatgen/anthropic"
)

// anthropicGenerator builds the production chat generator backend. A
// distinct file keeps main.go focused on process wiring.
func anthropicGenerator(apiKey, model string) (chatgen.Generator, error) {
	return anthropic.NewFromAPIKey(apiKey, model)
}
