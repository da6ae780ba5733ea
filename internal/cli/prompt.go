package cli

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Prompt is the structure of a TOML prompt file.
type Prompt struct {
	System string `toml:"system"`
}

// LoadPrompt reads the system prompt from a TOML file.
func LoadPrompt(filePath string) (*Prompt, error) {
	var prompt Prompt
	if _, err := toml.DecodeFile(filePath, &prompt); err != nil {
		return nil, fmt.Errorf("error decoding prompt file: %w", err)
	}
	return &prompt, nil
}
