// Package defaults provides embedded default assets (config and agent prompt templates).
package defaults

import (
	"embed"
	"io/fs"
)

//go:embed default_config.toml
var DefaultConfigTOML []byte

//go:embed prompts/*.md
var prompts embed.FS

// Prompt returns the built-in prompt template with the given name
// (e.g. "router", "linux_command").
func Prompt(name string) (string, error) {
	data, err := fs.ReadFile(prompts, "prompts/"+name+".md")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
