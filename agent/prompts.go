package agent

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	defaults "github.com/berkucuk/archchan/default"
)

// promptNames lists every template the agents render.
var promptNames = []string{
	"router",
	"linux_command",
	"weather",
	"friend_chat",
	"web_search",
	"web_search_summary",
	"calculator",
	"system_info",
	"security_advisor",
	"vulnerability_info",
	"vulnerability_summary",
	"hash_checker",
}

// PromptData holds the values prompt templates may reference.
type PromptData struct {
	Language        string
	Distro          string
	RecentCommands  []string
	RelatedCommands []string
	Query           string
	Value           string
	Kind            string
}

var promptFuncs = template.FuncMap{
	"bullet": func(items []string) string {
		if len(items) == 0 {
			return ""
		}
		var sb strings.Builder
		for _, item := range items {
			sb.WriteString("- ")
			sb.WriteString(item)
			sb.WriteString("\n")
		}
		return strings.TrimSuffix(sb.String(), "\n")
	},
}

// Prompts holds parsed templates: user overrides where they parse, the
// built-in defaults otherwise.
type Prompts struct {
	custom   map[string]*template.Template
	builtins map[string]*template.Template
}

// LoadPrompts parses the built-in templates and any overrides named
// <name>.md in dir. An empty dir loads the built-ins only.
func LoadPrompts(dir string) (*Prompts, error) {
	p := &Prompts{
		custom:   make(map[string]*template.Template),
		builtins: make(map[string]*template.Template),
	}
	for _, name := range promptNames {
		src, err := defaults.Prompt(name)
		if err != nil {
			return nil, fmt.Errorf("built-in prompt %s: %w", name, err)
		}
		t, err := template.New(name).Funcs(promptFuncs).Parse(src)
		if err != nil {
			return nil, fmt.Errorf("parse built-in prompt %s: %w", name, err)
		}
		p.builtins[name] = t

		if dir == "" {
			continue
		}
		path := filepath.Join(dir, name+".md")
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		custom, err := template.New(name).Funcs(promptFuncs).Parse(string(data))
		if err != nil {
			slog.Warn("failed to parse custom prompt, using built-in default", "path", path, "error", err)
			continue
		}
		slog.Info("loaded custom prompt", "path", path)
		p.custom[name] = custom
	}
	return p, nil
}

// Render executes the named template. A custom template that fails to
// execute falls back to the built-in one.
func (p *Prompts) Render(name string, data PromptData) string {
	if t, ok := p.custom[name]; ok {
		var buf strings.Builder
		err := t.Execute(&buf, data)
		if err == nil {
			return strings.TrimRight(buf.String(), " \t\n")
		}
		slog.Warn("failed to execute custom prompt, falling back to default", "prompt", name, "error", err)
	}
	t, ok := p.builtins[name]
	if !ok {
		slog.Error("unknown prompt", "prompt", name)
		return ""
	}
	var buf strings.Builder
	if err := t.Execute(&buf, data); err != nil {
		slog.Error("failed to execute built-in prompt", "prompt", name, "error", err)
	}
	return strings.TrimRight(buf.String(), " \t\n")
}
