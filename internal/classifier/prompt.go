package classifier

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/edgard/inboxintel/internal/text"
)

//go:embed prompts.yaml
var defaultPrompts []byte

// messagePlaceholder is replaced with the guest message text.
const messagePlaceholder = "{{message_text}}"

// Prompt is the classification prompt template.
type Prompt struct {
	template string
}

type promptFile struct {
	Classification struct {
		SystemPrompt string `yaml:"system_prompt"`
	} `yaml:"classification"`
}

// LoadPrompt reads the prompt file at path, or the embedded default when
// path is empty.
func LoadPrompt(path string) (*Prompt, error) {
	data := defaultPrompts
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read prompt file %s: %w", path, err)
		}
	}
	return ParsePrompt(data)
}

// ParsePrompt parses a prompt file body.
func ParsePrompt(data []byte) (*Prompt, error) {
	var pf promptFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("failed to parse prompt file: %w", err)
	}

	tmpl := strings.TrimSpace(pf.Classification.SystemPrompt)
	if tmpl == "" {
		return nil, fmt.Errorf("prompt file has no classification.system_prompt")
	}
	if !strings.Contains(tmpl, messagePlaceholder) {
		return nil, fmt.Errorf("classification prompt is missing the %s placeholder", messagePlaceholder)
	}
	return &Prompt{template: tmpl}, nil
}

// Render returns the prompt for a guest message.
func (p *Prompt) Render(message string) string {
	return strings.ReplaceAll(p.template, messagePlaceholder, text.Clean(message))
}
