package lexical

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Lexicon is the vocabulary the expander matches against.
// Words use the generic fuzzy threshold, Tags the stricter tag threshold.
type Lexicon struct {
	Words    []string            `yaml:"words"`
	Tags     []string            `yaml:"tags"`
	Synonyms map[string][]string `yaml:"synonyms"`
}

// LoadLexicon reads a YAML lexicon file.
func LoadLexicon(path string) (*Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read lexicon: %w", err)
	}
	var lex Lexicon
	if err := yaml.Unmarshal(data, &lex); err != nil {
		return nil, fmt.Errorf("failed to parse lexicon: %w", err)
	}
	return &lex, nil
}

// Merge returns a new lexicon holding the entries of l followed by those of other.
func (l *Lexicon) Merge(other *Lexicon) *Lexicon {
	out := &Lexicon{Synonyms: make(map[string][]string)}
	for _, src := range []*Lexicon{l, other} {
		if src == nil {
			continue
		}
		out.Words = append(out.Words, src.Words...)
		out.Tags = append(out.Tags, src.Tags...)
		for k, v := range src.Synonyms {
			out.Synonyms[k] = append(out.Synonyms[k], v...)
		}
	}
	return out
}

// DefaultLexicon is the built-in vocabulary of the discovery platform.
func DefaultLexicon() *Lexicon {
	return &Lexicon{
		Words: []string{
			"analytics", "android", "api", "application", "automation", "backend", "blockchain",
			"chatbot", "cloud", "community", "dashboard", "database", "design", "designer",
			"developer", "directory", "docker", "ecommerce", "editor", "education", "email",
			"engineer", "extension", "finance", "fitness", "framework", "freelance", "frontend",
			"fullstack", "health", "hiring", "intelligence", "javascript", "kubernetes", "learning",
			"machine", "manager", "marketing", "marketplace", "mobile", "monitoring", "music",
			"newsletter", "notes", "payments", "platform", "plugin", "portfolio", "product",
			"productivity", "python", "react", "remote", "scheduling", "security", "social",
			"startup", "template", "testing", "tracker", "travel", "typescript", "video", "writing",
		},
		Tags: []string{
			"ai", "analytics", "design", "devtools", "fintech", "golang", "javascript", "marketing",
			"nocode", "opensource", "productivity", "python", "react", "rust", "saas", "typescript",
		},
		Synonyms: map[string][]string{
			"ai":       {"artificial intelligence", "machine learning"},
			"ml":       {"machine learning"},
			"js":       {"javascript"},
			"ts":       {"typescript"},
			"golang":   {"go"},
			"k8s":      {"kubernetes"},
			"frontend": {"front-end", "ui"},
			"backend":  {"back-end", "server"},
			"dev":      {"developer"},
			"devops":   {"sre"},
			"ux":       {"user experience"},
			"saas":     {"software as a service"},
			"remote":   {"work from home"},
			"crypto":   {"blockchain", "web3"},
			"app":      {"application"},
		},
	}
}
