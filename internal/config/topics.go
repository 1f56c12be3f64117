package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Topic points the web ingestion path at one news index page.
type Topic struct {
	Name        string `yaml:"name"`
	URL         string `yaml:"url"`
	MaxArticles int    `yaml:"max_articles"`
}

type topicsFile struct {
	Topics []Topic `yaml:"topics"`
}

// LoadTopics reads the topics file. A missing file is not an error so
// deployments without web ingestion need no extra configuration. Topics
// without their own max_articles fall back to defaultMaxArticles.
func LoadTopics(path string, defaultMaxArticles int) ([]Topic, error) {
	if defaultMaxArticles <= 0 {
		defaultMaxArticles = 5
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read topics file: %w", err)
	}

	var parsed topicsFile
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse topics file: %w", err)
	}

	out := make([]Topic, 0, len(parsed.Topics))
	for _, topic := range parsed.Topics {
		if topic.URL == "" {
			continue
		}
		if topic.MaxArticles <= 0 {
			topic.MaxArticles = defaultMaxArticles
		}
		out = append(out, topic)
	}
	return out, nil
}
