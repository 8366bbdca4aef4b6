package server

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"jobq/internal/models"
)

type resultsFrontMatter struct {
	SessionID   string    `yaml:"session_id"`
	GeneratedAt time.Time `yaml:"generated_at"`
	Results     int       `yaml:"results"`
}

// renderResultsMarkdown renders the results of a session as a Markdown
// document with YAML front matter. Every line of every result becomes one
// list item.
func renderResultsMarkdown(sessionID string, generatedAt time.Time, results []models.ProcessedResult) ([]byte, error) {
	meta, err := yaml.Marshal(resultsFrontMatter{
		SessionID:   sessionID,
		GeneratedAt: generatedAt.UTC(),
		Results:     len(results),
	})
	if err != nil {
		return nil, fmt.Errorf("encode front matter: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(meta)
	buf.WriteString("---\n\n")
	for _, result := range results {
		for _, line := range strings.Split(strings.TrimRight(result.Message, "\n"), "\n") {
			buf.WriteString("- ")
			buf.WriteString(strings.TrimRight(line, "\r"))
			buf.WriteString("  \n")
		}
	}
	return buf.Bytes(), nil
}

func resultsFileName(generatedAt time.Time) string {
	return generatedAt.UTC().Format("2006-01-02") + "-notes.md"
}
