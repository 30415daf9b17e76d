package chatsurface

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

var defaultQuestions = []string{
	"How was the overall performance of the sprint?",
	"What was good? Please mention everything separately.",
	"What was challenging or difficult? Please mention everything separately.",
	"What did you learn or experience?",
	"Is there anything you could change in the future sprint?",
}

func DefaultQuestions() []string {
	return append([]string(nil), defaultQuestions...)
}

type questionsFile struct {
	Questions []string `yaml:"questions"`
}

// LoadQuestions reads a YAML file of the form `questions: [...]`.
func LoadQuestions(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseQuestions(raw)
}

func ParseQuestions(raw []byte) ([]string, error) {
	var f questionsFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse questions: %w", err)
	}
	out := make([]string, 0, len(f.Questions))
	for _, q := range f.Questions {
		if q = strings.TrimSpace(q); q != "" {
			out = append(out, q)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("questions file has no questions")
	}
	return out, nil
}
