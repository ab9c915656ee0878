// Package scoring wraps the enhancement-scoring collaborator. Results are
// advisory metadata attached to events; nothing in the realtime core ever
// routes on them.
package scoring

import (
	"strings"

	"teamgrid/backend/internal/config"
	"teamgrid/backend/internal/models"
)

// Result is the collaborator's verdict for one event.
type Result struct {
	Confidence float64  `json:"confidence"`
	Tags       []string `json:"tags"`
}

// Scorer scores a single event.
type Scorer interface {
	Score(ev models.Event) (Result, error)
}

// Heuristic is the local stand-in for the upstream scoring engine. It
// derives a confidence from content shape and tags recognizable markers,
// which is all the consumers ever read from the real engine's output.
type Heuristic struct{}

func (Heuristic) Score(ev models.Event) (Result, error) {
	content := ev.Content
	confidence := 0.5
	if n := len(content); n > 0 {
		bonus := float64(n) / 1000
		if bonus > 0.2 {
			bonus = 0.2
		}
		confidence += bonus
	}

	var tags []string
	lower := strings.ToLower(content)
	if strings.Contains(content, "?") {
		tags = append(tags, "question")
		confidence += config.ScoringWeights["question"]
	}
	if strings.Contains(lower, "urgent") || strings.Contains(lower, "asap") {
		tags = append(tags, "urgent")
		confidence += config.ScoringWeights["urgent"]
	}
	if strings.Contains(content, "@") {
		tags = append(tags, "mention")
		confidence += config.ScoringWeights["mention"]
	}

	if confidence > 0.99 {
		confidence = 0.99
	}
	return Result{Confidence: confidence, Tags: tags}, nil
}
