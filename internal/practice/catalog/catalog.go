// ============================================================================
// hatsuon - Pronunciation Trainer
// ============================================================================
//
// Package:     catalog
// Description: Lesson utterances and the providers that supply them
// Author:      Mike Stoffels
// Created:     2025-12-09
// License:     MIT
// ============================================================================

// Package catalog supplies lesson utterances and their reference audio. The
// catalog is read-only input: it comes from the backend's phrase endpoint or
// from a local YAML/JSON file.
package catalog

import (
	"context"

	hterror "github.com/msto63/hatsuon/foundation/core/error"
)

// Status is the progress badge of a lesson
type Status string

const (
	StatusNotStarted Status = "not-started"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
)

// Utterance is one prompt a learner pronounces
type Utterance struct {
	ID          string `json:"id" yaml:"id"`
	Text        string `json:"text" yaml:"text"`
	Romaji      string `json:"romaji" yaml:"romaji"`
	Translation string `json:"translation" yaml:"translation"`
	AudioURL    string `json:"audio_url" yaml:"audio_url"`
	Status      Status `json:"status,omitempty" yaml:"status,omitempty"`
}

// Provider lists lesson utterances
type Provider interface {
	List(ctx context.Context) ([]Utterance, error)
	Get(ctx context.Context, id string) (Utterance, error)
}

// AudioFetcher retrieves reference audio (WAV) by lesson id
type AudioFetcher interface {
	ReferenceAudio(ctx context.Context, id string) ([]byte, error)
}

// ErrNotFound matches lookups of unknown lesson ids
var ErrNotFound = hterror.New("lesson not found").WithCode(hterror.CodeNotFound)

func notFound(id string) *hterror.Error {
	return hterror.Newf("lesson %q not found", id).
		WithCode(hterror.CodeNotFound).
		WithDetail("lesson_id", id)
}

// Find returns the utterance with id from list
func Find(list []Utterance, id string) (Utterance, bool) {
	for _, u := range list {
		if u.ID == id {
			return u, true
		}
	}
	return Utterance{}, false
}

// validate rejects lists with empty or duplicate ids
func validate(list []Utterance) error {
	seen := make(map[string]bool, len(list))
	for i, u := range list {
		if u.ID == "" {
			return hterror.Newf("utterance %d has no id", i).
				WithCode(hterror.CodeInvalidInput)
		}
		if seen[u.ID] {
			return hterror.Newf("duplicate lesson id %q", u.ID).
				WithCode(hterror.CodeInvalidInput).
				WithDetail("lesson_id", u.ID)
		}
		seen[u.ID] = true
	}
	return nil
}
