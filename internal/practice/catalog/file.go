// ============================================================================
// hatsuon - Pronunciation Trainer
// ============================================================================
//
// Package:     catalog
// Description: Offline lesson catalog loaded from YAML or JSON
// Author:      Mike Stoffels
// Created:     2025-12-09
// License:     MIT
// ============================================================================

package catalog

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	hterror "github.com/msto63/hatsuon/foundation/core/error"
)

// fileCatalog is the document layout; a bare list is accepted as well
type fileCatalog struct {
	Phrases []Utterance `json:"phrases" yaml:"phrases"`
}

// FileSource serves a catalog from a local file. Reference audio is read
// from AudioURL, resolved relative to the catalog file.
type FileSource struct {
	path       string
	utterances []Utterance
}

// LoadFile reads a .yaml, .yml or .json catalog
func LoadFile(path string) (*FileSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, hterror.Wrap(err, "failed to read catalog file").
			WithCode(hterror.CodeConfigError).
			WithDetail("path", path)
	}

	list, err := decode(data, strings.ToLower(filepath.Ext(path)))
	if err != nil {
		return nil, hterror.Wrap(err, "failed to parse catalog file").
			WithCode(hterror.CodeConfigError).
			WithDetail("path", path)
	}
	if err := validate(list); err != nil {
		return nil, err
	}
	return &FileSource{path: path, utterances: list}, nil
}

func decode(data []byte, ext string) ([]Utterance, error) {
	var doc fileCatalog
	var list []Utterance

	switch ext {
	case ".json":
		if strings.HasPrefix(strings.TrimSpace(string(data)), "[") {
			err := json.Unmarshal(data, &list)
			return list, err
		}
		err := json.Unmarshal(data, &doc)
		return doc.Phrases, err
	default:
		var node yaml.Node
		if err := yaml.Unmarshal(data, &node); err != nil {
			return nil, err
		}
		if len(node.Content) > 0 && node.Content[0].Kind == yaml.SequenceNode {
			err := node.Decode(&list)
			return list, err
		}
		err := node.Decode(&doc)
		return doc.Phrases, err
	}
}

// List implements Provider
func (f *FileSource) List(ctx context.Context) ([]Utterance, error) {
	return append([]Utterance(nil), f.utterances...), nil
}

// Get implements Provider
func (f *FileSource) Get(ctx context.Context, id string) (Utterance, error) {
	if u, ok := Find(f.utterances, id); ok {
		return u, nil
	}
	return Utterance{}, notFound(id)
}

// ReferenceAudio implements AudioFetcher
func (f *FileSource) ReferenceAudio(ctx context.Context, id string) ([]byte, error) {
	u, ok := Find(f.utterances, id)
	if !ok {
		return nil, notFound(id)
	}
	if u.AudioURL == "" {
		return nil, hterror.Newf("lesson %q has no reference audio", id).
			WithCode(hterror.CodeNotFound)
	}

	path := u.AudioURL
	if !filepath.IsAbs(path) {
		path = filepath.Join(filepath.Dir(f.path), path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, hterror.Wrap(err, "failed to read reference audio").
			WithCode(hterror.CodeNotFound).
			WithDetail("path", path)
	}
	return data, nil
}
