// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package config

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/smithrashell/CodeMaster-sub008/pkg/types"
)

// TagCatalogYAML is the on-disk shape of the tag-relationship catalog.
type TagCatalogYAML struct {
	Version string         `yaml:"version"`
	Tags    []TagEntryYAML `yaml:"tags"`
}

// TagEntryYAML is one catalog tag.
type TagEntryYAML struct {
	Tag            string             `yaml:"tag"`
	Classification string             `yaml:"classification"`
	Related        map[string]float64 `yaml:"related"`
}

// LoadTagCatalog reads and validates a YAML tag-relationship catalog.
//
// Hard errors (bad YAML, missing tag names, unknown classifications,
// duplicate tags, out-of-range weights) fail the load. Soft issues
// (related references to tags outside the catalog) are logged as warnings
// and the dangling reference is dropped, so a trimmed catalog still loads.
func LoadTagCatalog(path string, logger *zap.Logger) ([]types.TagRelationship, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tag catalog %s: %w", path, err)
	}

	var catalog TagCatalogYAML
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("failed to parse tag catalog %s: %w", path, err)
	}

	return buildTagCatalog(catalog, logger)
}

func buildTagCatalog(catalog TagCatalogYAML, logger *zap.Logger) ([]types.TagRelationship, error) {
	if len(catalog.Tags) == 0 {
		return nil, fmt.Errorf("tag catalog has no tags")
	}

	known := make(map[string]bool, len(catalog.Tags))
	for _, entry := range catalog.Tags {
		if entry.Tag == "" {
			return nil, fmt.Errorf("tag catalog entry missing tag name")
		}
		if known[entry.Tag] {
			return nil, fmt.Errorf("duplicate tag %q in catalog", entry.Tag)
		}
		known[entry.Tag] = true
	}

	out := make([]types.TagRelationship, 0, len(catalog.Tags))
	for _, entry := range catalog.Tags {
		classification, err := parseClassification(entry.Classification)
		if err != nil {
			return nil, fmt.Errorf("tag %q: %w", entry.Tag, err)
		}

		related := make(map[string]float64, len(entry.Related))
		for other, weight := range entry.Related {
			if weight <= 0 || weight > 1 {
				return nil, fmt.Errorf("tag %q: weight to %q must be in (0, 1], got %v", entry.Tag, other, weight)
			}
			if other == entry.Tag {
				logger.Warn("dropping self relationship", zap.String("tag", entry.Tag))
				continue
			}
			if !known[other] {
				logger.Warn("dropping relationship to unknown tag",
					zap.String("tag", entry.Tag),
					zap.String("related", other))
				continue
			}
			related[other] = weight
		}

		out = append(out, types.TagRelationship{
			Tag:            entry.Tag,
			Classification: classification,
			Related:        related,
		})
	}

	logger.Info("tag catalog loaded",
		zap.String("version", catalog.Version),
		zap.Int("tags", len(out)))
	return out, nil
}

func parseClassification(s string) (types.TagClassification, error) {
	switch types.TagClassification(s) {
	case types.ClassificationCoreConcept, types.ClassificationFundamentalTechnique, types.ClassificationAdvancedTechnique:
		return types.TagClassification(s), nil
	default:
		return "", fmt.Errorf("unknown classification %q", s)
	}
}
