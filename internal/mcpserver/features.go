package mcpserver

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	gherkin "github.com/cucumber/gherkin/go/v26"
	messages "github.com/cucumber/messages/go/v21"
	"github.com/google/uuid"
)

// FeatureInfo summarizes one feature file.
type FeatureInfo struct {
	Path      string         `json:"path"`
	Name      string         `json:"name"`
	Tags      []string       `json:"tags,omitempty"`
	Scenarios []ScenarioInfo `json:"scenarios"`
}

// ScenarioInfo summarizes one scenario or scenario outline.
type ScenarioInfo struct {
	Name      string   `json:"name"`
	Tags      []string `json:"tags,omitempty"`
	StepCount int      `json:"step_count"`
	Outline   bool     `json:"outline,omitempty"`
}

// LoadFeatures parses every .feature file under paths. A path may be a
// file or a directory.
func LoadFeatures(paths []string) ([]FeatureInfo, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read feature path %s: %w", p, err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.HasSuffix(d.Name(), ".feature") {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", p, err)
		}
	}
	sort.Strings(files)

	features := make([]FeatureInfo, 0, len(files))
	for _, f := range files {
		info, err := parseFeature(f)
		if err != nil {
			return nil, err
		}
		features = append(features, info)
	}
	return features, nil
}

func parseFeature(path string) (FeatureInfo, error) {
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return FeatureInfo{}, fmt.Errorf("failed to open feature %s: %w", path, err)
	}
	defer file.Close()

	doc, err := gherkin.ParseGherkinDocument(file, uuid.NewString)
	if err != nil {
		return FeatureInfo{}, fmt.Errorf("failed to parse feature %s: %w", path, err)
	}
	info := FeatureInfo{Path: path, Scenarios: []ScenarioInfo{}}
	if doc.Feature == nil {
		return info, nil
	}
	info.Name = doc.Feature.Name
	info.Tags = tagNames(doc.Feature.Tags)

	for _, child := range doc.Feature.Children {
		if child.Scenario != nil {
			info.Scenarios = append(info.Scenarios, scenarioInfo(child.Scenario))
		}
		if child.Rule != nil {
			for _, rc := range child.Rule.Children {
				if rc.Scenario != nil {
					info.Scenarios = append(info.Scenarios, scenarioInfo(rc.Scenario))
				}
			}
		}
	}
	return info, nil
}

func scenarioInfo(s *messages.Scenario) ScenarioInfo {
	return ScenarioInfo{
		Name:      s.Name,
		Tags:      tagNames(s.Tags),
		StepCount: len(s.Steps),
		Outline:   len(s.Examples) > 0,
	}
}

func tagNames(tags []*messages.Tag) []string {
	var out []string
	for _, t := range tags {
		out = append(out, strings.TrimPrefix(t.Name, "@"))
	}
	return out
}
