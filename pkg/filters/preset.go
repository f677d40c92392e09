package filters

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ritzau/insights-dashboard/pkg/model"
)

// LoadPreset reads a YAML file of filter key -> value pairs. Keys that are not
// listed are empty. Unknown keys are an error so typos do not silently widen the query.
//
//	topic: oil
//	region: Asia
//	end_year: 2025
func LoadPreset(path string) (model.FilterSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.FilterSet{}, fmt.Errorf("reading preset: %w", err)
	}
	return ParsePreset(data)
}

// ParsePreset decodes preset YAML. Scalar values are taken as written, so
// end_year: 2025 becomes "2025".
func ParsePreset(data []byte) (model.FilterSet, error) {
	var raw map[string]yaml.Node
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return model.FilterSet{}, fmt.Errorf("parsing preset: %w", err)
	}

	var set model.FilterSet
	for name, node := range raw {
		key, err := model.ParseFilterKey(name)
		if err != nil {
			return model.FilterSet{}, fmt.Errorf("preset line %d: %w", node.Line, err)
		}
		if node.Kind != yaml.ScalarNode {
			return model.FilterSet{}, fmt.Errorf("preset line %d: %s must be a scalar", node.Line, name)
		}
		value := node.Value
		if node.Tag == "!!null" {
			value = ""
		}
		set = set.With(key, value)
	}
	return set, nil
}
