package sqlite

import (
	"context"
	"fmt"
	"os"

	"signalengine/internal/model"

	"gopkg.in/yaml.v3"
)

// seedStrategy is the YAML shape for one bootstrapped strategy. It mirrors
// model.Strategy/model.StrategyConfig field-for-field so the seed file reads
// as plain rule-tree YAML rather than an ad hoc bootstrap format.
type seedStrategy struct {
	Name        string              `yaml:"name"`
	Symbol      string              `yaml:"symbol"`
	Rules       []model.Rule        `yaml:"rules"`
	Aggregation model.AggregationConfig `yaml:"aggregation"`
}

// SeedDefaultStrategies loads strategy definitions from a YAML file and
// upserts any whose (name, symbol) pair is not already present. It is safe
// to call on every startup; existing strategies are left untouched.
func SeedDefaultStrategies(ctx context.Context, s *Store, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("seed: read %s: %w", path, err)
	}

	var seeds []seedStrategy
	if err := yaml.Unmarshal(data, &seeds); err != nil {
		return fmt.Errorf("seed: parse %s: %w", path, err)
	}

	existing, err := s.ListStrategies(ctx)
	if err != nil {
		return fmt.Errorf("seed: list existing strategies: %w", err)
	}
	present := make(map[string]bool, len(existing))
	for _, st := range existing {
		present[st.Symbol+"\x00"+st.Name] = true
	}

	for _, seed := range seeds {
		if present[seed.Symbol+"\x00"+seed.Name] {
			continue
		}
		_, err := s.UpsertStrategy(ctx, model.Strategy{
			Name:   seed.Name,
			Symbol: seed.Symbol,
			Config: model.StrategyConfig{
				Rules:       seed.Rules,
				Aggregation: seed.Aggregation,
			},
		})
		if err != nil {
			return fmt.Errorf("seed: upsert %s/%s: %w", seed.Symbol, seed.Name, err)
		}
	}
	return nil
}
