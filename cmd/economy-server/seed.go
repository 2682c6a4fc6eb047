package main

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"pawshop-economy/internal/store"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

type seedDocument struct {
	ConfigType string `yaml:"configType"`
	Version    string `yaml:"version"`
	Data       any    `yaml:"data"`
}

type seedFile struct {
	Documents []seedDocument `yaml:"documents"`
}

// seedConfigs publishes the YAML seed documents for any config type that has
// no documents yet. Types that already have history are left alone, so a
// restart never clobbers an operator's published versions.
func seedConfigs(ctx context.Context, st *store.Store, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var f seedFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return err
	}

	now := time.Now().UTC()
	for _, doc := range f.Documents {
		n, err := st.CountConfigs(ctx, doc.ConfigType)
		if err != nil {
			return err
		}
		if n > 0 {
			log.Debug().Str("config_type", doc.ConfigType).Msg("config already present, seed skipped")
			continue
		}
		data, err := json.Marshal(doc.Data)
		if err != nil {
			return err
		}
		id, err := st.PublishConfig(ctx, store.ConfigDocument{
			ConfigType:    doc.ConfigType,
			Version:       doc.Version,
			Data:          data,
			EffectiveFrom: now,
			IsActive:      true,
		})
		if err != nil {
			return err
		}
		log.Info().Str("config_type", doc.ConfigType).Str("version", doc.Version).Str("id", id).
			Msg("config seeded")
	}
	return nil
}
