package notion

import (
	"github.com/shayan-nathan/airbyte/pkg/config"
	"github.com/shayan-nathan/airbyte/pkg/connector/core"
	"github.com/shayan-nathan/airbyte/pkg/connector/registry"
	"github.com/shayan-nathan/airbyte/pkg/errors"
)

func init() {
	_ = registry.RegisterSource("notion", func(cfg *config.BaseConfig) (core.Source, error) {
		if cfg == nil {
			return nil, errors.New(errors.ErrorTypeConfig, "notion source requires a configuration")
		}
		if _, err := ParseSettings(cfg); err != nil {
			return nil, err
		}
		return NewSource(cfg.Name), nil
	})
	registry.Describe(core.ConnectorMetadata{
		Name:         "notion",
		Type:         core.ConnectorTypeSource,
		Version:      Version,
		Description:  "Notion workspaces: users, databases, pages, blocks and comments",
		Capabilities: []string{"incremental", "full_refresh"},
	})
}
