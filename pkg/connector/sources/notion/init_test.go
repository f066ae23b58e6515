package notion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shayan-nathan/airbyte/pkg/config"
	"github.com/shayan-nathan/airbyte/pkg/connector/core"
	"github.com/shayan-nathan/airbyte/pkg/connector/registry"
)

func TestRegisteredInGlobalRegistry(t *testing.T) {
	cfg := config.NewBaseConfig("workspace", "notion")
	cfg.Security.SetCredential(CredToken, "secret")

	src, err := registry.CreateSource("notion", cfg)
	require.NoError(t, err)
	assert.Equal(t, "workspace", src.(*Source).Name())
	assert.True(t, src.SupportsIncremental())

	md, ok := registry.GetRegistry().Metadata(core.ConnectorTypeSource, "notion")
	require.True(t, ok)
	assert.Equal(t, Version, md.Version)

	_, err = registry.CreateSource("notion", config.NewBaseConfig("workspace", "notion"))
	assert.Error(t, err)
}
