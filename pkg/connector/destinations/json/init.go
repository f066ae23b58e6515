package json

import (
	"github.com/shayan-nathan/airbyte/pkg/connector/core"
	"github.com/shayan-nathan/airbyte/pkg/connector/registry"
)

func init() {
	_ = registry.RegisterDestination("json", NewJSONDestination)
	registry.Describe(core.ConnectorMetadata{
		Name:         "json",
		Type:         core.ConnectorTypeDestination,
		Version:      "1.0.0",
		Description:  "JSON Lines or JSON array output to a file or stdout, optionally gzip, zstd or lz4 compressed",
		Capabilities: []string{"json_lines", "json_array", "gzip", "zstd", "lz4", "stdout"},
	})
}
