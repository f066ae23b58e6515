// Package config defines the unified BaseConfig shared by every connector and
// the SyncConfig document consumed by notion-sync.
//
// # Connector settings
//
// Connector specific settings live in Security.Credentials so that the
// registry can hand every factory the same *BaseConfig:
//
//	source:
//	  name: notion
//	  type: notion
//	  security:
//	    credentials:
//	      token: ${NOTION_TOKEN}
//	      start_date: "2023-01-01T00:00:00.000Z"
//	      max_block_depth: "30"
//	destination:
//	  name: out
//	  type: json
//	  security:
//	    credentials:
//	      path: ./out/records.jsonl
//	state_path: ./state.json
//	mode: incremental
//
// # Loading order
//
// LoadSync applies, in order: NewSyncConfig defaults, the YAML file (with
// ${VAR} substitution), then NOTION_SYNC_* environment overrides through
// viper. NOTION_TOKEN is accepted as an alias of NOTION_SYNC_TOKEN.
package config
