package notion

import (
	"strconv"
	"strings"
	"time"

	"github.com/shayan-nathan/airbyte/pkg/config"
	"github.com/shayan-nathan/airbyte/pkg/errors"
)

// Credential keys read from SecurityConfig.Credentials.
const (
	CredToken         = "token"
	CredStartDate     = "start_date"
	CredBaseURL       = "base_url"
	CredNotionVersion = "notion_version"
	CredPageSize      = "page_size"
	CredMaxBlockDepth = "max_block_depth"
)

// Defaults for the Notion public API.
const (
	DefaultBaseURL       = "https://api.notion.com"
	DefaultNotionVersion = "2022-06-28"
	DefaultPageSize      = 100
	DefaultMaxBlockDepth = 30
)

// Settings are the Notion specific options of a source.
type Settings struct {
	Token         string
	StartDate     time.Time
	BaseURL       string
	NotionVersion string
	PageSize      int
	MaxBlockDepth int
}

// ParseSettings extracts Settings from the credentials of cfg. The token is
// required; an absent start_date means the Unix epoch.
func ParseSettings(cfg *config.BaseConfig) (*Settings, error) {
	sec := cfg.Security
	s := &Settings{
		Token:         sec.Credential(CredToken, ""),
		StartDate:     time.Unix(0, 0).UTC(),
		BaseURL:       strings.TrimRight(sec.Credential(CredBaseURL, DefaultBaseURL), "/"),
		NotionVersion: sec.Credential(CredNotionVersion, DefaultNotionVersion),
		PageSize:      DefaultPageSize,
		MaxBlockDepth: DefaultMaxBlockDepth,
	}
	if s.Token == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "notion token is required")
	}

	if raw := sec.Credential(CredStartDate, ""); raw != "" {
		t, err := ParseTime(raw)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid start_date")
		}
		s.StartDate = t
	}

	var err error
	if s.PageSize, err = intCredential(sec, CredPageSize, DefaultPageSize, 100); err != nil {
		return nil, err
	}
	if s.MaxBlockDepth, err = intCredential(sec, CredMaxBlockDepth, DefaultMaxBlockDepth, 0); err != nil {
		return nil, err
	}
	return s, nil
}

// intCredential parses a positive integer credential. max of 0 means unbounded.
func intCredential(sec config.SecurityConfig, key string, def, max int) (int, error) {
	raw := sec.Credential(key, "")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || (max > 0 && n > max) {
		return 0, errors.Newf(errors.ErrorTypeConfig, "invalid %s %q", key, raw)
	}
	return n, nil
}
