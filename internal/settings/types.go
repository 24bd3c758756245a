package settings

import "time"

const settingCacheTTL = time.Minute * 5

// KnownProviders are the data-source credential keys the config endpoint
// reports on. Values are write-only: the API only ever echoes back whether
// a provider is configured.
var KnownProviders = []string{
	"alpaca_api_key",
	"alpaca_api_secret",
	"tiingo_api_key",
	"marketstack_api_key",
	"finnhub_api_key",
	"openai_api_key",
}

type SettingModel struct {
	tableName struct{} `pg:"settings"`

	Key   string `json:"key" pg:"key,pk"`
	Value string `json:"value" pg:"value"`
}

type ProviderStatus struct {
	Name       string `json:"name"`
	Configured bool   `json:"configured"`
}

type ParticleSettings struct {
	Enabled bool    `json:"enabled"`
	Count   int     `json:"count"`
	Speed   float64 `json:"speed"`
	Color   string  `json:"color"`
}

type StyleSettings struct {
	Particles ParticleSettings `json:"particles"`
	MenuMode  string           `json:"menu_mode"`
}

const styleSettingsKey = "styleSettings"

// DefaultStyleSettings is the valid empty state: absence of a stored blob
// is not an error.
func DefaultStyleSettings() StyleSettings {
	return StyleSettings{
		Particles: ParticleSettings{
			Enabled: true,
			Count:   80,
			Speed:   1,
			Color:   "#3b82f6",
		},
		MenuMode: "side",
	}
}

func settingCacheKey(key string) string {
	return "setting:" + key
}
