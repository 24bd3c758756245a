package repo

import "time"

const catalogCacheTTL = time.Minute * 5

type EndpointModel struct {
	tableName struct{} `pg:"monitor_endpoints"`

	Name     string `json:"name" pg:"name,pk"`
	URL      string `json:"url" pg:"url"`
	Category string `json:"category" pg:"category,notnull"`
	Source   string `json:"source" pg:"source,notnull"`
	DataType string `json:"data_type" pg:"data_type,notnull"`
	Enabled  bool   `json:"enabled" pg:"enabled,use_zero"`
}

func catalogCacheKey() string {
	return "monitor:catalog"
}
