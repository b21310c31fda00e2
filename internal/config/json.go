package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/mkuznecovs/authkeeper/internal/flagx"
)

// JsonConfig is an intermediate DTO used only for reading JSON configuration
// files. After unmarshalling, its fields are copied into the runtime Config.
type JsonConfig struct {
	DatabaseDSN          string `json:"database_dsn"`
	TableSchema          string `json:"table_schema"`
	TablePrefix          string `json:"table_prefix"`
	SweepIntervalMinutes int    `json:"sweep_interval_minutes"`
}

// parseJson loads configuration values from the JSON file named by the -c or
// -config flags. If no file is given, nothing is loaded. An unreadable or
// invalid file panics: a deployment that points at a broken config file
// should not start.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	if c.DatabaseDSN != "" {
		config.DatabaseDSN = c.DatabaseDSN
	}
	if c.TableSchema != "" {
		config.TableSchema = c.TableSchema
	}
	if c.TablePrefix != "" {
		config.TablePrefix = c.TablePrefix
	}
	if c.SweepIntervalMinutes > 0 {
		config.SweepInterval = time.Duration(c.SweepIntervalMinutes) * time.Minute
	}
}
