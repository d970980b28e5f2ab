package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/votekeeper/internal/flagx"
	"github.com/dmitrijs2005/votekeeper/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON
// unmarshalling. It uses timex.Duration for interval fields, which allows
// parsing both string values such as "24h" and integer nanoseconds.
//
// This struct is an intermediate DTO used only for reading JSON
// configuration files; its fields are copied into the runtime Config.
type JsonConfig struct {
	EndpointAddr          string         `json:"endpoint_addr"`
	DatabaseDSN           string         `json:"database_dsn"`
	TokenValidityDuration timex.Duration `json:"token_validity_duration"`
	SessionReadTimeout    timex.Duration `json:"session_read_timeout"`
	RSAKeySize            int            `json:"rsa_key_size"`
	PublicKeyFile         string         `json:"public_key_file"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config. The file path comes from the -c/-config flags; if neither is set,
// no JSON file is loaded. A missing or malformed file panics: the operator
// asked for a config file that cannot be used.
func parseJson(config *Config) {
	path := flagx.JsonConfigFlags()
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	jc := &JsonConfig{}
	if err := json.Unmarshal(data, jc); err != nil {
		panic(err)
	}

	if jc.EndpointAddr != "" {
		config.EndpointAddr = jc.EndpointAddr
	}
	if jc.DatabaseDSN != "" {
		config.DatabaseDSN = jc.DatabaseDSN
	}
	if jc.TokenValidityDuration.Duration != 0 {
		config.TokenValidityDuration = jc.TokenValidityDuration.Duration
	}
	if jc.SessionReadTimeout.Duration != 0 {
		config.SessionReadTimeout = jc.SessionReadTimeout.Duration
	}
	if jc.RSAKeySize != 0 {
		config.RSAKeySize = jc.RSAKeySize
	}
	if jc.PublicKeyFile != "" {
		config.PublicKeyFile = jc.PublicKeyFile
	}
}
