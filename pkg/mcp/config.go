package mcp

import (
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// GetConfigFromViper reads the "mcp" section, e.g.
//
//	mcp:
//	  servers:
//	    fetch:
//	      command: uvx
//	      args: [mcp-server-fetch]
func GetConfigFromViper() (ServersConfig, error) {
	var config ServersConfig
	if err := viper.UnmarshalKey("mcp", &config); err != nil {
		return config, errors.Wrap(err, "failed to unmarshal mcp configuration")
	}
	return config, nil
}
