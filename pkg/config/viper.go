// Package config initializes the process-wide Viper instance used by the CLI.
// It layers an optional config file, CRAWLER_* environment variables and the
// defaults from internal/config; command flags are bound on top by cmd.
package config

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"

	internalconfig "github.com/JakeFAU/topic-crawler/internal/config"
)

// InitConfig initializes v. When cfgFile is empty it searches the working
// directory, /etc/topic-crawler and $HOME/.topic-crawler for config.{yaml,json,toml};
// a missing file is not an error. It returns the file actually read, if any.
func InitConfig(v *viper.Viper, cfgFile string) (string, error) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/topic-crawler/")
		v.AddConfigPath("$HOME/.topic-crawler")
	}

	internalconfig.Bind(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return "", nil
		}
		return "", fmt.Errorf("read config: %w", err)
	}
	return v.ConfigFileUsed(), nil
}
