package config

import (
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/spf13/viper"
)

var (
	App = new(Config)

	configPaths = []string{}
	configFile  = ""
	configName  = "docrepo"
	configType  = "yaml"

	mu sync.RWMutex
	cv *viper.Viper
)

// Config is the library configuration, loaded from file and environment.
type Config struct {
	Logger     `json:"logger" mapstructure:"logger" yaml:"logger"`
	Mongo      `json:"mongo" mapstructure:"mongo" yaml:"mongo"`
	Firestore  `json:"firestore" mapstructure:"firestore" yaml:"firestore"`
	Repository `json:"repository" mapstructure:"repository" yaml:"repository"`
}

// setDefault will set config default value
func (c *Config) setDefault() {
	c.Logger.setDefault()
	c.Mongo.setDefault()
	c.Firestore.setDefault()
	c.Repository.setDefault()
}

// Init initializes the library configuration.
//
// Configuration priority (from highest to lowest):
// 1. Environment variables
// 2. Configuration file
// 3. Default values
func Init() (err error) {
	mu.Lock()
	defer mu.Unlock()

	cv = viper.New()
	cv.AutomaticEnv()
	cv.AllowEmptyEnv(true)
	cv.SetEnvPrefix("DOCREPO")
	cv.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values before unmarshaling
	App = new(Config)
	App.setDefault()

	if len(configFile) > 0 {
		cv.SetConfigFile(configFile)
	} else {
		cv.SetConfigName(configName)
		cv.SetConfigType(configType)
	}
	cv.AddConfigPath(".")
	cv.AddConfigPath("/etc/")
	for _, path := range configPaths {
		cv.AddConfigPath(path)
	}

	if err = cv.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return errors.Wrap(err, "failed to read config file")
		}
		// Missing config file is fine, defaults and env apply.
	}
	if err = cv.Unmarshal(App); err != nil {
		return errors.Wrap(err, "failed to unmarshal config")
	}

	return nil
}

// SetConfigFile set the config file path.
// You should always call this function before `Init`.
func SetConfigFile(file string) {
	mu.Lock()
	defer mu.Unlock()
	configFile = file
}

// SetConfigName set the config file name, default to 'docrepo'.
// You should always call this function before `Init`.
func SetConfigName(name string) {
	mu.Lock()
	defer mu.Unlock()
	configName = name
}

// SetConfigType set the config file type, default to 'yaml'.
// You should always call this function before `Init`.
func SetConfigType(typ string) {
	mu.Lock()
	defer mu.Unlock()
	configType = typ
}

// AddPath add custom config path. default: ., /etc
// You should always call this function before `Init`.
func AddPath(paths ...string) {
	mu.Lock()
	defer mu.Unlock()
	configPaths = append(configPaths, paths...)
}

func setSectionDefault(section any) {
	if err := defaults.Set(section); err != nil {
		panic(errors.Wrap(err, "failed to set config defaults"))
	}
}
