package config

import (
	"sync"

	"github.com/Jeffail/gabs"
)

const configFile = "config.json"

var (
	once   sync.Once
	config *gabs.Container
)

// Get returns config data with the given path.
// Config data is only allowed in string type.
// Returns an empty string if the config file or the path is absent,
// so that flag defaults stay usable without a config file.
func Get(path string) string {
	once.Do(load)

	if config == nil {
		return ""
	}

	v, ok := config.Path(path).Data().(string)
	if !ok {
		return ""
	}
	return v
}

func load() {
	json, err := gabs.ParseJSONFile(configFile)
	if err != nil {
		return
	}

	config = json
}
