package config

import (
	"fmt"
	"sync"
)

// MapConfig serves keys from a map. It is mostly used by tests.
type MapConfig struct {
	configValues sync.Map
}

func NewMapConfig(entries map[string]string) *MapConfig {
	c := &MapConfig{}

	for key, entry := range entries {
		c.configValues.Store(key, entry)
	}

	return c
}

func (c *MapConfig) LoadFromPath(_ string) error {
	return fmt.Errorf("LoadFromPath not supported for MapConfig")
}

func (c *MapConfig) Load() error {
	return nil
}

func (c *MapConfig) Set(key, value string) {
	c.configValues.Store(key, value)
}

func (c *MapConfig) GetKey(key string) string {
	v, ok := c.configValues.Load(key)
	switch {
	case !ok:
		return ""

	case v == nil:
		return ""

	default:
		return v.(string)
	}
}

func (c *MapConfig) MustGetKey(key string) string {
	return mustGetKey(c, key)
}

func (c *MapConfig) GetKeyWithDefault(key, defaultValue string) string {
	return getKeyWithDefault(c, key, defaultValue)
}

func (c *MapConfig) GetIntKeyWithDefault(key string, defaultValue int) int {
	return getIntKeyWithDefault(c, key, defaultValue)
}

func (c *MapConfig) GetInt64KeyWithDefault(key string, defaultValue int64) int64 {
	return getInt64KeyWithDefault(c, key, defaultValue)
}
