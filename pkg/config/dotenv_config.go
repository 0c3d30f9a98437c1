package config

import (
	"errors"
	"os"

	"github.com/subosito/gotenv"
)

// DotenvConfig reads keys from the environment after optionally loading a
// dotenv file into it.
type DotenvConfig struct {
	DotenvPath string
}

func NewDotenvConfig(path string) *DotenvConfig {
	return &DotenvConfig{DotenvPath: path}
}

func (c *DotenvConfig) LoadFromPath(path string) error {
	c.DotenvPath = path
	return c.Load()
}

// Load loads the dotenv file. A missing file is not an error so that a server
// can be configured from the environment alone.
func (c *DotenvConfig) Load() error {
	if c.DotenvPath == "" {
		return nil
	}

	err := gotenv.Load(c.DotenvPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}

	return err
}

func (c *DotenvConfig) GetKey(key string) string {
	return os.Getenv(key)
}

func (c *DotenvConfig) MustGetKey(key string) string {
	return mustGetKey(c, key)
}

func (c *DotenvConfig) GetKeyWithDefault(key, defaultValue string) string {
	return getKeyWithDefault(c, key, defaultValue)
}

func (c *DotenvConfig) GetIntKeyWithDefault(key string, defaultValue int) int {
	return getIntKeyWithDefault(c, key, defaultValue)
}

func (c *DotenvConfig) GetInt64KeyWithDefault(key string, defaultValue int64) int64 {
	return getInt64KeyWithDefault(c, key, defaultValue)
}
