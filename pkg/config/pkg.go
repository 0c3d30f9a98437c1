package config

import (
	"github.com/apex/log"
)

var configer Configer = &DotenvConfig{}

func SetConfig(c Configer) {
	configer = c
}

func GetConfig() Configer {
	return configer
}

// MustLoadDotenv loads the dotenv file at path (which may be empty) into the
// package Configer and returns it.
func MustLoadDotenv(path string) Configer {
	c := NewDotenvConfig(path)
	if err := c.Load(); err != nil {
		log.Fatalf("Unable to load config from %s: %s", path, err)
	}

	SetConfig(c)
	return c
}

func GetKey(key string) string {
	return configer.GetKey(key)
}

func MustGetKey(key string) string {
	return configer.MustGetKey(key)
}

func GetKeyWithDefault(key, defaultValue string) string {
	return configer.GetKeyWithDefault(key, defaultValue)
}

func GetIntKeyWithDefault(key string, defaultValue int) int {
	return configer.GetIntKeyWithDefault(key, defaultValue)
}
