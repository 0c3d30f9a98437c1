package config

import (
	"strconv"

	"github.com/apex/log"
)

type Configer interface {
	LoadFromPath(path string) error
	Load() error
	GetKey(key string) string
	MustGetKey(key string) string
	GetKeyWithDefault(key, defaultValue string) string
	GetIntKeyWithDefault(key string, defaultValue int) int
	GetInt64KeyWithDefault(key string, defaultValue int64) int64
}

// The helpers below hold the key handling shared by every Configer, which
// only differ in where GetKey looks.

func mustGetKey(c Configer, key string) string {
	val := c.GetKey(key)
	if val == "" {
		log.Fatalf("No such required config key: '%s'", key)
	}

	return val
}

func getKeyWithDefault(c Configer, key, defaultValue string) string {
	val := c.GetKey(key)
	if val == "" {
		return defaultValue
	}

	return val
}

func getIntKeyWithDefault(c Configer, key string, defaultValue int) int {
	intVal, err := strconv.Atoi(c.GetKey(key))
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getInt64KeyWithDefault(c Configer, key string, defaultValue int64) int64 {
	intVal, err := strconv.ParseInt(c.GetKey(key), 10, 64)
	if err != nil {
		return defaultValue
	}

	return intVal
}
