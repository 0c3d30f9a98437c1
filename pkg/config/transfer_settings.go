package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
)

const (
	KeyTempDir            = "XFER_TEMP_DIR"
	KeyMaxFileSize        = "XFER_MAX_FILE_SIZE"
	KeyMaxRowsPerChunk    = "XFER_MAX_ROWS_PER_CHUNK"
	KeyPollTimeoutSeconds = "XFER_POLL_TIMEOUT_SECONDS"
	KeyParallelism        = "XFER_PARALLELISM"
	KeyBaseURL            = "XFER_BASE_URL"
)

const (
	DefaultMaxFileSize     int64 = 100 * 1024
	DefaultMaxRowsPerChunk       = 10000
	DefaultPollTimeout           = 60 * time.Second
)

// TransferSettings is everything a transfer needs to know about its
// environment. Both sides of a transfer take one explicitly.
type TransferSettings struct {
	// TempDir is where working directories are created.
	TempDir string

	// MaxFileSize is the largest archive sent in one request; larger ones
	// are split into packets of this size.
	MaxFileSize int64

	MaxRowsPerChunk int

	// PollTimeout bounds how long a client waits for the other side's
	// background work.
	PollTimeout time.Duration

	// Parallelism is the width of parallel fetch, post and unpack.
	Parallelism int

	BaseURL string
}

func DefaultParallelism() int {
	return 2 * runtime.GOMAXPROCS(0)
}

func DefaultTransferSettings() *TransferSettings {
	return &TransferSettings{
		TempDir:         filepath.Join(os.TempDir(), "tablexfer"),
		MaxFileSize:     DefaultMaxFileSize,
		MaxRowsPerChunk: DefaultMaxRowsPerChunk,
		PollTimeout:     DefaultPollTimeout,
		Parallelism:     DefaultParallelism(),
	}
}

// LoadTransferSettings builds settings from c, using defaults for missing keys.
func LoadTransferSettings(c Configer) (*TransferSettings, error) {
	s := DefaultTransferSettings()

	tempDir, err := homedir.Expand(c.GetKeyWithDefault(KeyTempDir, s.TempDir))
	if err != nil {
		return nil, errors.Wrapf(err, "Invalid %s", KeyTempDir)
	}

	s.TempDir = tempDir
	s.MaxFileSize = c.GetInt64KeyWithDefault(KeyMaxFileSize, s.MaxFileSize)
	s.MaxRowsPerChunk = c.GetIntKeyWithDefault(KeyMaxRowsPerChunk, s.MaxRowsPerChunk)
	s.PollTimeout = time.Duration(c.GetIntKeyWithDefault(KeyPollTimeoutSeconds, int(DefaultPollTimeout/time.Second))) * time.Second
	s.Parallelism = c.GetIntKeyWithDefault(KeyParallelism, s.Parallelism)
	s.BaseURL = c.GetKey(KeyBaseURL)

	if err := s.Validate(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *TransferSettings) Validate() error {
	switch {
	case s.TempDir == "":
		return fmt.Errorf("%s must be set", KeyTempDir)
	case s.MaxFileSize < 1:
		return fmt.Errorf("%s must be positive, got %d", KeyMaxFileSize, s.MaxFileSize)
	case s.MaxRowsPerChunk < 1:
		return fmt.Errorf("%s must be positive, got %d", KeyMaxRowsPerChunk, s.MaxRowsPerChunk)
	case s.PollTimeout <= 0:
		return fmt.Errorf("%s must be positive", KeyPollTimeoutSeconds)
	case s.Parallelism < 1:
		return fmt.Errorf("%s must be positive, got %d", KeyParallelism, s.Parallelism)
	}

	return nil
}
