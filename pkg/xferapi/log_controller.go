package xferapi

import (
	"net/http"
	"os"
	"sync"

	"github.com/apex/log"
	"github.com/labstack/echo/v4"
	"github.com/materials-commons/tablexfer/pkg/clog"
	"github.com/pkg/errors"
)

type LogController struct {
	mu              sync.Mutex
	CurrentLogLevel string `json:"current_log_level"`
	CurrentLogFile  string `json:"current_log_file"`

	// TransferLogs maps transfer ids to the file their entries are written to.
	TransferLogs map[string]string `json:"transfer_logs"`
}

func NewLogController() *LogController {
	return &LogController{
		CurrentLogLevel: clog.GlobalLevel().String(),
		CurrentLogFile:  "stdout",
		TransferLogs:    make(map[string]string),
	}
}

func (c *LogController) SetLogLevel(ctx echo.Context) error {
	var req struct {
		LogLevel string `json:"log_level"`
	}

	if err := ctx.Bind(&req); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	level, err := log.ParseLevel(req.LogLevel)
	if err != nil {
		return errorResponse(ctx, http.StatusBadRequest, errors.Wrapf(err, "invalid log level %s", req.LogLevel).Error())
	}

	_ = clog.SetLevel(clog.GlobalLoggerCtx, level)
	log.SetLevel(level)
	c.CurrentLogLevel = level.String()

	return ctx.JSON(http.StatusOK, c)
}

func (c *LogController) SetLogOutput(ctx echo.Context) error {
	var req struct {
		LogOutput string `json:"log_output"`
	}

	if err := ctx.Bind(&req); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch req.LogOutput {
	case "stdout":
		clog.SetGlobalOutput(os.Stdout)
	case "stderr":
		clog.SetGlobalOutput(os.Stderr)
	default:
		f, err := os.Create(req.LogOutput)
		if err != nil {
			return errorResponse(ctx, http.StatusBadRequest, errors.Wrapf(err, "failed to open log output %s", req.LogOutput).Error())
		}
		clog.SetGlobalOutput(f)
	}

	c.CurrentLogFile = req.LogOutput

	return ctx.JSON(http.StatusOK, c)
}

// SetTransferLogging sends the entries of one transfer to their own file, at
// their own level.
func (c *LogController) SetTransferLogging(ctx echo.Context) error {
	var req struct {
		TransferID string `json:"transfer_id"`
		LogOutput  string `json:"log_output"`
		LogLevel   string `json:"log_level"`
	}

	if err := ctx.Bind(&req); err != nil {
		return err
	}

	if req.TransferID == "" || req.LogOutput == "" {
		return errorResponse(ctx, http.StatusBadRequest, "transfer_id and log_output are required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := os.Create(req.LogOutput)
	if err != nil {
		return errorResponse(ctx, http.StatusBadRequest, errors.Wrapf(err, "failed to open log output %s", req.LogOutput).Error())
	}

	clog.AddLoggingContext(req.TransferID, f)
	c.TransferLogs[req.TransferID] = req.LogOutput

	if req.LogLevel != "" {
		if err := clog.SetLevelFromString(req.TransferID, req.LogLevel); err != nil {
			return errorResponse(ctx, http.StatusBadRequest, errors.Wrapf(err, "invalid log level %s", req.LogLevel).Error())
		}
	}

	return ctx.JSON(http.StatusOK, c)
}

func (c *LogController) ShowCurrentLogging(ctx echo.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id := range c.TransferLogs {
		if !clog.HasLoggingContext(id) {
			delete(c.TransferLogs, id)
		}
	}

	return ctx.JSON(http.StatusOK, c)
}
