package xferapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/materials-commons/tablexfer/pkg/clog"
	"github.com/materials-commons/tablexfer/pkg/dataset"
	"github.com/materials-commons/tablexfer/pkg/jobstate"
	"github.com/materials-commons/tablexfer/pkg/worker"
)

const (
	// TransferIDHeader carries the JSON encoded transfer id of a posted file.
	TransferIDHeader = "objectValue"

	// TransferStatusHeader reports the job status on poll responses, which
	// lets a client tell a completed download with no archives from one that
	// is still pending.
	TransferStatusHeader = "X-Transfer-Status"

	FileFormField = "file"
)

// DownloadFileRequest names one archive of a download.
type DownloadFileRequest struct {
	TransferID string `json:"guid"`
	FileName   string `json:"fileName"`
}

// UploadManifest lists the posted files of an upload. Each entry is either an
// archive name or the '|' separated packet names of a split archive.
type UploadManifest struct {
	TransferID string   `json:"guid"`
	Files      []string `json:"files"`
}

type TransferController struct {
	worker *worker.Worker
}

func NewTransferController(w *worker.Worker) *TransferController {
	return &TransferController{worker: w}
}

func (c *TransferController) BeginDownload(ctx echo.Context) error {
	filters, err := bindFilters(ctx)
	if err != nil {
		return errorResponse(ctx, http.StatusBadRequest, err.Error())
	}

	id, err := c.worker.BeginDownload(ctx.Request().Context(), filters)
	if err != nil {
		return beginError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, id)
}

// GetFilesListToDownload returns the archive names of a completed download and
// an empty list while it is pending. A failed download is removed and reported
// as an error.
func (c *TransferController) GetFilesListToDownload(ctx echo.Context) error {
	job, ok, err := c.pollJob(ctx, jobstate.Download)
	if !ok {
		return err
	}

	files := []string{}
	if job.Status == jobstate.StatusCompleted && job.Files != nil {
		files = job.Files
	}

	return ctx.JSON(http.StatusOK, files)
}

// DownloadFile sends one archive and deletes it from the job directory.
func (c *TransferController) DownloadFile(ctx echo.Context) error {
	var req DownloadFileRequest
	if err := ctx.Bind(&req); err != nil {
		return errorResponse(ctx, http.StatusBadRequest, "invalid download file request")
	}

	if err := worker.CheckFileName(req.FileName); err != nil {
		return errorResponse(ctx, http.StatusBadRequest, err.Error())
	}

	if _, err := c.worker.Store().Get(ctx.Request().Context(), req.TransferID); err != nil {
		return storeError(ctx, err)
	}

	path := filepath.Join(c.worker.JobDir(req.TransferID), req.FileName)
	if _, err := os.Stat(path); err != nil {
		return errorResponse(ctx, http.StatusNotFound, "no such file "+req.FileName)
	}

	if err := ctx.Attachment(path, req.FileName); err != nil {
		return err
	}

	if err := os.Remove(path); err != nil {
		clog.ForTransfer(req.TransferID).Warnf("Unable to remove served file %s: %s", req.FileName, err)
	}

	return nil
}

func (c *TransferController) EndDownload(ctx echo.Context) error {
	return c.end(ctx)
}

func (c *TransferController) BeginUpload(ctx echo.Context) error {
	filters, err := bindFilters(ctx)
	if err != nil {
		return errorResponse(ctx, http.StatusBadRequest, err.Error())
	}

	id, err := c.worker.BeginUpload(ctx.Request().Context(), filters)
	if err != nil {
		return beginError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, id)
}

// PostFile stores one multipart file in the upload's job directory. The
// transfer id comes from the objectValue header.
func (c *TransferController) PostFile(ctx echo.Context) error {
	id := transferIDFromHeader(ctx.Request().Header.Get(TransferIDHeader))
	if id == "" {
		return errorResponse(ctx, http.StatusBadRequest, "missing "+TransferIDHeader+" header")
	}

	job, err := c.worker.Store().Get(ctx.Request().Context(), id)
	if err != nil {
		return storeError(ctx, err)
	}

	if job.Direction != jobstate.Upload || job.Status != jobstate.StatusSubmitted {
		return errorResponse(ctx, http.StatusConflict, "transfer is not accepting files")
	}

	fh, err := ctx.FormFile(FileFormField)
	if err != nil {
		return errorResponse(ctx, http.StatusBadRequest, "no file in request")
	}

	if err := worker.CheckFileName(fh.Filename); err != nil {
		return errorResponse(ctx, http.StatusBadRequest, err.Error())
	}

	src, err := fh.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	if err := saveFile(src, filepath.Join(c.worker.JobDir(id), fh.Filename)); err != nil {
		clog.ForTransfer(id).Errorf("Unable to save posted file %s: %s", fh.Filename, err)
		return errorResponse(ctx, http.StatusInternalServerError, "unable to save file")
	}

	return ctx.JSON(http.StatusOK, true)
}

func (c *TransferController) ProcessUploadedFiles(ctx echo.Context) error {
	var manifest UploadManifest
	if err := ctx.Bind(&manifest); err != nil {
		return errorResponse(ctx, http.StatusBadRequest, "invalid upload manifest")
	}

	err := c.worker.SubmitUploadProcessing(ctx.Request().Context(), manifest.TransferID, manifest.Files)
	switch {
	case errors.Is(err, jobstate.ErrJobNotFound):
		return storeError(ctx, err)
	case errors.Is(err, jobstate.ErrInvalidTransition):
		return errorResponse(ctx, http.StatusConflict, err.Error())
	case err != nil:
		return beginError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, true)
}

// GetUploadProcessStatus answers true once an upload has been processed.
func (c *TransferController) GetUploadProcessStatus(ctx echo.Context) error {
	job, ok, err := c.pollJob(ctx, jobstate.Upload)
	if !ok {
		return err
	}

	return ctx.JSON(http.StatusOK, job.Status == jobstate.StatusCompleted)
}

func (c *TransferController) EndUpload(ctx echo.Context) error {
	return c.end(ctx)
}

func (c *TransferController) end(ctx echo.Context) error {
	var id string
	if err := ctx.Bind(&id); err != nil || id == "" {
		return errorResponse(ctx, http.StatusBadRequest, "missing transfer id")
	}

	if err := c.worker.End(ctx.Request().Context(), id); err != nil {
		clog.ForTransfer(id).Errorf("Unable to fully remove transfer: %s", err)
		return errorResponse(ctx, http.StatusInternalServerError, "unable to remove transfer")
	}

	return ctx.JSON(http.StatusOK, true)
}

// pollJob loads the job named by the request body. When ok is false the
// response has already been written and err is what the handler returns.
func (c *TransferController) pollJob(ctx echo.Context, direction jobstate.Direction) (job *jobstate.Job, ok bool, err error) {
	var id string
	if err := ctx.Bind(&id); err != nil || id == "" {
		return nil, false, errorResponse(ctx, http.StatusBadRequest, "missing transfer id")
	}

	job, err = c.worker.Store().Get(ctx.Request().Context(), id)
	if err != nil {
		return nil, false, storeError(ctx, err)
	}

	if job.Direction != direction {
		return nil, false, errorResponse(ctx, http.StatusNotFound, "no such "+string(direction))
	}

	ctx.Response().Header().Set(TransferStatusHeader, string(job.Status))

	if job.Status == jobstate.StatusFailed {
		if err := c.worker.End(context.WithoutCancel(ctx.Request().Context()), id); err != nil {
			clog.ForTransfer(id).Warnf("Unable to remove failed transfer: %s", err)
		}

		return nil, false, ctx.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error":  failureMessage(job),
			"status": jobstate.StatusFailed,
		})
	}

	return job, true, nil
}

func failureMessage(job *jobstate.Job) string {
	if job.Error == "" {
		return "Process failed. Please try again."
	}

	return job.Error
}

// bindFilters reads an optional filter list. An empty body is no filters.
func bindFilters(ctx echo.Context) ([]dataset.Filter, error) {
	if ctx.Request().ContentLength == 0 {
		return nil, nil
	}

	var filters []dataset.Filter
	if err := ctx.Bind(&filters); err != nil {
		return nil, errors.New("invalid filter list")
	}

	return filters, nil
}

// transferIDFromHeader accepts the id either JSON encoded or bare.
func transferIDFromHeader(value string) string {
	var id string
	if err := json.Unmarshal([]byte(value), &id); err == nil {
		return id
	}

	return strings.TrimSpace(value)
}

func saveFile(src io.Reader, path string) error {
	dst, err := os.Create(path)
	if err != nil {
		return err
	}

	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return err
	}

	return dst.Close()
}

func storeError(ctx echo.Context, err error) error {
	if errors.Is(err, jobstate.ErrJobNotFound) {
		return errorResponse(ctx, http.StatusNotFound, "no such transfer")
	}

	return errorResponse(ctx, http.StatusInternalServerError, err.Error())
}

func beginError(ctx echo.Context, err error) error {
	if errors.Is(err, worker.ErrExecutorFull) || errors.Is(err, worker.ErrExecutorStopped) {
		return errorResponse(ctx, http.StatusServiceUnavailable, err.Error())
	}

	return errorResponse(ctx, http.StatusInternalServerError, err.Error())
}
