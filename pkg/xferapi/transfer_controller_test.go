package xferapi

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/materials-commons/tablexfer/pkg/archive"
	"github.com/materials-commons/tablexfer/pkg/chunk"
	"github.com/materials-commons/tablexfer/pkg/config"
	"github.com/materials-commons/tablexfer/pkg/dataset"
	"github.com/materials-commons/tablexfer/pkg/jobstate"
	"github.com/materials-commons/tablexfer/pkg/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	*httptest.Server
	worker *worker.Worker
}

func newTestServer(t *testing.T, producer worker.Producer, consumer worker.Consumer) *testServer {
	settings := config.DefaultTransferSettings()
	settings.TempDir = t.TempDir()
	settings.MaxRowsPerChunk = 5

	executor := worker.NewExecutor(2, 8)
	executor.Start(context.Background())
	t.Cleanup(executor.Shutdown)

	w := worker.New(jobstate.NewMemoryStore(time.Hour), settings, executor, producer, consumer)

	e := echo.New()
	g := e.Group("/api")
	RegisterTransferRoutes(g, NewTransferController(w))

	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	return &testServer{Server: srv, worker: w}
}

func (s *testServer) post(t *testing.T, route string, body interface{}) *http.Response {
	b, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(s.URL+"/api/largedata/"+route, echo.MIMEApplicationJSON, bytes.NewReader(b))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v interface{}) {
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func ordersDataSet() *dataset.DataSet {
	orders := dataset.NewTable("Orders",
		dataset.Column{Name: "id", Type: dataset.TypeInt32, IsKey: true},
		dataset.Column{Name: "item", Type: dataset.TypeString})
	for i := 1; i <= 12; i++ {
		_ = orders.AddRow(dataset.Int32(int32(i)), dataset.String("widget"))
	}

	return dataset.NewDataSet(orders)
}

func TestDownloadProtocol(t *testing.T) {
	var gotFilters []dataset.Filter
	producer := worker.DataSetProducer(func(_ context.Context, _ string, filters []dataset.Filter) (*dataset.DataSet, error) {
		gotFilters = filters
		return ordersDataSet(), nil
	})

	srv := newTestServer(t, producer, worker.Consumer{})

	resp := srv.post(t, "begindownload", []dataset.Filter{{Key: "region", Value: "west"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var id string
	decodeBody(t, resp, &id)
	require.NotEmpty(t, id)

	var files []string
	require.Eventually(t, func() bool {
		resp := srv.post(t, "getfileslisttodownload", id)
		if resp.StatusCode != http.StatusOK {
			return false
		}
		decodeBody(t, resp, &files)
		return resp.Header.Get(TransferStatusHeader) == string(jobstate.StatusCompleted)
	}, 5*time.Second, 20*time.Millisecond)

	require.Len(t, files, 1)
	require.Len(t, gotFilters, 1)
	assert.Equal(t, "region", gotFilters[0].Key)

	resp = srv.post(t, "downloadfile", DownloadFileRequest{TransferID: id, FileName: files[0]})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	// The served archive must be a zip of the table's chunk files.
	zipPath := filepath.Join(t.TempDir(), files[0])
	require.NoError(t, os.WriteFile(zipPath, data, 0644))
	staging := filepath.Join(t.TempDir(), "staging")
	require.NoError(t, archive.NewExtractor().Extract(zipPath, staging))

	entries, err := chunk.List(staging)
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	// Served files are removed from the job directory.
	_, err = os.Stat(filepath.Join(srv.worker.JobDir(id), files[0]))
	assert.True(t, os.IsNotExist(err))

	resp = srv.post(t, "enddownload", id)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	_, err = srv.worker.Store().Get(context.Background(), id)
	assert.ErrorIs(t, err, jobstate.ErrJobNotFound)

	_, err = os.Stat(srv.worker.JobDir(id))
	assert.True(t, os.IsNotExist(err))
}

func TestFailedDownloadIsReportedAndRemoved(t *testing.T) {
	producer := worker.ProducerFunc(func(context.Context, string, []dataset.Filter) (dataset.Reader, error) {
		return nil, errors.New("source unavailable")
	})

	srv := newTestServer(t, producer, worker.Consumer{})

	var id string
	decodeBody(t, srv.post(t, "begindownload", nil), &id)

	var failure map[string]string
	require.Eventually(t, func() bool {
		resp := srv.post(t, "getfileslisttodownload", id)
		if resp.StatusCode != http.StatusInternalServerError {
			return false
		}
		decodeBody(t, resp, &failure)
		return true
	}, 5*time.Second, 20*time.Millisecond)

	assert.Equal(t, "source unavailable", failure["error"])
	assert.Equal(t, string(jobstate.StatusFailed), failure["status"])

	resp := srv.post(t, "getfileslisttodownload", id)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPollUnknownTransfer(t *testing.T) {
	srv := newTestServer(t, nil, worker.Consumer{})

	assert.Equal(t, http.StatusNotFound, srv.post(t, "getfileslisttodownload", "no-such-id").StatusCode)
	assert.Equal(t, http.StatusNotFound, srv.post(t, "getuploadprocessstatus", "no-such-id").StatusCode)
}

func TestDownloadFileRejectsPathNames(t *testing.T) {
	srv := newTestServer(t, nil, worker.Consumer{})

	resp := srv.post(t, "downloadfile", DownloadFileRequest{TransferID: "x", FileName: "../secret"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// uploadArchives writes ds as archives the way a client prepares an upload.
func uploadArchives(t *testing.T, ds *dataset.DataSet) (dir string, archives []string) {
	dir = t.TempDir()

	files, err := chunk.NewWriter(dir, 5).WriteAll(context.Background(), ds.Reader())
	require.NoError(t, err)

	archives, err = archive.Archive(context.Background(), dir, files)
	require.NoError(t, err)

	return dir, archives
}

func postFile(t *testing.T, srv *testServer, transferIDHeader, path string) *http.Response {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	part, err := mw.CreateFormFile(FileFormField, filepath.Base(path))
	require.NoError(t, err)

	f, err := os.Open(path)
	require.NoError(t, err)
	_, err = io.Copy(part, f)
	_ = f.Close()
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/largedata/postfile", &body)
	require.NoError(t, err)
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	req.Header.Set(TransferIDHeader, transferIDHeader)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	return resp
}

func TestUploadProtocol(t *testing.T) {
	var (
		mu       sync.Mutex
		received *dataset.DataSet
	)

	consumer := worker.ConsumeTables(func(_ context.Context, ds *dataset.DataSet, _ []dataset.Filter) error {
		mu.Lock()
		defer mu.Unlock()
		received = ds
		return nil
	})

	srv := newTestServer(t, nil, consumer)

	var id string
	decodeBody(t, srv.post(t, "beginupload", []dataset.Filter{{Key: "batch", Value: 7}}), &id)
	require.NotEmpty(t, id)

	dir, archives := uploadArchives(t, ordersDataSet())
	require.Len(t, archives, 1)

	// The first archive travels as packets.
	packets, err := archive.Split(filepath.Join(dir, archives[0]), 64)
	require.NoError(t, err)
	require.Greater(t, len(packets), 1)

	idHeader, err := json.Marshal(id)
	require.NoError(t, err)

	for _, p := range packets {
		resp := postFile(t, srv, string(idHeader), filepath.Join(dir, p))
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp := srv.post(t, "processuploadedfiles", UploadManifest{
		TransferID: id,
		Files:      []string{archive.ManifestEntry(packets)},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Eventually(t, func() bool {
		var done bool
		resp := srv.post(t, "getuploadprocessstatus", id)
		if resp.StatusCode != http.StatusOK {
			return false
		}
		decodeBody(t, resp, &done)
		return done
	}, 5*time.Second, 20*time.Millisecond)

	mu.Lock()
	require.NotNil(t, received)
	require.Len(t, received.Tables, 1)
	assert.Equal(t, "Orders", received.Tables[0].Name)
	assert.Len(t, received.Tables[0].Rows, 12)
	mu.Unlock()

	require.Equal(t, http.StatusOK, srv.post(t, "endupload", id).StatusCode)
	_, err = os.Stat(srv.worker.JobDir(id))
	assert.True(t, os.IsNotExist(err))
}

func TestPostFileChecksTransfer(t *testing.T) {
	producer := worker.DataSetProducer(func(context.Context, string, []dataset.Filter) (*dataset.DataSet, error) {
		return ordersDataSet(), nil
	})
	srv := newTestServer(t, producer, worker.Consumer{})

	path := filepath.Join(t.TempDir(), "a.zip")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0644))

	assert.Equal(t, http.StatusBadRequest, postFile(t, srv, "", path).StatusCode)
	assert.Equal(t, http.StatusNotFound, postFile(t, srv, `"unknown"`, path).StatusCode)

	var id string
	decodeBody(t, srv.post(t, "begindownload", nil), &id)
	assert.Equal(t, http.StatusConflict, postFile(t, srv, id, path).StatusCode)
}

func TestProcessUploadedFilesRequiresUpload(t *testing.T) {
	srv := newTestServer(t, nil, worker.Consumer{})

	resp := srv.post(t, "processuploadedfiles", UploadManifest{TransferID: "missing", Files: []string{"a.zip"}})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTransferIDFromHeader(t *testing.T) {
	assert.Equal(t, "abc", transferIDFromHeader(`"abc"`))
	assert.Equal(t, "abc", transferIDFromHeader("abc"))
	assert.Equal(t, "", transferIDFromHeader(""))
}

func setupEchoContext(method, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestSetLogLevel(t *testing.T) {
	c := NewLogController()

	ctx, rec := setupEchoContext(http.MethodPost, `{"log_level":"debug"}`)
	require.NoError(t, c.SetLogLevel(ctx))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "debug", c.CurrentLogLevel)

	ctx, rec = setupEchoContext(http.MethodPost, `{"log_level":"loud"}`)
	require.NoError(t, c.SetLogLevel(ctx))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "debug", c.CurrentLogLevel)

	ctx, _ = setupEchoContext(http.MethodPost, `{"log_level":"info"}`)
	require.NoError(t, c.SetLogLevel(ctx))
}

func TestSetTransferLogging(t *testing.T) {
	c := NewLogController()
	logPath := filepath.Join(t.TempDir(), "t1.log")

	ctx, rec := setupEchoContext(http.MethodPost, `{"transfer_id":"t1","log_output":"`+logPath+`","log_level":"warn"}`)
	require.NoError(t, c.SetTransferLogging(ctx))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, logPath, c.TransferLogs["t1"])

	ctx, rec = setupEchoContext(http.MethodGet, "")
	require.NoError(t, c.ShowCurrentLogging(ctx))
	assert.Contains(t, rec.Body.String(), logPath)

	_ = worker.RemoveJob(context.Background(), jobstate.NewMemoryStore(time.Minute), t.TempDir(), "t1")

	ctx, rec = setupEchoContext(http.MethodGet, "")
	require.NoError(t, c.ShowCurrentLogging(ctx))
	assert.NotContains(t, rec.Body.String(), logPath)
}
