package xferclient

import (
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/materials-commons/tablexfer/pkg/config"
	"github.com/materials-commons/tablexfer/pkg/cursor"
	"github.com/materials-commons/tablexfer/pkg/dataset"
	"github.com/materials-commons/tablexfer/pkg/jobstate"
	"github.com/materials-commons/tablexfer/pkg/worker"
	"github.com/materials-commons/tablexfer/pkg/xferapi"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	server *httptest.Server
	worker *worker.Worker
	client *Client
}

func newHarness(t *testing.T, producer worker.Producer, consumer worker.Consumer, tune func(s *config.TransferSettings)) *harness {
	serverSettings := config.DefaultTransferSettings()
	serverSettings.TempDir = t.TempDir()
	serverSettings.MaxRowsPerChunk = 4

	executor := worker.NewExecutor(2, 8)
	executor.Start(context.Background())
	t.Cleanup(executor.Shutdown)

	w := worker.New(jobstate.NewMemoryStore(time.Hour), serverSettings, executor, producer, consumer)

	e := echo.New()
	xferapi.RegisterTransferRoutes(e.Group("/api"), xferapi.NewTransferController(w))
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	clientSettings := config.DefaultTransferSettings()
	clientSettings.TempDir = t.TempDir()
	clientSettings.BaseURL = srv.URL
	clientSettings.MaxRowsPerChunk = 4
	clientSettings.PollTimeout = 5 * time.Second
	if tune != nil {
		tune(clientSettings)
	}

	return &harness{server: srv, worker: w, client: New(clientSettings)}
}

func (h *harness) serverJobs(t *testing.T) []*jobstate.Job {
	jobs, err := h.worker.Store().List(context.Background())
	require.NoError(t, err)
	return jobs
}

func inventory() *dataset.DataSet {
	parts := dataset.NewTable("Parts",
		dataset.Column{Name: "id", Type: dataset.TypeInt64, IsKey: true},
		dataset.Column{Name: "name", Type: dataset.TypeString},
		dataset.Column{Name: "price", Type: dataset.TypeDecimal},
		dataset.Column{Name: "discontinued", Type: dataset.TypeBool})
	for i := 1; i <= 10; i++ {
		_ = parts.AddRow(dataset.Int64(int64(i)), dataset.String("part"), dataset.Decimal(decimal.RequireFromString("9.95")), dataset.Bool(i%2 == 0))
	}
	_ = parts.AddRow(dataset.Int64(11), dataset.Null(), dataset.Null(), dataset.Null())

	bins := dataset.NewTable("Bins", dataset.Column{Name: "label", Type: dataset.TypeString})

	return dataset.NewDataSet(parts, bins)
}

func staticProducer(ds *dataset.DataSet) worker.Producer {
	return worker.DataSetProducer(func(context.Context, string, []dataset.Filter) (*dataset.DataSet, error) {
		return ds, nil
	})
}

func TestGetData(t *testing.T) {
	h := newHarness(t, staticProducer(inventory()), worker.Consumer{}, nil)

	ds, err := h.client.GetData(context.Background(), []dataset.Filter{{Key: "site", Value: "A"}})
	require.NoError(t, err)

	require.Len(t, ds.Tables, 2)
	parts := ds.Table("Parts")
	require.NotNil(t, parts)
	require.Len(t, parts.Rows, 11)
	assert.True(t, parts.Rows[0][2].Equal(dataset.Decimal(decimal.RequireFromString("9.95"))))
	assert.True(t, parts.Rows[10][1].IsNull())
	assert.Equal(t, []string{"id", "name", "price", "discontinued"}, columnNames(parts.Columns))

	require.NotNil(t, ds.Table("Bins"))
	assert.Empty(t, ds.Table("Bins").Rows)

	assert.Empty(t, h.serverJobs(t))
	assertDirEmpty(t, h.client.settings.TempDir)
}

func TestGetDataReader(t *testing.T) {
	h := newHarness(t, staticProducer(inventory()), worker.Consumer{}, nil)

	cur, err := h.client.GetDataReader(context.Background(), nil)
	require.NoError(t, err)

	var tables []string
	rows := 0
	for cur.NextResultSet() {
		tables = append(tables, cur.Table())
		for cur.Next() {
			rows++
		}
	}
	require.NoError(t, cur.Err())
	require.NoError(t, cur.Close())

	assert.Equal(t, []string{"Parts", "Bins"}, tables)
	assert.Equal(t, 11, rows)
	assertDirEmpty(t, h.client.settings.TempDir)
}

func TestGetDataJobFailure(t *testing.T) {
	failing := worker.ProducerFunc(func(context.Context, string, []dataset.Filter) (dataset.Reader, error) {
		return nil, errors.New("query failed")
	})
	h := newHarness(t, failing, worker.Consumer{}, nil)

	_, err := h.client.GetData(context.Background(), nil)
	require.ErrorIs(t, err, ErrJobFailed)
	assert.Contains(t, err.Error(), "query failed")
	assert.Empty(t, h.serverJobs(t))
}

func TestGetDataTimeout(t *testing.T) {
	slow := worker.ProducerFunc(func(ctx context.Context, _ string, _ []dataset.Filter) (dataset.Reader, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	h := newHarness(t, slow, worker.Consumer{}, func(s *config.TransferSettings) {
		s.PollTimeout = 200 * time.Millisecond
	})

	_, err := h.client.GetData(context.Background(), nil)
	require.ErrorIs(t, err, ErrTimeout)

	// Ending the transfer cancels the server's work and removes the job.
	assert.Eventually(t, func() bool {
		return len(h.serverJobs(t)) == 0
	}, 5*time.Second, 20*time.Millisecond)
}

func TestTransportFailure(t *testing.T) {
	h := newHarness(t, staticProducer(inventory()), worker.Consumer{}, nil)
	h.server.Close()

	_, err := h.client.GetData(context.Background(), nil)
	assert.ErrorIs(t, err, ErrTransport)
}

func TestSendData(t *testing.T) {
	var (
		mu       sync.Mutex
		received *dataset.DataSet
		filters  []dataset.Filter
	)

	consumer := worker.ConsumeTables(func(_ context.Context, ds *dataset.DataSet, f []dataset.Filter) error {
		mu.Lock()
		defer mu.Unlock()
		received, filters = ds, f
		return nil
	})

	// A small maximum file size forces archives to travel as packets.
	h := newHarness(t, nil, consumer, func(s *config.TransferSettings) {
		s.MaxFileSize = 128
	})

	err := h.client.SendData(context.Background(), inventory().Reader(), []dataset.Filter{{Key: "batch", Value: "b1"}})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()

	require.NotNil(t, received)
	require.Len(t, received.Tables, 2)
	assert.Len(t, received.Table("Parts").Rows, 11)
	assert.True(t, received.Table("Parts").Columns[0].IsKey)
	require.Len(t, filters, 1)
	assert.Equal(t, "batch", filters[0].Key)

	assert.Empty(t, h.serverJobs(t))
	assertDirEmpty(t, h.client.settings.TempDir)
}

func TestSendDataConsumerFailure(t *testing.T) {
	consumer := worker.ConsumeCursor(func(context.Context, *cursor.Cursor, []dataset.Filter) error {
		return errors.New("load rejected")
	})
	h := newHarness(t, nil, consumer, nil)

	err := h.client.SendData(context.Background(), inventory().Reader(), nil)
	require.ErrorIs(t, err, ErrJobFailed)
	assert.Contains(t, err.Error(), "load rejected")
	assert.Empty(t, h.serverJobs(t))
}

func columnNames(columns []dataset.Column) []string {
	names := make([]string, 0, len(columns))
	for _, c := range columns {
		names = append(names, c.Name)
	}
	return names
}

func assertDirEmpty(t *testing.T, dir string) {
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
