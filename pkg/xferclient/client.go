// Package xferclient is the client side of the table transfer protocol. It
// downloads a server's data as a DataSet or a streaming cursor and uploads any
// dataset.Reader to a server.
package xferclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/apex/log"
	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/materials-commons/tablexfer/pkg/archive"
	"github.com/materials-commons/tablexfer/pkg/config"
	"github.com/materials-commons/tablexfer/pkg/xferapi"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	routeBeginDownload          = "/api/largedata/begindownload"
	routeGetFilesListToDownload = "/api/largedata/getfileslisttodownload"
	routeDownloadFile           = "/api/largedata/downloadfile"
	routeEndDownload            = "/api/largedata/enddownload"
	routeBeginUpload            = "/api/largedata/beginupload"
	routePostFile               = "/api/largedata/postfile"
	routeUploadFile             = "/api/largedata/uploadfile"
	routeProcessUploadedFiles   = "/api/largedata/processuploadedfiles"
	routeGetUploadProcessStatus = "/api/largedata/getuploadprocessstatus"
	routeEndUpload              = "/api/largedata/endupload"
)

const (
	pollInitialInterval = 50 * time.Millisecond
	pollMaxInterval     = 2 * time.Second
)

var errNotReady = errors.New("server work not finished")

type Client struct {
	rc        *resty.Client
	settings  *config.TransferSettings
	extractor *archive.Extractor
}

type OptionFN func(c *Client)

// WithRestyClient replaces the default resty client. Its base URL is set from
// the settings.
func WithRestyClient(rc *resty.Client) OptionFN {
	return func(c *Client) {
		c.rc = rc
	}
}

// WithExtractor shares an extractor, and so its lock, with other clients.
func WithExtractor(e *archive.Extractor) OptionFN {
	return func(c *Client) {
		c.extractor = e
	}
}

func New(settings *config.TransferSettings, optFNs ...OptionFN) *Client {
	c := &Client{settings: settings}

	for _, fn := range optFNs {
		fn(c)
	}

	if c.rc == nil {
		c.rc = resty.New()
	}

	if c.extractor == nil {
		c.extractor = archive.NewExtractor()
	}

	c.rc.SetBaseURL(settings.BaseURL).
		SetJSONMarshaler(json.Marshal).
		SetJSONUnmarshaler(json.Unmarshal)

	return c
}

// call posts body as JSON to route and decodes a successful response into
// result, when result is non-nil.
func (c *Client) call(ctx context.Context, route string, body, result interface{}) (*resty.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	resp, err := c.rc.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post(route)
	if err != nil {
		return nil, errors.Join(ErrTransport, err)
	}

	if resp.IsError() {
		_, err := ToErrorFromResponse(resp)
		return resp, err
	}

	if result != nil {
		if err := json.Unmarshal(resp.Body(), result); err != nil {
			return resp, errors.Join(ErrTransport, fmt.Errorf("unable to decode %s response: %s", route, err))
		}
	}

	return resp, nil
}

// fetchFile posts body to route and streams a successful response into path.
func (c *Client) fetchFile(ctx context.Context, route string, body interface{}, path string) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	resp, err := c.rc.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		SetDoNotParseResponse(true).
		Post(route)
	if err != nil {
		return errors.Join(ErrTransport, err)
	}

	raw := resp.RawBody()
	defer raw.Close()

	if resp.IsError() {
		b, _ := io.ReadAll(raw)
		_, err := toErrorFromBody(resp.StatusCode(), b)
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if _, err := io.Copy(f, raw); err != nil {
		_ = f.Close()
		return errors.Join(ErrTransport, err)
	}

	return f.Close()
}

// postFile sends the file at path as a multipart upload for the transfer.
func (c *Client) postFile(ctx context.Context, route, transferID, path string) error {
	idHeader, err := json.Marshal(transferID)
	if err != nil {
		return err
	}

	resp, err := c.rc.R().
		SetContext(ctx).
		SetHeader(xferapi.TransferIDHeader, string(idHeader)).
		SetFile(xferapi.FileFormField, path).
		Post(route)
	if err != nil {
		return errors.Join(ErrTransport, err)
	}

	if resp.IsError() {
		_, err := ToErrorFromResponse(resp)
		return err
	}

	return nil
}

// poll calls check with exponential backoff until it reports done, fails, or
// the poll timeout passes. Running out of time is ErrTimeout.
func (c *Client) poll(ctx context.Context, check func() (done bool, err error)) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = pollInitialInterval
	b.MaxInterval = pollMaxInterval
	b.MaxElapsedTime = c.settings.PollTimeout

	err := backoff.Retry(func() error {
		done, err := check()
		switch {
		case err != nil:
			return backoff.Permanent(err)
		case !done:
			return errNotReady
		default:
			return nil
		}
	}, backoff.WithContext(b, ctx))

	if errors.Is(err, errNotReady) {
		return ErrTimeout
	}

	return err
}

// end releases the server's state for a transfer. Failures are only logged.
func (c *Client) end(ctx context.Context, route, transferID string) {
	if _, err := c.call(context.WithoutCancel(ctx), route, transferID, nil); err != nil {
		log.Warnf("Unable to end transfer %s: %s", transferID, err)
	}
}
