package xferclient

import (
	"errors"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/materials-commons/tablexfer/pkg/jobstate"
)

var (
	// ErrTransport is returned when the server cannot be reached or answers a
	// call with an unexpected status.
	ErrTransport = errors.New("transfer transport")

	// ErrTimeout is returned when the server's background work does not finish
	// within the poll timeout.
	ErrTimeout = errors.New("transfer timed out")

	// ErrJobFailed is returned when the server reports that the transfer's
	// background work failed. The server has already discarded the transfer.
	ErrJobFailed = errors.New("transfer job failed")
)

// ErrorResponse is the JSON the server answers a failed call with.
type ErrorResponse struct {
	Error  string `json:"error"`
	Status string `json:"status"`
}

// ToErrorFromResponse turns a non 2xx response into an error wrapping
// ErrJobFailed for failed jobs and ErrTransport for everything else.
func ToErrorFromResponse(resp *resty.Response) (*ErrorResponse, error) {
	return toErrorFromBody(resp.StatusCode(), resp.Body())
}

func toErrorFromBody(status int, body []byte) (*ErrorResponse, error) {
	var errorResponse ErrorResponse
	if err := json.Unmarshal(body, &errorResponse); err != nil {
		return nil, errors.Join(ErrTransport, fmt.Errorf("(HTTP Status: %d)- unable to parse json error response: %s", status, err))
	}

	if errorResponse.Status == string(jobstate.StatusFailed) {
		return &errorResponse, errors.Join(ErrJobFailed, errors.New(errorResponse.Error))
	}

	return &errorResponse, errors.Join(ErrTransport, fmt.Errorf("(HTTP Status: %d)- %s", status, errorResponse.Error))
}
