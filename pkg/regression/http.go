package regression

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"github.com/HatiCode/romcv/pkg/dataset"
	"github.com/HatiCode/romcv/pkg/romerr"
)

// DefaultValuePath is the gjson path of the prediction matrix in a model
// service response.
const DefaultValuePath = "predictions"

// HTTPBackend delegates fitting and prediction to a remote model service.
//
// The fold's tables are posted as JSON:
//
//	{
//	  "method": "SVM", "fold": 0,
//	  "numIn": 2, "numOut": 1,
//	  "inputNames": ["x1","x2"], "outputNames": ["y"],
//	  "mins": [0,0], "maxs": [1,1],
//	  "trainInputs": [[...], ...],
//	  "trainOutputs": [[...], ...],
//	  "testInputs": [[...], ...]
//	}
//
// The service answers with a matrix of NumTest rows of NumOut values at
// ValuePath. A flat array is accepted when NumOut is 1. The backend writes the
// matrix to the request's output file with the output names as header.
type HTTPBackend struct {
	// URL is the endpoint to call (required).
	URL string

	// Headers are extra HTTP headers. Values may use TemplateData fields.
	Headers map[string]string

	// ValuePath is the gjson path to the prediction matrix. Defaults to
	// DefaultValuePath.
	ValuePath string

	// HTTPClient is optional; if nil a default client is used.
	HTTPClient *http.Client
}

type predictRequest struct {
	Method       string      `json:"method"`
	Fold         int         `json:"fold"`
	NumIn        int         `json:"numIn"`
	NumOut       int         `json:"numOut"`
	InputNames   []string    `json:"inputNames"`
	OutputNames  []string    `json:"outputNames"`
	Mins         []float64   `json:"mins"`
	Maxs         []float64   `json:"maxs"`
	TrainInputs  [][]float64 `json:"trainInputs"`
	TrainOutputs [][]float64 `json:"trainOutputs"`
	TestInputs   [][]float64 `json:"testInputs"`
}

// NewHTTPBackend returns an HTTPBackend for url with a pooled client.
func NewHTTPBackend(url string) *HTTPBackend {
	return &HTTPBackend{
		URL:       url,
		ValuePath: DefaultValuePath,
		HTTPClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
				MaxIdleConnsPerHost: 2,
			},
		},
	}
}

// Predict posts the fold to the service and writes the returned predictions.
func (h *HTTPBackend) Predict(ctx context.Context, req Request) error {
	if h.URL == "" {
		return romerr.Configf("http backend for %s: URL is required", req.Method)
	}

	payload, err := h.payload(req)
	if err != nil {
		return err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("http backend: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.URL, bytes.NewReader(body))
	if err != nil {
		return romerr.Configf("http backend: create request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	data := templateData(req, ModePredict)
	for key, value := range h.Headers {
		rendered, err := renderTemplate(value, data)
		if err != nil {
			return romerr.Configf("http backend: render header %s: %v", key, err)
		}
		httpReq.Header.Set(key, rendered)
	}

	cli := h.HTTPClient
	if cli == nil {
		cli = http.DefaultClient
	}

	resp, err := cli.Do(httpReq)
	if err != nil {
		return romerr.Backendf("http request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return romerr.Backendf("http %d: %s", resp.StatusCode, string(msg))
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return romerr.Backendf("read response: %v", err)
	}

	rows, err := h.extract(respBody, req.NumTest, req.NumOut)
	if err != nil {
		return err
	}

	header := req.Meta.OutputNames
	if len(header) != req.NumOut {
		header = defaultNames("y", req.NumOut)
	}
	return dataset.WriteTable(req.Output, dataset.Table{Header: header, Rows: rows})
}

func (h *HTTPBackend) payload(req Request) (predictRequest, error) {
	trainIn, err := dataset.ReadTable(req.TrainInputs)
	if err != nil {
		return predictRequest{}, err
	}
	trainOut, err := dataset.ReadTable(req.TrainOutputs)
	if err != nil {
		return predictRequest{}, err
	}
	test, err := dataset.ReadTable(req.TestInputs)
	if err != nil {
		return predictRequest{}, err
	}

	return predictRequest{
		Method:       req.Method.String(),
		Fold:         req.Fold,
		NumIn:        req.NumIn,
		NumOut:       req.NumOut,
		InputNames:   req.Meta.InputNames,
		OutputNames:  req.Meta.OutputNames,
		Mins:         req.Meta.Mins,
		Maxs:         req.Meta.Maxs,
		TrainInputs:  nonNil(trainIn.Rows),
		TrainOutputs: nonNil(trainOut.Rows),
		TestInputs:   nonNil(test.Rows),
	}, nil
}

func (h *HTTPBackend) extract(body []byte, numTest, numOut int) ([][]float64, error) {
	path := h.ValuePath
	if path == "" {
		path = DefaultValuePath
	}

	result := gjson.GetBytes(body, path)
	if !result.Exists() {
		return nil, romerr.Backendf("value path %q not found in response", path)
	}
	if !result.IsArray() {
		return nil, romerr.Backendf("value path %q is not an array", path)
	}

	items := result.Array()
	if len(items) != numTest {
		return nil, romerr.Backendf("expected %d predictions, got %d", numTest, len(items))
	}

	rows := make([][]float64, len(items))
	for i, item := range items {
		if !item.IsArray() {
			if numOut != 1 {
				return nil, romerr.Backendf("prediction %d: expected %d values, got a scalar", i, numOut)
			}
			rows[i] = []float64{item.Float()}
			continue
		}
		vals := item.Array()
		if len(vals) != numOut {
			return nil, romerr.Backendf("prediction %d: expected %d values, got %d", i, numOut, len(vals))
		}
		row := make([]float64, numOut)
		for j, v := range vals {
			row[j] = v.Float()
		}
		rows[i] = row
	}
	return rows, nil
}

func nonNil(rows [][]float64) [][]float64 {
	if rows == nil {
		return [][]float64{}
	}
	return rows
}

func defaultNames(prefix string, n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("%s%d", prefix, i+1)
	}
	return names
}
