package scorer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/survival-check/internal/logging"
	"github.com/example/survival-check/internal/passenger"
)

var scenarioInput = passenger.Input{
	Pclass: 1, Sex: passenger.Female, Age: 30, SibSp: 0, Parch: 0, Fare: 100, Embarked: passenger.Southampton,
}

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return data
}

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL, opts...)
	require.NoError(t, err)
	return c
}

func respond(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

func TestPredictSendsWireRequest(t *testing.T) {
	want := readFixture(t, "predict_request.json")
	var gotBody []byte
	var gotReq *http.Request

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotReq = r
		gotBody, _ = io.ReadAll(r.Body)
		_, _ = w.Write(readFixture(t, "predict_survived.json"))
	})

	ctx := logging.ContextWithRequestID(context.Background(), "req-42")
	res, err := c.Predict(ctx, scenarioInput)
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, gotReq.Method)
	assert.Equal(t, "/predict", gotReq.URL.Path)
	assert.Equal(t, "application/json", gotReq.Header.Get("Content-Type"))
	assert.Equal(t, "req-42", gotReq.Header.Get("X-Request-ID"))
	assert.JSONEq(t, string(want), string(gotBody))
	assert.Equal(t, Result{Prediction: 1, Label: "Survived", SurvivalProbability: 0.87}, res)
}

func TestPredictBodyDecodesOnReceivingSide(t *testing.T) {
	var received struct {
		Pclass   int
		Sex      string
		Age      float64
		SibSp    int
		Parch    int
		Fare     float64
		Embarked string
	}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&received); err != nil {
			http.Error(w, `{"detail":"bad body"}`, http.StatusBadRequest)
			return
		}
		_, _ = io.WriteString(w, `{"prediction":0,"prediction_label":"Did not survive","survival_probability":0.1}`)
	})

	in := passenger.Input{Pclass: 3, Sex: passenger.Male, Age: 22.5, SibSp: 1, Parch: 2, Fare: 7.25, Embarked: passenger.Queenstown}
	_, err := c.Predict(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, 3, received.Pclass)
	assert.Equal(t, "male", received.Sex)
	assert.Equal(t, 22.5, received.Age)
	assert.Equal(t, 1, received.SibSp)
	assert.Equal(t, 2, received.Parch)
	assert.Equal(t, 7.25, received.Fare)
	assert.Equal(t, "Q", received.Embarked)
}

func TestPredictServerErrorUsesDetail(t *testing.T) {
	c := newTestClient(t, respond(http.StatusUnprocessableEntity, `{"detail":"Age must be non-negative"}`))

	_, err := c.Predict(context.Background(), scenarioInput)
	require.Error(t, err)

	var se *Error
	require.True(t, errors.As(err, &se))
	assert.Equal(t, KindServer, se.Kind)
	assert.Equal(t, "Age must be non-negative", se.Message)
	assert.Equal(t, http.StatusUnprocessableEntity, se.Status)
}

func TestPredictServerErrorFlattensValidationDetail(t *testing.T) {
	c := newTestClient(t, respond(http.StatusUnprocessableEntity, string(readFixture(t, "validation_422.json"))))

	_, err := c.Predict(context.Background(), scenarioInput)
	var se *Error
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "Age: Input should be a valid number; SibSp: Input should be a valid integer", se.Message)
}

func TestPredictServerErrorFallsBackToGenericMessage(t *testing.T) {
	for name, body := range map[string]string{
		"empty":        "",
		"html":         "<html>Internal Server Error</html>",
		"no detail":    `{"error":"boom"}`,
		"empty detail": `{"detail":""}`,
		"number":       `{"detail":42}`,
	} {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, respond(http.StatusInternalServerError, body))

			_, err := c.Predict(context.Background(), scenarioInput)
			var se *Error
			require.True(t, errors.As(err, &se))
			assert.Equal(t, KindServer, se.Kind)
			assert.Equal(t, "request failed with status 500", se.Message)
		})
	}
}

func TestPredictDecodeErrors(t *testing.T) {
	for name, body := range map[string]string{
		"model missing":       `{"error":"Model not loaded. Please check server logs."}`,
		"missing probability": `{"prediction":1,"prediction_label":"Survived"}`,
		"string prediction":   `{"prediction":"1","prediction_label":"Survived","survival_probability":0.5}`,
		"prediction out":      `{"prediction":2,"prediction_label":"Survived","survival_probability":0.5}`,
		"probability out":     `{"prediction":1,"prediction_label":"Survived","survival_probability":1.5}`,
		"empty label":         `{"prediction":1,"prediction_label":"","survival_probability":0.5}`,
		"not json":            `ok`,
		"array":               `[]`,
	} {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, respond(http.StatusOK, body))

			_, err := c.Predict(context.Background(), scenarioInput)
			assert.Equal(t, KindDecode, KindOf(err))
		})
	}
}

func TestPredictTransportError(t *testing.T) {
	srv := httptest.NewServer(respond(http.StatusOK, "{}"))
	c, err := New(srv.URL)
	require.NoError(t, err)
	srv.Close()

	_, err = c.Predict(context.Background(), scenarioInput)
	assert.Equal(t, KindTransport, KindOf(err))
}

func TestPredictTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, WithTimeout(20*time.Millisecond))

	_, err := c.Predict(context.Background(), scenarioInput)
	assert.Equal(t, KindTimeout, KindOf(err))
}

func TestNewRejectsBadBaseURL(t *testing.T) {
	for _, raw := range []string{"", "ftp://example.com", "http://", "::"} {
		_, err := New(raw)
		assert.Error(t, err, raw)
	}

	c, err := New("https://scorer.example.com/")
	require.NoError(t, err)
	assert.Equal(t, "https://scorer.example.com", c.BaseURL())
}

func TestPing(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" || r.Method != http.MethodGet {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = io.WriteString(w, `{"message":"Welcome"}`)
	})
	assert.NoError(t, c.Ping(context.Background()))

	down := newTestClient(t, respond(http.StatusServiceUnavailable, ""))
	assert.Error(t, down.Ping(context.Background()))
}
