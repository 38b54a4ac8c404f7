package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hutchstack/bunny-go/obfuscation"
	"github.com/hutchstack/bunny-go/rquest"
)

const availabilityPayload = `{
	"uuid": "task-42",
	"owner": "user1",
	"collection": "collection-1",
	"protocol_version": "v2",
	"char_salt": "salt",
	"cohort": {
		"groups_oper": "OR",
		"groups": [{
			"rules_oper": "AND",
			"rules": [{
				"varname": "OMOP",
				"varcat": "Condition",
				"type": "TEXT",
				"oper": "=",
				"value": "28060"
			}]
		}]
	}
}`

// fakeAPI scripts poll responses and records submissions.
type fakeAPI struct {
	mu        sync.Mutex
	polls     []func(w http.ResponseWriter)
	pollCount int
	submitted []rquest.Result
	authed    bool
}

func (f *fakeAPI) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/task/nextjob/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		_, _, f.authed = r.BasicAuth()
		i := f.pollCount
		f.pollCount++
		if i >= len(f.polls) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		f.polls[i](w)
	})
	mux.HandleFunc("/task/result/", func(w http.ResponseWriter, r *http.Request) {
		var res rquest.Result
		require.NoError(t, json.NewDecoder(r.Body).Decode(&res))
		f.mu.Lock()
		defer f.mu.Unlock()
		f.submitted = append(f.submitted, res)
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func respondJSON(body string) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(body))
	}
}

func respondStatus(code int) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		w.WriteHeader(code)
	}
}

func testClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := NewClient(ClientConfig{
		BaseURL:      baseURL,
		Username:     "user1",
		Password:     "secret",
		CollectionID: "collection-1",
	}, zap.NewNop())
	require.NoError(t, err)
	return c
}

func fastPolicy() Policy {
	return Policy{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}
}

func TestClientRejectsInsecureEndpoint(t *testing.T) {
	_, err := NewClient(ClientConfig{
		BaseURL:      "http://hutch.example.com",
		EnforceHTTPS: true,
	}, nil)
	require.ErrorIs(t, err, ErrInsecureEndpoint)
}

func TestClientPollDecodesTask(t *testing.T) {
	api := &fakeAPI{polls: []func(http.ResponseWriter){respondJSON(availabilityPayload)}}
	srv := httptest.NewServer(api.handler(t))
	defer srv.Close()

	task, err := testClient(t, srv.URL).Poll(context.Background())
	require.NoError(t, err)
	require.NotNil(t, task)
	require.Equal(t, rquest.TaskAvailability, task.Kind)
	require.Equal(t, "task-42", task.UUID())
	require.True(t, api.authed)
}

func TestClientPollEmptyQueue(t *testing.T) {
	api := &fakeAPI{}
	srv := httptest.NewServer(api.handler(t))
	defer srv.Close()

	task, err := testClient(t, srv.URL).Poll(context.Background())
	require.NoError(t, err)
	require.Nil(t, task)
}

func TestClientPollAuthFailure(t *testing.T) {
	api := &fakeAPI{polls: []func(http.ResponseWriter){respondStatus(http.StatusUnauthorized)}}
	srv := httptest.NewServer(api.handler(t))
	defer srv.Close()

	_, err := testClient(t, srv.URL).Poll(context.Background())
	require.ErrorIs(t, err, ErrAuthFailure)
	require.False(t, Retryable(err))
}

func TestClientSubmitPath(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	res := rquest.NewResult("task-42", "collection-1", 7, nil)
	require.NoError(t, testClient(t, srv.URL).Submit(context.Background(), res))
	require.Equal(t, "/task/result/task-42/collection-1", gotPath)
}

func TestRetryableClassification(t *testing.T) {
	require.True(t, Retryable(&StatusError{Code: 503}))
	require.False(t, Retryable(Permanent(&StatusError{Code: 503})))
	require.False(t, Retryable(&StatusError{Code: 404}))
	require.False(t, Retryable(ErrAuthFailure))
	require.False(t, Retryable(nil))
}

func TestPolicyDelaySchedule(t *testing.T) {
	p := Policy{InitialDelay: time.Second, MaxDelay: 4 * time.Second, Factor: 2}
	require.Equal(t, time.Second, p.Delay(1))
	require.Equal(t, 2*time.Second, p.Delay(2))
	require.Equal(t, 4*time.Second, p.Delay(3))
	require.Equal(t, 4*time.Second, p.Delay(10))
}

func TestPolicyStopsOnPermanent(t *testing.T) {
	calls := 0
	err := fastPolicy().Do(context.Background(), func() error {
		calls++
		return Permanent(ErrAuthFailure)
	})
	require.ErrorIs(t, err, ErrAuthFailure)
	require.Equal(t, 1, calls)
}

func TestPolicyExhaustsAttempts(t *testing.T) {
	calls := 0
	err := fastPolicy().Do(context.Background(), func() error {
		calls++
		return &StatusError{Code: 500}
	})
	var se *StatusError
	require.ErrorAs(t, err, &se)
	require.Equal(t, 3, calls)
}

// The loop should skip two empty polls, then fetch the availability task,
// obfuscate its raw count and submit the result.
func TestPollingServiceEndToEnd(t *testing.T) {
	api := &fakeAPI{polls: []func(http.ResponseWriter){
		respondStatus(http.StatusNoContent),
		respondStatus(http.StatusNoContent),
		respondJSON(availabilityPayload),
	}}
	srv := httptest.NewServer(api.handler(t))
	defer srv.Close()

	pipeline := obfuscation.Pipeline{Threshold: 5, Nearest: 0}
	solve := func(ctx context.Context, task *rquest.Task) (rquest.Result, error) {
		count := pipeline.Apply(42)
		return rquest.NewResult(task.UUID(), task.Collection(), count, nil), nil
	}

	svc := NewPollingService(testClient(t, srv.URL), solve, time.Millisecond, fastPolicy(), zap.NewNop())
	svc.MaxPolls = 3
	require.NoError(t, svc.Run(context.Background()))

	require.Len(t, api.submitted, 1)
	require.Equal(t, "task-42", api.submitted[0].UUID)
	require.Equal(t, int64(42), api.submitted[0].QueryResult.Count)
	require.Equal(t, "ok", api.submitted[0].Status)
	require.Equal(t, 3, api.pollCount)
}

// A transient submission failure retries only the failed round-trip: the
// task is not re-polled and the solver runs once.
func TestPollingServiceRetriesSubmissionOnly(t *testing.T) {
	api := &fakeAPI{polls: []func(http.ResponseWriter){respondJSON(availabilityPayload)}}
	mux := http.NewServeMux()
	mux.Handle("/task/nextjob/", api.handler(t))
	submitAttempts := 0
	mux.HandleFunc("/task/result/", func(w http.ResponseWriter, r *http.Request) {
		submitAttempts++
		if submitAttempts == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	solves := 0
	solve := func(ctx context.Context, task *rquest.Task) (rquest.Result, error) {
		solves++
		return rquest.NewResult(task.UUID(), task.Collection(), 1, nil), nil
	}

	svc := NewPollingService(testClient(t, srv.URL), solve, time.Millisecond, fastPolicy(), zap.NewNop())
	svc.MaxPolls = 1
	require.NoError(t, svc.Run(context.Background()))

	require.Equal(t, 1, solves)
	require.Equal(t, 2, submitAttempts)
	require.Equal(t, 1, api.pollCount)
}

// A failing task still submits its error-status result.
func TestPollingServiceSubmitsErrorResult(t *testing.T) {
	api := &fakeAPI{polls: []func(http.ResponseWriter){respondJSON(availabilityPayload)}}
	srv := httptest.NewServer(api.handler(t))
	defer srv.Close()

	solve := func(ctx context.Context, task *rquest.Task) (rquest.Result, error) {
		return rquest.NewErrorResult(task.UUID(), task.Collection(), "no backend"), errors.New("no backend")
	}

	svc := NewPollingService(testClient(t, srv.URL), solve, time.Millisecond, fastPolicy(), zap.NewNop())
	svc.MaxPolls = 1
	require.NoError(t, svc.Run(context.Background()))

	require.Len(t, api.submitted, 1)
	require.Equal(t, "error", api.submitted[0].Status)
	require.Equal(t, "task-42", api.submitted[0].UUID)
}

func TestPollingServiceStopsOnAuthFailure(t *testing.T) {
	api := &fakeAPI{polls: []func(http.ResponseWriter){respondStatus(http.StatusForbidden)}}
	srv := httptest.NewServer(api.handler(t))
	defer srv.Close()

	svc := NewPollingService(testClient(t, srv.URL), nil, time.Millisecond, fastPolicy(), zap.NewNop())
	require.ErrorIs(t, svc.Run(context.Background()), ErrAuthFailure)
}

func TestPollingServiceShutdown(t *testing.T) {
	api := &fakeAPI{}
	srv := httptest.NewServer(api.handler(t))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	svc := NewPollingService(testClient(t, srv.URL), nil, 50*time.Millisecond, fastPolicy(), zap.NewNop())

	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("polling service did not shut down")
	}
}
