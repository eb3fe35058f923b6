package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"questcal/internal/config"
	"questcal/internal/model"
	"questcal/internal/watch"
)

const scenarioA = `{
	"type": "schedule",
	"timezone": "Asia/Seoul",
	"period": {"start": "2025-10-01", "end": "2025-10-14"},
	"schedule": {"rules": [{"byWeekday": [1, 3, 5], "time": "19:00"}]},
	"weekBoundary": 1,
	"enforcePartialWeeks": false,
	"verification": {"methods": ["time", "photo"], "mandatory": ["time", "photo"]}
}`

func newTestServer(t *testing.T, mutate func(*config.Config), opts ...Option) *httptest.Server {
	t.Helper()
	cfg := config.DefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}
	srv := httptest.NewServer(NewServer(cfg, opts...).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, srv *httptest.Server, path, body string) (*http.Response, []byte) {
	t.Helper()
	resp, err := srv.Client().Post(srv.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, err := srv.Client().Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))
}

func TestBasicAuth(t *testing.T) {
	srv := newTestServer(t, func(c *config.Config) {
		c.BasicAuth = &config.BasicAuthConfig{Username: "admin", Password: "secret"}
	})

	resp, err := srv.Client().Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode, "health stays public")

	resp, _ = post(t, srv, "/api/weeks", `{"start":"2025-10-01","end":"2025-10-19"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("WWW-Authenticate"), "Basic")

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/weeks", strings.NewReader(`{"start":"2025-10-01","end":"2025-10-19"}`))
	require.NoError(t, err)
	req.SetBasicAuth("admin", "secret")
	resp, err = srv.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNormalize(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, body := post(t, srv, "/api/normalize", `{"slot":"weekdays","value":["mon","wed"],"timezone":"Asia/Seoul"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"slot":"weekdays","value":[1,3],"missing":false}`, string(body))

	resp, body = post(t, srv, "/api/normalize", `{"draft":{"type":"schedule"}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var draft struct {
		MissingFields []string `json:"missingFields"`
	}
	require.NoError(t, json.Unmarshal(body, &draft))
	assert.Contains(t, draft.MissingFields, "period")

	resp, _ = post(t, srv, "/api/normalize", `{"slot":"time","value":"7pm","timezone":"Mars/Olympus"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = post(t, srv, "/api/normalize", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestOccurrences(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, body := post(t, srv, "/api/occurrences", `{"spec":`+scenarioA+`,"generation":4}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got struct {
		Generation  uint64             `json:"generation"`
		Occurrences []model.Occurrence `json:"occurrences"`
		Check       struct {
			Valid  bool     `json:"valid"`
			Errors []string `json:"errors"`
		} `json:"check"`
	}
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, uint64(4), got.Generation)
	require.Len(t, got.Occurrences, 6)
	assert.True(t, got.Occurrences[0].Start.Equal(time.Date(2025, 10, 1, 10, 0, 0, 0, time.UTC)))
	assert.True(t, got.Check.Valid)
	assert.Empty(t, got.Check.Errors)

	bad := strings.Replace(scenarioA, `"end": "2025-10-14"`, `"end": "2025-09-01"`, 1)
	resp, body = post(t, srv, "/api/occurrences", `{"spec":`+bad+`}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "period.end")

	resp, _ = post(t, srv, "/api/occurrences", `{"spec":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestOccurrencesICS(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, body := post(t, srv, "/api/occurrences.ics?summary=Gym", `{"spec":`+scenarioA+`}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/calendar")
	assert.Equal(t, 6, strings.Count(string(body), "BEGIN:VEVENT"))
	assert.Contains(t, string(body), "SUMMARY:Gym")

	capped := newTestServer(t, func(c *config.Config) { c.MaxOccurrences = 3 })
	resp, body = post(t, capped, "/api/occurrences.ics", `{"spec":`+scenarioA+`}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, string(body), "too many occurrences")
}

func TestPreview(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, body := post(t, srv, "/api/preview", `{"spec":`+scenarioA+`}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got struct {
		Items []struct {
			Date    string `json:"date"`
			Time    string `json:"time"`
			DayName string `json:"dayName"`
		} `json:"items"`
	}
	require.NoError(t, json.Unmarshal(body, &got))
	require.Len(t, got.Items, 6)
	assert.Equal(t, "2025-10-01", got.Items[0].Date)
	assert.Equal(t, "19:00", got.Items[0].Time)

	resp, body = post(t, srv, "/api/preview", `{"spec":{}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"items":[]}`, string(body))
}

func TestWeeks(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, body := post(t, srv, "/api/weeks", `{"start":"2025-10-01","end":"2025-10-19","boundary":"monday"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"weeks":[{"from":"2025-10-06","to":"2025-10-12"}],"count":1}`, string(body))

	resp, body = post(t, srv, "/api/weeks", `{"start":"2025-10-01","end":"2025-10-19"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"weeks":[{"from":"2025-10-01","to":"2025-10-07"},{"from":"2025-10-08","to":"2025-10-14"}],"count":2}`, string(body))

	resp, _ = post(t, srv, "/api/weeks", `{"start":"2025-10-01","end":"2025/10/19"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = post(t, srv, "/api/weeks", `{"start":"2025-10-19","end":"2025-10-01"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = post(t, srv, "/api/weeks", `{"start":"2025-10-01","end":"2025-10-19","boundary":"someday"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

const frequencySpec = `{
	"type": "frequency",
	"timezone": "UTC",
	"period": {"start": "2025-10-06", "end": "2025-10-13"},
	"schedule": {"rules": []},
	"countRule": {"operator": ">=", "count": 2, "unit": "per_week"},
	"weekBoundary": 1,
	"enforcePartialWeeks": false,
	"verification": {"methods": ["manual", "photo"], "mandatory": ["manual", "photo"]}
}`

func TestValidate(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, body := post(t, srv, "/api/validate", `{
		"events": [{"date":"2025-10-06","time":"07:00"},{"date":"2025-10-09"}],
		"spec": `+frequencySpec+`,
		"generation": 7
	}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got struct {
		Generation   uint64   `json:"generation"`
		IsCompatible bool     `json:"isCompatible"`
		Issues       []string `json:"issues"`
	}
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, uint64(7), got.Generation)
	assert.True(t, got.IsCompatible)
	assert.Empty(t, got.Issues)

	resp, body = post(t, srv, "/api/validate", `{"events":[{"date":"2025-10-06"}],"spec":`+frequencySpec+`}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &got))
	assert.False(t, got.IsCompatible)
	assert.NotEmpty(t, got.Issues)
	assert.NotContains(t, string(body), `"generation"`)

	resp, body = post(t, srv, "/api/validate", `{"events":[],"spec":`+frequencySpec+`,"start":"2025-10-06","end":"12-10-2025"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "end:")

	mresp, err := srv.Client().Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer mresp.Body.Close()
	metricsBody, _ := io.ReadAll(mresp.Body)
	assert.Contains(t, string(metricsBody), `questcal_validations_total{result="compatible"} 1`)
	assert.Contains(t, string(metricsBody), `questcal_validations_total{result="incompatible"} 1`)
	assert.Contains(t, string(metricsBody), `questcal_http_requests_total{code="400",route="validate"} 1`)
}

func TestVerification(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, body := post(t, srv, "/api/verification/validate", `{"goalType":"schedule","signals":["time"]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var check struct {
		Valid       bool     `json:"valid"`
		Errors      []string `json:"errors"`
		Suggestions []string `json:"suggestions"`
	}
	require.NoError(t, json.Unmarshal(body, &check))
	assert.False(t, check.Valid)
	assert.Contains(t, check.Errors, "time_alone_insufficient")
	assert.ElementsMatch(t, []string{"location", "photo", "manual"}, check.Suggestions)

	resp, body = post(t, srv, "/api/verification/plan", `{"goalType":"schedule","context":{"location":{"mode":"geofence"}}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var plan struct {
		Mandatory []string `json:"mandatory"`
		FollowUps []struct {
			Field string `json:"field"`
		} `json:"followUps"`
		Valid bool `json:"valid"`
	}
	require.NoError(t, json.Unmarshal(body, &plan))
	assert.True(t, plan.Valid)
	assert.Contains(t, plan.Mandatory, "time")
	assert.Contains(t, plan.Mandatory, "location")
	require.Len(t, plan.FollowUps, 1)
	assert.Equal(t, "location.placeName", plan.FollowUps[0].Field)
}

type noEvents struct{}

func (noEvents) Events(context.Context, model.Period, *time.Location) ([]model.CalendarEvent, error) {
	return nil, nil
}

func TestWatch(t *testing.T) {
	srv := newTestServer(t, nil)
	resp, err := srv.Client().Get(srv.URL + "/api/watch")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var spec model.GoalSpec
	require.NoError(t, json.Unmarshal([]byte(frequencySpec), &spec))
	w := watch.New(spec, time.UTC, noEvents{})
	srv = newTestServer(t, nil, WithWatcher(w))

	resp, err = srv.Client().Get(srv.URL + "/api/watch")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	w.RunOnce(context.Background())
	resp, err = srv.Client().Get(srv.URL + "/api/watch")
	require.NoError(t, err)
	defer resp.Body.Close()
	var res watch.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.Equal(t, uint64(1), res.Generation)
	assert.False(t, res.Validation.IsCompatible)
}
