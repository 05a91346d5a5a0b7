package web

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liut/medilink/pkg/models/consult"
	"github.com/liut/medilink/pkg/services/consulting"
	"github.com/liut/medilink/pkg/services/gateway"
	"github.com/liut/medilink/pkg/services/stores"
)

type apiResp struct {
	Status  int             `json:"status"`
	Data    json.RawMessage `json:"data"`
	Count   int             `json:"count"`
	Warning string          `json:"warning"`
	Message string          `json:"message"`
}

func newTestServer(t *testing.T, remote http.HandlerFunc, limit string) *httptest.Server {
	rs := httptest.NewServer(remote)
	t.Cleanup(rs.Close)
	sess := consulting.New(gateway.New(rs.URL), stores.NewHistory(stores.NewMemoryKV()), consult.DefaultPreset())
	s := newServer(Config{Session: sess, StartLimit: limit})
	ts := httptest.NewServer(s.ar)
	t.Cleanup(ts.Close)
	return ts
}

func doReq(t *testing.T, method, uri, body string) (*http.Response, apiResp) {
	req, err := http.NewRequest(method, uri, strings.NewReader(body))
	require.NoError(t, err)
	if len(body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var ar apiResp
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&ar))
	}
	return resp, ar
}

func okRemote(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte(`{"diagnosis":"Viral syndrome","warnings":["monitor temperature"]}`))
}

func TestPing(t *testing.T) {
	ts := newTestServer(t, okRemote, "")
	resp, err := http.Get(ts.URL + "/ping")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestConsultationFlow(t *testing.T) {
	ts := newTestServer(t, okRemote, "")

	resp, ar := doReq(t, http.MethodPost, ts.URL+"/api/consultation/start",
		`{"patientNotes":"fatigue and cough","existingMeds":""}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var res consult.Result
	require.NoError(t, json.Unmarshal(ar.Data, &res))
	assert.Equal(t, "Viral syndrome", res.Diagnosis)
	assert.Equal(t, 1, ar.Count)
	assert.Empty(t, ar.Warning)

	resp, ar = doReq(t, http.MethodGet, ts.URL+"/api/consultation/current", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var cur struct {
		Result  consult.Result `json:"result"`
		Summary consult.Result `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(ar.Data, &cur))
	assert.Equal(t, res, cur.Result)
	assert.Equal(t, "Viral syndrome", cur.Summary.Diagnosis)
	assert.Len(t, cur.Summary.Actions, 3)

	resp, ar = doReq(t, http.MethodGet, ts.URL+"/api/history", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var data consult.Entries
	require.NoError(t, json.Unmarshal(ar.Data, &data))
	require.Len(t, data, 1)
	assert.Equal(t, res, data[0].Result)

	resp, _ = doReq(t, http.MethodDelete, ts.URL+"/api/consultation/current", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = doReq(t, http.MethodGet, ts.URL+"/api/consultation/current", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	itemURL := ts.URL + "/api/history/" + strconv.FormatInt(data[0].ID, 10)
	resp, ar = doReq(t, http.MethodGet, itemURL, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var e consult.Entry
	require.NoError(t, json.Unmarshal(ar.Data, &e))
	assert.Equal(t, data[0], e)
	resp, _ = doReq(t, http.MethodGet, ts.URL+"/api/consultation/current", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "reading an entry must not select it")

	resp, ar = doReq(t, http.MethodPost, itemURL+"/select", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	e = consult.Entry{}
	require.NoError(t, json.Unmarshal(ar.Data, &e))
	assert.Equal(t, data[0], e)
	resp, ar = doReq(t, http.MethodGet, ts.URL+"/api/consultation/current", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cur = struct {
		Result  consult.Result `json:"result"`
		Summary consult.Result `json:"summary"`
	}{}
	require.NoError(t, json.Unmarshal(ar.Data, &cur))
	assert.Equal(t, data[0].Result, cur.Result)

	resp, _ = doReq(t, http.MethodGet, ts.URL+"/api/history/abc", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = doReq(t, http.MethodGet, ts.URL+"/api/history/42", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = doReq(t, http.MethodPost, ts.URL+"/api/history/42/select", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doReq(t, http.MethodDelete, ts.URL+"/api/history", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	_, ar = doReq(t, http.MethodGet, ts.URL+"/api/history", "")
	assert.JSONEq(t, `[]`, string(ar.Data))
}

func TestStartErrors(t *testing.T) {
	ts := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}, "")

	resp, _ := doReq(t, http.MethodPost, ts.URL+"/api/consultation/start", `{"patientNotes":"  ","existingMeds":""}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, ar := doReq(t, http.MethodPost, ts.URL+"/api/consultation/start", `{"patientNotes":"fever","existingMeds":""}`)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Contains(t, ar.Message, "network")

	_, ar = doReq(t, http.MethodGet, ts.URL+"/api/history", "")
	assert.JSONEq(t, `[]`, string(ar.Data))
}

func TestStartLimit(t *testing.T) {
	ts := newTestServer(t, okRemote, "1-M")
	body := `{"patientNotes":"fever","existingMeds":""}`
	resp, _ := doReq(t, http.MethodPost, ts.URL+"/api/consultation/start", body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/consultation/start", strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestStatusAndSettings(t *testing.T) {
	ts := newTestServer(t, okRemote, "")
	resp, ar := doReq(t, http.MethodGet, ts.URL+"/api/status", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"busy":false,"text":"Idle"}`, string(ar.Data))

	resp, ar = doReq(t, http.MethodGet, ts.URL+"/api/settings", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var st map[string]any
	require.NoError(t, json.Unmarshal(ar.Data, &st))
	assert.Contains(t, st, "baseEndpoint")
	assert.Contains(t, st, "storageMode")
}

func TestStatusStream(t *testing.T) {
	ts := newTestServer(t, okRemote, "")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/status/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	sc := bufio.NewScanner(resp.Body)
	var line string
	for sc.Scan() {
		if strings.HasPrefix(sc.Text(), "data:") {
			line = sc.Text()
			break
		}
	}
	assert.Contains(t, line, `"text":"Idle"`)
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t, okRemote, "")
	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/history", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
