package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"stemgrid/api"
	griderrors "stemgrid/pkg/errors"
)

func newTestClient(handler http.Handler) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	return NewClient(srv.URL, 5*time.Second, 5*time.Second), srv
}

func TestAnalyze(t *testing.T) {
	var gotBody analyzeRequest
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/analyze" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(api.JobResponse{JobID: "job-1", Status: api.JobQueued})
	}))
	defer srv.Close()

	jobID, err := client.Analyze(context.Background(), "https://example.com/song", api.GenreSalsa)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if jobID != "job-1" {
		t.Errorf("jobID = %q, want job-1", jobID)
	}
	if gotBody.URL != "https://example.com/song" || gotBody.Genre != api.GenreSalsa {
		t.Errorf("request body = %+v", gotBody)
	}
}

func TestGetJob_LongPollParams(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/jobs/job-1" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("after_status"); got != "downloading" {
			t.Errorf("after_status = %q, want downloading", got)
		}
		if got := r.URL.Query().Get("after_progress"); got != "0.5" {
			t.Errorf("after_progress = %q, want 0.5", got)
		}
		json.NewEncoder(w).Encode(api.JobResponse{JobID: "job-1", Status: api.JobDetectingBeats, Progress: 0.6})
	}))
	defer srv.Close()

	job, err := client.GetJob(context.Background(), "job-1", api.JobDownloading, 0.5)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if job.Status != api.JobDetectingBeats {
		t.Errorf("Status = %s", job.Status)
	}
}

func TestGetJob_NotFound(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := client.GetJob(context.Background(), "missing", "", 0)
	if !errors.Is(err, griderrors.ErrJobNotFound) {
		t.Errorf("error = %v, want ErrJobNotFound", err)
	}
}

func TestWaitForResult(t *testing.T) {
	statuses := []api.JobStatus{api.JobDownloading, api.JobSeparatingStems, api.JobComplete}
	call := 0
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := api.JobResponse{JobID: "job-1", Status: statuses[call], Progress: float64(call) / 3}
		if resp.Status == api.JobComplete {
			resp.Result = &api.AnalysisResult{Tempo: 190}
		}
		if call < len(statuses)-1 {
			call++
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	var seen []api.JobStatus
	result, err := client.WaitForResult(context.Background(), "job-1", func(j api.JobResponse) {
		seen = append(seen, j.Status)
	})
	if err != nil {
		t.Fatalf("WaitForResult: %v", err)
	}
	if result.Tempo != 190 {
		t.Errorf("Tempo = %v, want 190", result.Tempo)
	}
	if len(seen) != 3 {
		t.Errorf("progress callbacks = %v, want all 3 transitions", seen)
	}
}

func TestWaitForResult_JobFailed(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(api.JobResponse{JobID: "job-1", Status: api.JobFailed, Error: "download blocked"})
	}))
	defer srv.Close()

	_, err := client.WaitForResult(context.Background(), "job-1", nil)
	if !errors.Is(err, griderrors.ErrJobFailed) {
		t.Errorf("error = %v, want ErrJobFailed", err)
	}
}

func TestPollOutlivesFetchTimeout(t *testing.T) {
	// A held long-poll must not be cut off by the short fetch timeout.
	hold := 150 * time.Millisecond
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(hold)
		json.NewEncoder(w).Encode(api.JobResponse{JobID: "job-1", Status: api.JobDownloading})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 20*time.Millisecond, 2*time.Second)

	if _, err := client.GetJob(context.Background(), "job-1", api.JobQueued, 0); err != nil {
		t.Errorf("GetJob within poll timeout: %v", err)
	}
	if _, err := client.FetchMixed(context.Background(), "job-1"); err == nil {
		t.Error("FetchMixed should time out on a slow response")
	}
}

func TestSessionFetches(t *testing.T) {
	stemPayload := []byte("stem-bytes")
	mixedPayload := []byte("mixed-bytes")
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/audio/job-1/stems/drums":
			w.Write(stemPayload)
		case "/audio/job-1":
			w.Write(mixedPayload)
		case "/audio/job-1/stems/vocals":
			http.Error(w, "not found", http.StatusNotFound)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	sess := client.Session("job-1")

	data, err := sess.FetchStem(context.Background(), api.StemDrums)
	if err != nil {
		t.Fatalf("FetchStem: %v", err)
	}
	if string(data) != "stem-bytes" {
		t.Errorf("stem payload = %q", data)
	}

	data, err = sess.FetchMixed(context.Background())
	if err != nil {
		t.Fatalf("FetchMixed: %v", err)
	}
	if string(data) != "mixed-bytes" {
		t.Errorf("mixed payload = %q", data)
	}

	_, err = sess.FetchStem(context.Background(), api.StemVocals)
	var ferr *griderrors.FetchError
	if !errors.As(err, &ferr) {
		t.Fatalf("error = %v, want *FetchError", err)
	}
	if ferr.Status != http.StatusNotFound {
		t.Errorf("Status = %d, want 404", ferr.Status)
	}
}
