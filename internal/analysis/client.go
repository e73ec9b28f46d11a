// Package analysis talks to the song-analysis service: it submits a
// song for processing, polls the job until it settles, and fetches the
// resulting stem and mixed audio.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"stemgrid/api"
	griderrors "stemgrid/pkg/errors"
)

// Client communicates with the analysis REST API. Job polls ride a
// dedicated client whose timeout covers the server's long-poll hold;
// everything else uses the ordinary fetch timeout.
type Client struct {
	baseURL string
	http    *http.Client
	poll    *http.Client
}

// NewClient creates an analysis API client. pollTimeout must exceed
// the server's long-poll budget or every quiet poll times out.
func NewClient(baseURL string, timeout, pollTimeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		poll:    &http.Client{Timeout: pollTimeout},
	}
}

type analyzeRequest struct {
	URL   string        `json:"url"`
	Genre api.GenreHint `json:"genre,omitempty"`
}

// Analyze submits a song URL for analysis and returns the job ID.
func (c *Client) Analyze(ctx context.Context, songURL string, genre api.GenreHint) (string, error) {
	body, err := json.Marshal(analyzeRequest{URL: songURL, Genre: genre})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("submit analysis: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &griderrors.FetchError{Resource: "analyze", Status: resp.StatusCode}
	}

	var job api.JobResponse
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return job.JobID, nil
}

// GetJob polls one job. When afterStatus is non-empty the server holds
// the request open until the status or progress moves past the given
// values, or its long-poll budget runs out.
func (c *Client) GetJob(ctx context.Context, jobID string, afterStatus api.JobStatus, afterProgress float64) (api.JobResponse, error) {
	u := c.baseURL + "/jobs/" + url.PathEscape(jobID)
	if afterStatus != "" {
		q := url.Values{}
		q.Set("after_status", string(afterStatus))
		q.Set("after_progress", fmt.Sprintf("%g", afterProgress))
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return api.JobResponse{}, fmt.Errorf("create poll request: %w", err)
	}

	resp, err := c.poll.Do(req)
	if err != nil {
		return api.JobResponse{}, fmt.Errorf("poll job: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return api.JobResponse{}, griderrors.ErrJobNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return api.JobResponse{}, &griderrors.FetchError{Resource: "job " + jobID, Status: resp.StatusCode}
	}

	var job api.JobResponse
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return api.JobResponse{}, fmt.Errorf("decode job: %w", err)
	}
	return job, nil
}

// WaitForResult long-polls the job until it settles. onProgress, if
// non-nil, observes every state transition.
func (c *Client) WaitForResult(ctx context.Context, jobID string, onProgress func(api.JobResponse)) (*api.AnalysisResult, error) {
	var last api.JobResponse
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		job, err := c.GetJob(ctx, jobID, last.Status, last.Progress)
		if err != nil {
			return nil, err
		}
		if job.Status == last.Status && job.Progress == last.Progress && !job.Status.Terminal() {
			// Server answered without long-polling; back off.
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(500 * time.Millisecond):
			}
		} else if onProgress != nil {
			onProgress(job)
		}
		last = job

		switch job.Status {
		case api.JobComplete:
			if job.Result == nil {
				return nil, fmt.Errorf("job %s complete without result", jobID)
			}
			return job.Result, nil
		case api.JobFailed:
			return nil, fmt.Errorf("%w: %s", griderrors.ErrJobFailed, job.Error)
		}
	}
}

func (c *Client) fetchBytes(ctx context.Context, path, resource string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &griderrors.FetchError{Resource: resource, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &griderrors.FetchError{Resource: resource, Status: resp.StatusCode}
	}
	return io.ReadAll(resp.Body)
}

// FetchStem downloads one stem's encoded audio.
func (c *Client) FetchStem(ctx context.Context, jobID string, stem api.StemName) ([]byte, error) {
	path := "/audio/" + url.PathEscape(jobID) + "/stems/" + url.PathEscape(string(stem))
	return c.fetchBytes(ctx, path, "stem "+string(stem))
}

// FetchMixed downloads the full mixed audio.
func (c *Client) FetchMixed(ctx context.Context, jobID string) ([]byte, error) {
	return c.fetchBytes(ctx, "/audio/"+url.PathEscape(jobID), "mixed audio")
}

// Session binds the client to one job, yielding the audio source the
// playback engine consumes.
type Session struct {
	client *Client
	jobID  string
}

// Session returns a per-job audio source.
func (c *Client) Session(jobID string) *Session {
	return &Session{client: c, jobID: jobID}
}

// FetchStem implements the engine's stem fetcher.
func (s *Session) FetchStem(ctx context.Context, stem api.StemName) ([]byte, error) {
	return s.client.FetchStem(ctx, s.jobID, stem)
}

// FetchMixed implements the engine's fallback fetcher.
func (s *Session) FetchMixed(ctx context.Context) ([]byte, error) {
	return s.client.FetchMixed(ctx, s.jobID)
}
