// Package gateway is the HTTP client for the face-detection backend REST API.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// maxErrorBody bounds how much of an error reply is read for its message.
const maxErrorBody = 4096

// Client executes named operations against the backend.
type Client struct {
	baseURL string
	http    *http.Client
	logger  zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// New creates a Client for the API rooted at baseURL, e.g. http://localhost:5000/api.
// A zero timeout leaves requests bounded only by their context.
func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// do sends a request and decodes a JSON reply into out. Non-2xx replies
// become *RemoteError.
func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: failed to marshal request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: failed to build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str("op", op).
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("backend request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		var env envelope
		_ = json.Unmarshal(raw, &env)
		msg := env.Message
		if msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		return &RemoteError{Op: op, StatusCode: resp.StatusCode, Message: msg, Err: ErrHTTPStatus}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: failed to decode response: %w", op, err)
	}
	return nil
}

// checkEnvelope turns a success=false reply into an error.
func checkEnvelope(op string, env envelope) error {
	if env.Success != nil && !*env.Success {
		return &RemoteError{Op: op, Message: env.Message, Err: ErrUnsuccessful}
	}
	return nil
}

// CameraStatus fetches the running/recording state of the camera.
func (c *Client) CameraStatus(ctx context.Context) (CameraStatus, error) {
	var status CameraStatus
	if err := c.do(ctx, "get camera status", http.MethodGet, "/camera/status", nil, &status); err != nil {
		return CameraStatus{}, err
	}
	return status, nil
}

// Frame fetches the current camera frame. ErrNoFrame is returned when the
// backend has none, which is normal while the camera is stopped.
func (c *Client) Frame(ctx context.Context) (Frame, error) {
	const op = "get current frame"

	var reply wireFrame
	if err := c.do(ctx, op, http.MethodGet, "/camera/frame", nil, &reply); err != nil {
		var re *RemoteError
		if errors.As(err, &re) && re.StatusCode == http.StatusNotFound {
			re.Err = ErrNoFrame
		}
		return Frame{}, err
	}
	if err := checkEnvelope(op, reply.envelope); err != nil {
		return Frame{}, err
	}
	if reply.Frame == "" {
		return Frame{}, &RemoteError{Op: op, Err: ErrNoFrame}
	}
	return Frame{Data: reply.Frame, Timestamp: time.Time(reply.Timestamp)}, nil
}

// Statistics fetches the dashboard counters.
func (c *Client) Statistics(ctx context.Context) (Statistics, error) {
	const op = "get statistics"

	var reply wireStatistics
	if err := c.do(ctx, op, http.MethodGet, "/statistics", nil, &reply); err != nil {
		return Statistics{}, err
	}
	if err := checkEnvelope(op, reply.envelope); err != nil {
		return Statistics{}, err
	}
	return reply.Statistics, nil
}

// DailyReport fetches the activity report for the given day.
func (c *Client) DailyReport(ctx context.Context, date time.Time) (DailyReport, error) {
	const op = "get daily report"

	q := url.Values{"date": {date.Format("2006-01-02")}}
	var reply wireDailyReport
	if err := c.do(ctx, op, http.MethodGet, "/reports/daily?"+q.Encode(), nil, &reply); err != nil {
		return DailyReport{}, err
	}
	if err := checkEnvelope(op, reply.envelope); err != nil {
		return DailyReport{}, err
	}

	report := DailyReport{
		Date:            reply.Date,
		TotalDetections: reply.TotalDetections,
		Persons:         make(map[string]PersonActivity, len(reply.Students)),
		Intruders:       make([]Intruder, 0, len(reply.Intruders)),
	}
	for name, a := range reply.Students {
		report.Persons[name] = PersonActivity{
			Count:     a.Count,
			FirstSeen: time.Time(a.FirstSeen),
			LastSeen:  time.Time(a.LastSeen),
		}
	}
	for _, in := range reply.Intruders {
		report.Intruders = append(report.Intruders, in.intruder())
	}
	return report, nil
}

// RecentDetections returns the sightings of the given day, most recent first.
// Known persons contribute their latest sighting, intruders every sighting.
func (c *Client) RecentDetections(ctx context.Context, date time.Time) ([]Detection, error) {
	report, err := c.DailyReport(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("get recent detections: %w", err)
	}

	detections := make([]Detection, 0, len(report.Persons)+len(report.Intruders))
	for name, a := range report.Persons {
		detections = append(detections, Detection{Timestamp: a.LastSeen, PersonName: name})
	}
	for _, in := range report.Intruders {
		detections = append(detections, Detection{
			ID:            in.ID,
			Timestamp:     in.Timestamp,
			PersonID:      in.PersonID,
			FaceImagePath: in.FaceImagePath,
			Intruder:      true,
		})
	}
	SortDetections(detections)
	return detections, nil
}

// SortDetections orders detections most recent first. Ties keep a stable
// order by person name then id so repeated polls render identically.
func SortDetections(d []Detection) {
	sort.SliceStable(d, func(i, j int) bool {
		if !d[i].Timestamp.Equal(d[j].Timestamp) {
			return d[i].Timestamp.After(d[j].Timestamp)
		}
		if d[i].PersonName != d[j].PersonName {
			return d[i].PersonName < d[j].PersonName
		}
		return d[i].ID > d[j].ID
	})
}

// LatestDetections fetches the most recent detections across all days.
func (c *Client) LatestDetections(ctx context.Context, limit int) ([]Detection, error) {
	const op = "get latest detections"

	q := url.Values{"limit": {strconv.Itoa(limit)}}
	var reply wireDetections
	if err := c.do(ctx, op, http.MethodGet, "/detections/recent?"+q.Encode(), nil, &reply); err != nil {
		return nil, err
	}
	if err := checkEnvelope(op, reply.envelope); err != nil {
		return nil, err
	}

	detections := make([]Detection, 0, len(reply.Detections))
	for _, d := range reply.Detections {
		detections = append(detections, d.detection())
	}
	return detections, nil
}

// Intruders fetches all intruder sightings.
func (c *Client) Intruders(ctx context.Context) ([]Intruder, error) {
	const op = "get intruder report"

	var reply wireIntruders
	if err := c.do(ctx, op, http.MethodGet, "/reports/intruders", nil, &reply); err != nil {
		return nil, err
	}
	if err := checkEnvelope(op, reply.envelope); err != nil {
		return nil, err
	}

	intruders := make([]Intruder, 0, len(reply.Intruders))
	for _, in := range reply.Intruders {
		intruders = append(intruders, in.intruder())
	}
	return intruders, nil
}

// Alerts fetches the alert list.
func (c *Client) Alerts(ctx context.Context) ([]Alert, error) {
	const op = "get recent alerts"

	var reply wireAlerts
	if err := c.do(ctx, op, http.MethodGet, "/alerts", nil, &reply); err != nil {
		return nil, err
	}
	if err := checkEnvelope(op, reply.envelope); err != nil {
		return nil, err
	}

	alerts := make([]Alert, 0, len(reply.Alerts))
	for _, a := range reply.Alerts {
		alerts = append(alerts, a.alert())
	}
	return alerts, nil
}

// command posts to a state-changing endpoint. A success=false reply is not
// an error here; callers inspect CommandResult.Success.
func (c *Client) command(ctx context.Context, op, method, path string, body any) (CommandResult, error) {
	var result CommandResult
	if err := c.do(ctx, op, method, path, body, &result); err != nil {
		return CommandResult{}, err
	}
	return result, nil
}

// AcknowledgeAlert marks an alert as handled.
func (c *Client) AcknowledgeAlert(ctx context.Context, id int64) (CommandResult, error) {
	return c.command(ctx, "acknowledge alert", http.MethodPost, fmt.Sprintf("/alerts/%d/acknowledge", id), nil)
}

// StartCamera opens the capture device.
func (c *Client) StartCamera(ctx context.Context) (CommandResult, error) {
	return c.command(ctx, "start camera", http.MethodPost, "/camera/start", nil)
}

// StopCamera releases the capture device.
func (c *Client) StopCamera(ctx context.Context) (CommandResult, error) {
	return c.command(ctx, "stop camera", http.MethodPost, "/camera/stop", nil)
}

// StartRecording starts writing video.
func (c *Client) StartRecording(ctx context.Context) (CommandResult, error) {
	return c.command(ctx, "start recording", http.MethodPost, "/recording/start", nil)
}

// StopRecording stops writing video.
func (c *Client) StopRecording(ctx context.Context) (CommandResult, error) {
	return c.command(ctx, "stop recording", http.MethodPost, "/recording/stop", nil)
}

// TakeSnapshot saves the current frame on the backend.
func (c *Client) TakeSnapshot(ctx context.Context) (CommandResult, error) {
	return c.command(ctx, "take snapshot", http.MethodPost, "/camera/snapshot", nil)
}

// AddPerson registers a known person.
func (c *Client) AddPerson(ctx context.Context, p NewPerson) (CommandResult, error) {
	return c.command(ctx, "add person", http.MethodPost, "/students", p)
}

// DeletePerson removes a known person.
func (c *Client) DeletePerson(ctx context.Context, id int64) (CommandResult, error) {
	return c.command(ctx, "delete person", http.MethodDelete, fmt.Sprintf("/students/%d", id), nil)
}

// Persons lists the registered persons.
func (c *Client) Persons(ctx context.Context) ([]Person, error) {
	const op = "list persons"

	var reply wirePersons
	if err := c.do(ctx, op, http.MethodGet, "/students", nil, &reply); err != nil {
		return nil, err
	}
	if err := checkEnvelope(op, reply.envelope); err != nil {
		return nil, err
	}

	persons := make([]Person, 0, len(reply.Students))
	for _, p := range reply.Students {
		persons = append(persons, Person{
			ID:        p.ID,
			Name:      p.Name,
			DateAdded: time.Time(p.DateAdded),
			ImagePath: string(p.ImagePath),
			Notes:     string(p.Notes),
		})
	}
	return persons, nil
}

// Health probes the backend.
func (c *Client) Health(ctx context.Context) (Health, error) {
	var reply wireHealth
	if err := c.do(ctx, "health check", http.MethodGet, "/health", nil, &reply); err != nil {
		return Health{}, err
	}
	return Health{
		Status:        reply.Status,
		Timestamp:     time.Time(reply.Timestamp),
		CameraRunning: reply.CameraRunning,
	}, nil
}

// Settings fetches the backend's detection configuration.
func (c *Client) Settings(ctx context.Context) (BackendSettings, error) {
	var settings BackendSettings
	if err := c.do(ctx, "get config", http.MethodGet, "/config", nil, &settings); err != nil {
		return BackendSettings{}, err
	}
	return settings, nil
}
