// Package collector polls operating-hours counters from a machine-data gateway
// and records them as readings.
package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"maintenance-backend/config"
	"maintenance-backend/internal/model"
	"maintenance-backend/internal/store"
)

// ReadingRecorder is the part of store.Store the collector writes through.
type ReadingRecorder interface {
	RecordReading(ctx context.Context, in store.ReadingInput) (*store.ReadingResult, error)
}

// Result summarizes one collection cycle.
type Result struct {
	Fetched   int
	Recorded  int
	Unchanged int
	Failed    int
}

// Service polls the gateway and records changed counters.
type Service struct {
	cfg    config.CollectorConfig
	loc    *time.Location
	store  ReadingRecorder
	client *http.Client
	log    *zap.Logger

	onChange func()

	mu   sync.Mutex
	last map[int64]float64
}

// NewService creates and initializes a new collector service.
func NewService(cfg config.CollectorConfig, loc *time.Location, s ReadingRecorder, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	var transport http.RoundTripper = &http.Transport{}
	if cfg.HTTPProxy != "" {
		proxyURL, err := url.Parse(cfg.HTTPProxy)
		if err != nil {
			log.Warn("invalid collector proxy URL, not using a proxy", zap.String("proxy", cfg.HTTPProxy), zap.Error(err))
		} else {
			transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		}
	}
	if cfg.Request.PageSize <= 0 {
		cfg.Request.PageSize = 100
	}

	return &Service{
		cfg:   cfg,
		loc:   loc,
		store: s,
		client: &http.Client{
			Transport: transport,
			Timeout:   30 * time.Second,
		},
		log:  log,
		last: make(map[int64]float64),
	}
}

// OnChange registers fn to be called after a cycle that recorded at least one reading.
func (s *Service) OnChange(fn func()) {
	s.onChange = fn
}

// Run collects once immediately and then every interval until ctx is cancelled.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.Enabled {
		s.log.Info("hours collector is disabled")
		return
	}
	s.log.Info("starting hours collector", zap.Duration("interval", s.cfg.Interval))

	s.CollectOnce(ctx)

	timer := time.NewTimer(s.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("hours collector shutting down")
			return
		case <-timer.C:
			s.CollectOnce(ctx)
			timer.Reset(s.cfg.Interval)
		}
	}
}

// CollectOnce fetches every page and records the counters that changed since the last cycle.
// A failing machine does not stop the cycle.
func (s *Service) CollectOnce(ctx context.Context) Result {
	var res Result
	now := time.Now().UTC()

	var items []CounterItem
	total := 1
	pageSize := s.cfg.Request.PageSize
	var fetchErr error
	for page := 1; (page-1)*pageSize < total; page++ {
		resp, err := s.fetchPage(ctx, page)
		if err != nil {
			s.log.Warn("failed to fetch counter page", zap.Int("page", page), zap.Error(err))
			fetchErr = err
			break
		}
		if resp.Data.Total == 0 || len(resp.Data.Items) == 0 {
			break
		}
		total = resp.Data.Total
		items = append(items, resp.Data.Items...)
	}
	res.Fetched = len(items)

	if fetchErr != nil && len(items) == 0 {
		s.log.Warn("collection cycle aborted, no counters retrieved")
		return res
	}

	for _, item := range items {
		if !s.changed(item) {
			res.Unchanged++
			continue
		}
		at := now
		if ts, err := s.parseTimestamp(item.ReadAt); err != nil {
			s.log.Warn("unparseable counter timestamp, using collection time",
				zap.Int64("machine_id", item.MachineID), zap.Error(err))
		} else if ts != nil {
			at = *ts
		}

		_, err := s.store.RecordReading(ctx, store.ReadingInput{
			MachineID:  item.MachineID,
			Hours:      item.OperatingHours,
			RecordedAt: at,
			Source:     model.SourceAPI,
		})
		if err != nil {
			res.Failed++
			s.log.Warn("failed to record collected reading",
				zap.Int64("machine_id", item.MachineID),
				zap.Float64("hours", item.OperatingHours),
				zap.Error(err))
			continue
		}
		s.remember(item)
		res.Recorded++
	}

	s.log.Info("collection cycle finished",
		zap.Int("fetched", res.Fetched),
		zap.Int("recorded", res.Recorded),
		zap.Int("unchanged", res.Unchanged),
		zap.Int("failed", res.Failed))
	if res.Recorded > 0 && s.onChange != nil {
		s.onChange()
	}
	return res
}

func (s *Service) changed(item CounterItem) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.last[item.MachineID]
	return !ok || prev != item.OperatingHours
}

func (s *Service) remember(item CounterItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last[item.MachineID] = item.OperatingHours
}

// parseTimestamp reads the gateway's local timestamp in the plant timezone.
func (s *Service) parseTimestamp(ts *string) (*time.Time, error) {
	if ts == nil || *ts == "" {
		return nil, nil
	}
	parsed, err := time.ParseInLocation(time.DateTime, *ts, s.loc)
	if err != nil {
		return nil, fmt.Errorf("failed to parse timestamp %q: %w", *ts, err)
	}
	return &parsed, nil
}

// fetchPage fetches a single page of counters from the gateway.
func (s *Service) fetchPage(ctx context.Context, page int) (*ApiResponse, error) {
	payload := make(map[string]any)
	for k, v := range s.cfg.Request.Payload {
		payload[k] = v
	}
	payload["page"] = page
	payload["pageSize"] = s.cfg.Request.PageSize

	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Request.URL, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range s.cfg.Request.Headers {
		req.Header.Set(key, value)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("received non-200 status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var apiResp ApiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal api response: %w", err)
	}
	if apiResp.Code != 0 {
		return nil, fmt.Errorf("gateway returned non-zero application code: %d", apiResp.Code)
	}
	return &apiResp, nil
}
