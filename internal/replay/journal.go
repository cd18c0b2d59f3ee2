// Package replay journals failed sink deliveries so they can be re-sent by hand.
package replay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"lead-dispatch/internal/dispatch"
	"lead-dispatch/internal/lead"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

const DefaultIndex = "lead-dispatch-replay"

// Entry is one failed delivery.
type Entry struct {
	Sink        string    `json:"sink"`
	Code        string    `json:"code,omitempty"`
	Detail      string    `json:"detail"`
	LeadID      string    `json:"leadId,omitempty"`
	EventID     string    `json:"eventId"`
	SubmittedAt time.Time `json:"submittedAt"`
	RecordedAt  time.Time `json:"recordedAt"`
	DurationMs  int64     `json:"durationMs"`
	Lead        lead.Lead `json:"lead"`
}

// Journal indexes entries into Elasticsearch.
type Journal struct {
	client *elasticsearch.Client
	index  string
	now    func() time.Time
}

func NewJournal(client *elasticsearch.Client, index string) *Journal {
	if index == "" {
		index = DefaultIndex
	}
	return &Journal{client: client, index: index, now: time.Now}
}

// RecordFailure implements dispatch.FailureRecorder.
func (j *Journal) RecordFailure(ctx context.Context, l lead.Lead, dc dispatch.DeliveryContext, o dispatch.Outcome) error {
	entry := Entry{
		Sink:        o.Sink,
		Code:        string(o.Code),
		Detail:      o.Detail,
		LeadID:      dc.ExternalID,
		EventID:     dc.EventID,
		SubmittedAt: dc.SubmittedAt.UTC(),
		RecordedAt:  j.now().UTC(),
		DurationMs:  o.Duration.Milliseconds(),
		Lead:        l,
	}

	body, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("replay: marshal entry: %w", err)
	}

	req := esapi.IndexRequest{
		Index: j.index,
		Body:  bytes.NewReader(body),
	}
	res, err := req.Do(ctx, j.client)
	if err != nil {
		return fmt.Errorf("replay: index request: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return fmt.Errorf("replay: index %s: %s: %s", j.index, res.Status(), msg)
	}
	return nil
}

// Pending returns the most recent entries for sink, newest first. An empty sink
// returns entries for every sink.
func (j *Journal) Pending(ctx context.Context, sink string, size int) ([]Entry, error) {
	if size <= 0 {
		size = 50
	}

	query := map[string]interface{}{
		"size": size,
		"sort": []interface{}{map[string]interface{}{"recordedAt": map[string]string{"order": "desc"}}},
	}
	if sink != "" {
		query["query"] = map[string]interface{}{
			"term": map[string]interface{}{"sink": sink},
		}
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(query); err != nil {
		return nil, fmt.Errorf("replay: encode query: %w", err)
	}

	res, err := j.client.Search(
		j.client.Search.WithContext(ctx),
		j.client.Search.WithIndex(j.index),
		j.client.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("replay: search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("replay: search %s: %s", j.index, res.Status())
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source Entry `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("replay: decode search response: %w", err)
	}

	entries := make([]Entry, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		entries = append(entries, h.Source)
	}
	return entries, nil
}

// Nop discards entries. It is used when Elasticsearch is not configured.
type Nop struct{}

func (Nop) RecordFailure(context.Context, lead.Lead, dispatch.DeliveryContext, dispatch.Outcome) error {
	return nil
}
