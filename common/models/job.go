package models

import "encoding/json"

// Filter is a store-specific facet constraint. Only the Woolworths search
// API understands these; other strategies ignore them.
type Filter struct {
	Key   string       `json:"Key"`
	Items []FilterItem `json:"Items"`
}

// FilterItem is a single facet term inside a Filter.
type FilterItem struct {
	Term string `json:"Term"`
}

// ScrapeJob is one unit of work pulled from the scrape_jobs queue. It lives
// for exactly one message-processing cycle and is never persisted.
type ScrapeJob struct {
	Target  string   `json:"target"`
	Query   string   `json:"query"`
	Filters []Filter `json:"filters,omitempty"`
}

// ScrapeJobFromJson decodes a queue message payload.
func ScrapeJobFromJson(j []byte) (*ScrapeJob, error) {
	var job ScrapeJob
	if err := json.Unmarshal(j, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// ToJson serializes the job, used when publishing jobs in tests and tools.
func (j *ScrapeJob) ToJson() ([]byte, error) {
	return json.Marshal(j)
}
