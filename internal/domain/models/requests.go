package models

import "time"

// Requests for valuation endpoints and jobs. Defined in domain for reuse by
// HTTP handlers, Kafka jobs and the CLI. Zero valuation parameters fall back
// to the configured defaults; WACC and TerminalGrowth are pointers so an
// explicit zero is kept.

type CompsRequest struct {
	Ticker    string `query:"ticker" json:"ticker" validate:"required,ticker"`
	Peers     string `query:"peers" json:"peers" validate:"required"` // comma separated
	Stat      string `query:"stat" json:"stat" validate:"omitempty,oneof=mean median min max"`
	Multiples string `query:"multiples" json:"multiples"` // comma separated, empty means all
}

type DCFRequest struct {
	Ticker          string   `query:"ticker" json:"ticker" validate:"required,ticker"`
	Horizon         int      `query:"horizon" json:"horizon" validate:"omitempty,gte=1,lte=30"`
	WACC            *float64 `query:"wacc" json:"wacc,omitempty" validate:"omitempty,gt=-1,lt=1"`
	TerminalGrowth  *float64 `query:"terminal_growth" json:"terminal_growth,omitempty" validate:"omitempty,gt=-1,lt=1"`
	Growth          string   `query:"growth" json:"growth"` // optional override, parsed as float
	RequirePerShare bool     `query:"require_per_share" json:"require_per_share"`
}

type HistoryRequest struct {
	Ticker string `query:"ticker" json:"ticker" validate:"required,ticker"`
	Limit  int    `query:"limit" json:"limit" default:"20" validate:"gte=1,lte=500"`
}

// JobType distinguishes queued valuation jobs.
type JobType string

const (
	JobComps JobType = "comps"
	JobDCF   JobType = "dcf"
)

// ValuationJob is the message consumed from the request topic.
type ValuationJob struct {
	ID   string        `json:"id"`
	Type JobType       `json:"type"`
	DCF  *DCFRequest   `json:"dcf,omitempty"`
	Comp *CompsRequest `json:"comps,omitempty"`
}

// JobState is the lifecycle of a queued valuation job.
type JobState string

const (
	JobQueued  JobState = "queued"
	JobRunning JobState = "running"
	JobDone    JobState = "done"
	JobFailed  JobState = "failed"
)

// JobStatus is what callers see when they poll a job.
type JobStatus struct {
	ID        string    `json:"id"`
	Type      JobType   `json:"type"`
	Ticker    string    `json:"ticker"`
	State     JobState  `json:"state"`
	ReportID  string    `json:"report_id,omitempty"`
	Error     string    `json:"error,omitempty"`
	Attempts  int       `json:"attempts"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Ticker returns the ticker of whichever request the job carries.
func (j ValuationJob) Ticker() string {
	switch {
	case j.DCF != nil:
		return j.DCF.Ticker
	case j.Comp != nil:
		return j.Comp.Ticker
	}
	return ""
}
