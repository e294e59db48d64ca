package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRunStart       Stage = "RUN_START"
	StageRunDone        Stage = "RUN_DONE"
	StageClaim          Stage = "CLAIM"
	StageFetchDone      Stage = "FETCH_DONE"
	StageSubmitRejected Stage = "SUBMIT_REJECTED"
)

// StatusClass is a coarse HTTP response grouping.
type StatusClass string

// Supported HTTP status classes tracked for fetch completions. StatusFailed
// marks fetches that produced no response at all.
const (
	Status2xx    StatusClass = "2xx"
	Status3xx    StatusClass = "3xx"
	Status4xx    StatusClass = "4xx"
	Status5xx    StatusClass = "5xx"
	StatusFailed StatusClass = "failed"
	StatusOther  StatusClass = "other"
)

// Event captures a single component of crawl progress.
type Event struct {
	// RunID identifies the crawl run using the 16-byte UUID form.
	RunID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which milestone occurred.
	Stage Stage
	// Site scopes claim and fetch events to a host label.
	Site string
	// URL is the canonical page URL, if any.
	URL string
	// Depth is the link depth of the page.
	Depth int
	// Claimed is the claim count after a CLAIM event.
	Claimed int
	// Bytes carries the response size for fetches.
	Bytes int64
	// StatusClass groups HTTP response codes for FETCH_DONE.
	StatusClass StatusClass
	// Dur is the fetch latency or, for RUN_DONE, the run wall time.
	Dur time.Duration
	// Note carries low-volume context such as error text.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == [16]byte{} {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone:
	case StageClaim:
		if e.Claimed <= 0 {
			return errors.New("claim requires a positive claim count")
		}
	case StageFetchDone:
		if e.Site == "" {
			return errors.New("fetch done requires site")
		}
		if e.StatusClass == "" {
			return errors.New("fetch done requires status class")
		}
	case StageSubmitRejected:
		if e.URL == "" {
			return errors.New("submit rejected requires url")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// RunUUID converts the binary run ID to uuid.UUID.
func (e Event) RunUUID() uuid.UUID {
	return uuid.UUID(e.RunID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}

// ClassifyStatus groups HTTP status codes for fetch events. Negative codes
// denote fetches that never got a response.
func ClassifyStatus(code int) StatusClass {
	switch {
	case code < 0:
		return StatusFailed
	case code >= 200 && code < 300:
		return Status2xx
	case code >= 300 && code < 400:
		return Status3xx
	case code >= 400 && code < 500:
		return Status4xx
	case code >= 500 && code < 600:
		return Status5xx
	default:
		return StatusOther
	}
}
