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
	StageRunStart     Stage = "RUN_START"
	StageSiteStart    Stage = "SITE_START"
	StageListPageDone Stage = "LIST_PAGE_DONE"
	StageDetailDone   Stage = "DETAIL_DONE"
	StageSiteDone     Stage = "SITE_DONE"
	StageRunDone      Stage = "RUN_DONE"
	StageRunError     Stage = "RUN_ERROR"
)

// StatusClass is a coarse HTTP response grouping.
type StatusClass string

// Supported HTTP status classes tracked for detail fetches.
const (
	Status2xx   StatusClass = "2xx"
	Status3xx   StatusClass = "3xx"
	Status4xx   StatusClass = "4xx"
	Status5xx   StatusClass = "5xx"
	StatusOther StatusClass = "other"
)

// Event captures a single milestone of a crawl run.
type Event struct {
	// RunID identifies the crawl run in 16-byte UUID form.
	RunID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which lifecycle milestone occurred.
	Stage Stage
	// Site scopes site- and page-level events to a source ID.
	Site string
	// Page is the 1-based list page number for LIST_PAGE_DONE.
	Page int
	// URL is the page URL for detail events.
	URL string
	// Found counts detail URLs discovered on a list page, or scheduled for a
	// site on SITE_START.
	Found int
	// Done counts accepted records; cumulative on SITE_DONE and RUN_DONE.
	Done int
	// Failed counts irrecoverable URL failures.
	Failed int
	// StatusClass groups the HTTP response of a detail fetch.
	StatusClass StatusClass
	// Dur captures fetch or run latency.
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
	case StageRunStart, StageRunDone, StageRunError:
	case StageSiteStart, StageSiteDone:
		if e.Site == "" {
			return fmt.Errorf("%s requires site", e.Stage)
		}
	case StageListPageDone:
		if e.Site == "" {
			return errors.New("list page done requires site")
		}
		if e.Page < 1 {
			return errors.New("list page done requires a 1-based page")
		}
	case StageDetailDone:
		if e.Site == "" {
			return errors.New("detail done requires site")
		}
		if e.StatusClass == "" {
			return errors.New("detail done requires status class")
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

// ClassifyStatus groups HTTP status codes for detail events.
func ClassifyStatus(code int) StatusClass {
	switch {
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
