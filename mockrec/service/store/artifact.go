package store

import (
	"time"
)

// RecordedArtifact is one persisted request/response exchange.
// JSON field names are the on-disk format and must stay stable.
type RecordedArtifact struct {
	Method          string            `json:"method" msgpack:"m"`
	URL             string            `json:"url" msgpack:"u"`
	Pathname        string            `json:"pathname" msgpack:"p"`
	QueryParams     map[string]string `json:"queryParams" msgpack:"q"`
	Status          int               `json:"status" msgpack:"s"`
	StatusMessage   string            `json:"statusMessage,omitempty" msgpack:"sm,omitempty"`
	RequestHeaders  map[string]string `json:"requestHeaders,omitempty" msgpack:"rqh,omitempty"`
	ResponseHeaders map[string]string `json:"responseHeaders,omitempty" msgpack:"rsh,omitempty"`
	RequestBody     any               `json:"requestBody,omitempty" msgpack:"rqb,omitempty"`
	Response        any               `json:"response" msgpack:"rsb"`
	ResponseTime    int64             `json:"responseTime,omitempty" msgpack:"rt,omitempty"` // milliseconds
	RecordedAt      time.Time         `json:"recordedAt" msgpack:"ra"`
	Version         string            `json:"version,omitempty" msgpack:"v,omitempty"`
	Metadata        map[string]any    `json:"metadata,omitempty" msgpack:"md,omitempty"`
}

// CapturedRequest is the request half of an exchange handed to ArtifactStore.Save.
type CapturedRequest struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    any
}

// CapturedResponse is the response half of an exchange handed to ArtifactStore.Save.
type CapturedResponse struct {
	Status        int
	StatusMessage string
	Headers       map[string]string
	Body          any
	Metadata      map[string]any
}

// Sanitizer transforms an artifact into the form that is safe to persist.
// Implementations return a new artifact and leave the input untouched.
type Sanitizer interface {
	SanitizeRecordedData(a *RecordedArtifact) *RecordedArtifact
}
