package engine

import "encoding/json"

// EventType identifies the payload of an Event.
type EventType string

const (
	EventProgress      EventType = "progress"
	EventSubdomain     EventType = "subdomain"
	EventHTTPValidated EventType = "http_validated"
	EventDNSOnly       EventType = "dns_only"
	EventComplete      EventType = "complete"
	EventError         EventType = "error"
)

// Event is one message on a job's stream. Only the fields belonging to Type
// are meaningful.
type Event struct {
	Type       EventType
	Progress   Progress
	Host       ResolvedHost
	Validation ValidationResult
	Count      int
	Elapsed    float64
	Message    string
}

// Terminal reports whether e ends the stream.
func (e Event) Terminal() bool {
	return e.Type == EventComplete || e.Type == EventError
}

// ProgressEvent wraps a progress snapshot.
func ProgressEvent(p Progress) Event {
	return Event{Type: EventProgress, Progress: p}
}

// SubdomainEvent announces a host found during the DNS phase.
func SubdomainEvent(h ResolvedHost) Event {
	return Event{Type: EventSubdomain, Host: h}
}

// ValidationEvent announces the HTTP classification of a host.
func ValidationEvent(v ValidationResult) Event {
	if v.Live() {
		return Event{Type: EventHTTPValidated, Validation: v}
	}
	return Event{Type: EventDNSOnly, Validation: v}
}

// CompleteEvent closes a successful job.
func CompleteEvent(r *Result) Event {
	return Event{Type: EventComplete, Count: r.Count, Elapsed: r.ElapsedTime}
}

// ErrorEvent closes a failed job.
func ErrorEvent(err error) Event {
	return Event{Type: EventError, Message: err.Error()}
}

// MarshalJSON flattens the payload next to the type tag.
func (e Event) MarshalJSON() ([]byte, error) {
	switch e.Type {
	case EventProgress:
		return json.Marshal(struct {
			Type EventType `json:"type"`
			Progress
		}{e.Type, e.Progress})
	case EventSubdomain:
		return json.Marshal(struct {
			Type EventType `json:"type"`
			Host string    `json:"host"`
			IPs  []string  `json:"ips"`
		}{e.Type, e.Host.Host, e.Host.IPs})
	case EventHTTPValidated:
		return json.Marshal(struct {
			Type      EventType `json:"type"`
			Subdomain string    `json:"subdomain"`
			URL       string    `json:"url"`
			Status    int       `json:"status"`
			IPs       []string  `json:"ips"`
		}{e.Type, e.Validation.Subdomain, e.Validation.URL, e.Validation.Status, e.Validation.IPs})
	case EventDNSOnly:
		return json.Marshal(struct {
			Type      EventType `json:"type"`
			Subdomain string    `json:"subdomain"`
			IPs       []string  `json:"ips"`
		}{e.Type, e.Validation.Subdomain, e.Validation.IPs})
	case EventComplete:
		return json.Marshal(struct {
			Type        EventType `json:"type"`
			Count       int       `json:"count"`
			ElapsedTime float64   `json:"elapsed_time"`
		}{e.Type, e.Count, e.Elapsed})
	default:
		return json.Marshal(struct {
			Type    EventType `json:"type"`
			Message string    `json:"message"`
		}{e.Type, e.Message})
	}
}
