package ipc

import (
	"time"

	"github.com/merci1994dz/appdreamer-creator/internal/catalog"
	"github.com/merci1994dz/appdreamer-creator/internal/status"
	"github.com/merci1994dz/appdreamer-creator/internal/sync"
)

// StatusEvent is a recent daemon event as seen by clients.
type StatusEvent struct {
	Kind       string    `json:"kind"`
	Detail     string    `json:"detail"`
	OccurredAt time.Time `json:"occurred_at"`
}

// StatusReply is the decoded GetStatus response.
type StatusReply struct {
	RequestID   string        `json:"request_id"`
	State       string        `json:"state"`
	Message     string        `json:"message"`
	Active      bool          `json:"active"`
	LastOutcome string        `json:"last_outcome,omitempty"`
	LastEvent   string        `json:"last_event,omitempty"`
	UpdatedAt   time.Time     `json:"updated_at"`
	Events      []StatusEvent `json:"events"`
}

// RefreshReply is the decoded Refresh response.
type RefreshReply struct {
	RequestID  string `json:"request_id"`
	Outcome    string `json:"outcome"`
	Message    string `json:"message"`
	Updated    bool   `json:"updated"`
	FellBack   bool   `json:"fell_back"`
	Source     string `json:"source,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// ChannelsReply is the decoded ListChannels response.
type ChannelsReply struct {
	RequestID string            `json:"request_id"`
	Total     int               `json:"total"`
	Channels  []catalog.Channel `json:"channels"`
}

func toStatusReply(snap status.Snapshot) *StatusReply {
	events := make([]StatusEvent, 0, len(snap.RecentEvents))
	for _, evt := range snap.RecentEvents {
		events = append(events, StatusEvent{
			Kind:       evt.Kind,
			Detail:     evt.Detail,
			OccurredAt: toWireTime(evt.When),
		})
	}
	return &StatusReply{
		State:       snap.State.String(),
		Message:     snap.Message,
		Active:      snap.Active,
		LastOutcome: snap.LastOutcome,
		LastEvent:   snap.LastEvent,
		UpdatedAt:   toWireTime(snap.UpdatedAt),
		Events:      events,
	}
}

func toRefreshReply(rep sync.Report) *RefreshReply {
	outcome := rep.Outcome()
	return &RefreshReply{
		Outcome:    string(outcome),
		Message:    outcome.Message(),
		Updated:    rep.Updated,
		FellBack:   rep.FellBack,
		Source:     rep.Source,
		DurationMS: rep.Duration.Milliseconds(),
	}
}
