package models

import (
	"encoding/json"
)

// Feed is one subscription as the remote service describes it. The id is
// assigned by the service on the first successful subscribe.
type Feed struct {
	Id          int64  `json:"id"`
	Url         string `json:"url"`
	Title       string `json:"title"`
	Link        string `json:"link,omitempty"`
	Description string `json:"description,omitempty"`

	// Any other display attributes the service sends along
	Extra map[string]any `json:"-"`
}

var knownFeedFields = []string{"id", "url", "title", "link", "description"}

func (f *Feed) UnmarshalJSON(data []byte) error {
	type plain Feed
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for _, key := range knownFeedFields {
		delete(raw, key)
	}
	if len(raw) > 0 {
		p.Extra = raw
	}

	*f = Feed(p)
	return nil
}

func (f Feed) MarshalJSON() ([]byte, error) {
	type plain Feed
	data, err := json.Marshal(plain(f))
	if err != nil || len(f.Extra) == 0 {
		return data, err
	}

	merged := map[string]any{}
	for k, v := range f.Extra {
		merged[k] = v
	}
	var known map[string]any
	if err := json.Unmarshal(data, &known); err != nil {
		return nil, err
	}
	for k, v := range known {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// Response of GET /api/feeds
type FeedsResponse struct {
	Count int     `json:"count"`
	Feeds []*Feed `json:"feeds"`
}

// Response of a successful POST /api/subscribe
type SubscribeResponse struct {
	Feed    *Feed  `json:"feed"`
	Message string `json:"message"`
}

// Body of unsubscribe responses and of every failure response
type MessageResponse struct {
	Message string `json:"message"`
}

type EventType string

const (
	FeedAdded   EventType = "added"
	FeedRemoved EventType = "removed"
	FeedsReset  EventType = "reset"
)

// CollectionEvent is fired by the feed collection after every mutation.
// Feed is the zero value for FeedsReset.
type CollectionEvent struct {
	Type EventType
	Feed Feed
}
