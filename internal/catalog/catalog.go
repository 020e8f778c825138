// Package catalog defines the channel records kept in the local cache and the
// JSON formats used to fetch and persist them.
package catalog

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/goccy/go-json"
)

// ErrInvalidCatalog is returned when a payload cannot be decoded into channels.
var ErrInvalidCatalog = errors.New("catalog: invalid payload")

// ErrEmptyCatalog is returned when a payload decodes but holds no usable channels.
var ErrEmptyCatalog = errors.New("catalog: no channels")

// Channel is a single catalog entry.
type Channel struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	StreamURL string `json:"url"`
	Logo      string `json:"logo,omitempty"`
	Category  string `json:"category,omitempty"`
	Country   string `json:"country,omitempty"`
}

type envelope struct {
	Channels []Channel `json:"channels"`
}

// Decode parses a remote payload. Both a bare array of channels and an object
// with a "channels" field are accepted. Entries missing an id, name or stream
// url are dropped; duplicate ids keep the last occurrence.
func Decode(data []byte) ([]Channel, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrInvalidCatalog)
	}

	var raw []Channel
	if data[0] == '[' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
		}
	} else {
		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
		}
		raw = env.Channels
	}

	channels := normalize(raw)
	if len(channels) == 0 {
		return nil, ErrEmptyCatalog
	}
	return channels, nil
}

func normalize(in []Channel) []Channel {
	byID := make(map[string]Channel, len(in))
	for _, ch := range in {
		ch.ID = strings.TrimSpace(ch.ID)
		ch.Name = strings.TrimSpace(ch.Name)
		ch.StreamURL = strings.TrimSpace(ch.StreamURL)
		if ch.ID == "" || ch.Name == "" || ch.StreamURL == "" {
			continue
		}
		byID[ch.ID] = ch
	}
	out := make([]Channel, 0, len(byID))
	for _, ch := range byID {
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Checksum returns a stable digest of the channel set, independent of input order.
func Checksum(channels []Channel) string {
	sorted := append([]Channel(nil), channels...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	h := sha256.New()
	for _, ch := range sorted {
		for _, field := range []string{ch.ID, ch.Name, ch.StreamURL, ch.Logo, ch.Category, ch.Country} {
			h.Write([]byte(field))
			h.Write([]byte{0})
		}
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}
