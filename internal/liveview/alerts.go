package liveview

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ayusman/campuswatch/internal/gateway"
)

// AckState tracks the optimistic acknowledgment of one alert.
//
//	None --begin--> Pending --confirm--> Confirmed
//	                Pending --rollback-> RolledBack --begin--> Pending
type AckState int

const (
	AckNone AckState = iota
	AckPending
	AckConfirmed
	AckRolledBack
)

var ackStateNames = map[AckState]string{
	AckNone:       "none",
	AckPending:    "pending",
	AckConfirmed:  "confirmed",
	AckRolledBack: "rolled_back",
}

func (s AckState) String() string {
	if name, ok := ackStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("AckState(%d)", int(s))
}

// MarshalText renders the state by name in JSON payloads.
func (s AckState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state written by MarshalText.
func (s *AckState) UnmarshalText(b []byte) error {
	for state, name := range ackStateNames {
		if name == string(b) {
			*s = state
			return nil
		}
	}
	return fmt.Errorf("unknown ack state %q", b)
}

// Alert is a backend alert as held by the live view.
type Alert struct {
	gateway.Alert
	AckState AckState `json:"ack_state"`
}

// AlertFilter selects which alerts a list shows.
type AlertFilter string

const (
	AlertFilterAll            AlertFilter = "all"
	AlertFilterUnacknowledged AlertFilter = "unacknowledged"
)

// ParseAlertFilter accepts "all", "unacknowledged" or an empty string (all).
func ParseAlertFilter(s string) (AlertFilter, error) {
	switch AlertFilter(strings.ToLower(strings.TrimSpace(s))) {
	case "", AlertFilterAll:
		return AlertFilterAll, nil
	case AlertFilterUnacknowledged:
		return AlertFilterUnacknowledged, nil
	default:
		return "", fmt.Errorf("unknown alert filter %q", s)
	}
}

// FilterAlerts returns the alerts matching f in their original order.
func FilterAlerts(alerts []Alert, f AlertFilter) []Alert {
	out := make([]Alert, 0, len(alerts))
	for _, a := range alerts {
		if f == AlertFilterUnacknowledged && a.Acknowledged {
			continue
		}
		out = append(out, a)
	}
	return out
}

// AlertCounts summarises an alert list.
type AlertCounts struct {
	Total          int `json:"total"`
	Unacknowledged int `json:"unacknowledged"`
	Acknowledged   int `json:"acknowledged"`
}

// CountAlerts tallies acknowledged and unacknowledged alerts.
func CountAlerts(alerts []Alert) AlertCounts {
	c := AlertCounts{Total: len(alerts)}
	for _, a := range alerts {
		if a.Acknowledged {
			c.Acknowledged++
		} else {
			c.Unacknowledged++
		}
	}
	return c
}

// sortAlerts orders alerts newest first, then by descending id.
func sortAlerts(alerts []Alert) {
	sort.SliceStable(alerts, func(i, j int) bool {
		if !alerts[i].Timestamp.Equal(alerts[j].Timestamp) {
			return alerts[i].Timestamp.After(alerts[j].Timestamp)
		}
		return alerts[i].ID > alerts[j].ID
	})
}
