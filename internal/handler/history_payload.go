package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/twinlog/internal/analysis"
)

// visitTime 兼容扩展上报的毫秒时间戳与 RFC 3339 字符串。
type visitTime struct {
	time.Time
}

func (v *visitTime) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		v.Time = time.Time{}
		return nil
	}

	if data[0] == '"' {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			v.Time = time.Time{}
			return nil
		}
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return fmt.Errorf("invalid lastVisitTime %q", raw)
		}
		v.Time = parsed
		return nil
	}

	var millis float64
	if err := json.Unmarshal(data, &millis); err != nil {
		return fmt.Errorf("invalid lastVisitTime %s", data)
	}
	if millis <= 0 || math.IsNaN(millis) || math.IsInf(millis, 0) {
		v.Time = time.Time{}
		return nil
	}
	whole := int64(millis)
	v.Time = time.UnixMilli(whole).Add(time.Duration((millis - float64(whole)) * float64(time.Millisecond)))
	return nil
}

type historyItemRequest struct {
	URL           string    `json:"url"`
	Title         string    `json:"title"`
	VisitCount    int       `json:"visitCount"`
	LastVisitTime visitTime `json:"lastVisitTime"`
}

type historySyncRequest struct {
	Items []historyItemRequest `json:"items"`
}

const maxSyncItems = 5000

func (r historySyncRequest) events() []analysis.VisitEvent {
	events := make([]analysis.VisitEvent, 0, len(r.Items))
	for _, item := range r.Items {
		events = append(events, analysis.VisitEvent{
			URL:           item.URL,
			Title:         item.Title,
			VisitCount:    item.VisitCount,
			LastVisitTime: item.LastVisitTime.Time,
		})
	}
	return events
}
