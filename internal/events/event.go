package events

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Event is one detection entry. Fields come from the producer and are kept
// as-is; Time is assigned by the server on append.
type Event struct {
	Seq    uint64
	Time   time.Time
	Fields map[string]any
}

// MarshalJSON flattens the event to {"time": <unix ms>, ...fields}.
func (e Event) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Fields)+1)
	for k, v := range e.Fields {
		out[k] = v
	}
	out["time"] = e.Time.UnixMilli()
	return json.Marshal(out)
}

func (e *Event) UnmarshalJSON(data []byte) error {
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if ms, ok := toFloat(fields["time"]); ok {
		e.Time = time.UnixMilli(int64(ms))
	}
	delete(fields, "time")
	e.Fields = fields
	return nil
}

func (e Event) Label() string {
	s, _ := e.Fields["label"].(string)
	return s
}

// Confidence returns the producer-supplied confidence in [0,1], if it is a number.
func (e Event) Confidence() (float64, bool) {
	return toFloat(e.Fields["confidence"])
}

// Summary renders "label NN%" with confidence rounded to a whole percent.
func (e Event) Summary() string {
	c, _ := e.Confidence()
	return fmt.Sprintf("%s %d%%", e.Label(), int(math.Floor(c*100+0.5)))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
