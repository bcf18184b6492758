package engine

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/crimson-sun/fortiwatch/internal/engine/identity"
	"github.com/crimson-sun/fortiwatch/internal/engine/severity"
	"github.com/crimson-sun/fortiwatch/internal/metrics"
	"github.com/crimson-sun/fortiwatch/internal/model"
)

// Engine normalizes raw appliance records into canonical records.
// It never fails: missing or malformed fields fall back to defaults.
type Engine struct {
	levels *severity.Mapper
	now    func() time.Time
}

// New creates an Engine. A nil mapper uses the default level table.
func New(levels *severity.Mapper) *Engine {
	if levels == nil {
		levels = severity.New(nil)
	}
	return &Engine{levels: levels, now: time.Now}
}

// Process normalizes a single raw record.
func (e *Engine) Process(raw model.RawRecord) model.Record {
	return e.process(raw, identity.NewBatch(), e.now())
}

// ProcessBatch normalizes raws in order. Identities synthesized for records
// without an id are unique within the batch.
func (e *Engine) ProcessBatch(raws []model.RawRecord) []model.Record {
	records := make([]model.Record, 0, len(raws))
	ids := identity.NewBatch()
	observed := e.now()
	for _, raw := range raws {
		records = append(records, e.process(raw, ids, observed))
	}
	metrics.RecordsNormalized.Add(float64(len(raws)))
	return records
}

func (e *Engine) process(raw model.RawRecord, ids *identity.Batch, observed time.Time) model.Record {
	ts, ok := parseTimestamp(raw["timestamp"])
	if !ok {
		ts = observed
	}

	rec := model.Record{
		Timestamp: model.FormatTimestamp(ts),
		Level:     e.levels.Map(first(raw, "info", "level")),
		Source:    first(raw, "", "source_ip", "source"),
		Message:   first(raw, "", "msg", "message"),
		Action:    first(raw, "info", "action"),
	}

	if v := raw["id"]; truthy(v) {
		rec.ID = toString(v)
	} else {
		rec.ID = ids.Synthesize(rec.Timestamp, string(rec.Level), rec.Source, rec.Message, rec.Action)
	}
	return rec
}

// first returns the string form of the first truthy field among keys, or def.
func first(raw model.RawRecord, def string, keys ...string) string {
	for _, k := range keys {
		if v := raw[k]; truthy(v) {
			return toString(v)
		}
	}
	return def
}

// truthy follows the appliance's loose typing: nil, "", 0, NaN and false
// count as absent.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return x != ""
	case bool:
		return x
	case json.Number:
		f, err := x.Float64()
		return err != nil || (f != 0 && !math.IsNaN(f))
	case float64:
		return x != 0 && !math.IsNaN(x)
	case float32:
		return x != 0 && !math.IsNaN(float64(x))
	case int:
		return x != 0
	case int64:
		return x != 0
	default:
		return true
	}
}

func toString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	default:
		return fmt.Sprint(x)
	}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// parseTimestamp reads epoch seconds (number or numeric string, fractions
// allowed) or an already formatted timestamp.
func parseTimestamp(v any) (time.Time, bool) {
	var secs float64
	switch x := v.(type) {
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return time.Time{}, false
		}
		secs = f
	case float64:
		secs = x
	case int64:
		secs = float64(x)
	case int:
		secs = float64(x)
	case string:
		s := strings.TrimSpace(x)
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			secs = f
			break
		}
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
		return time.Time{}, false
	default:
		return time.Time{}, false
	}

	if math.IsNaN(secs) || math.IsInf(secs, 0) || secs <= 0 {
		return time.Time{}, false
	}
	whole, frac := math.Modf(secs)
	return time.Unix(int64(whole), int64(math.Round(frac*1e3))*int64(time.Millisecond)), true
}
