package traceapi

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
	"github.com/xeipuuv/gojsonschema"

	"github.com/Sumatoshi-tech/traveler/internal/trace"
)

// Query parameter names.
const (
	ParamBins      = "bins"
	ParamBegin     = "begin"
	ParamEnd       = "end"
	ParamLocations = "locations"
	ParamPrimitive = "primitive"
	ParamMode      = "mode"
)

// Forward record field names.
const (
	fieldName      = "name"
	fieldStartTime = "startTime"
	fieldEndTime   = "endTime"
	fieldUtil      = "util"
	fieldDone      = "done"
)

// histogramTupleLen is the arity of one [begin, end, count] histogram entry.
const histogramTupleLen = 3

// locationListSep joins location lists in query strings.
const locationListSep = ","

// forwardSchema describes the primitiveTraceForward payload. Every location
// must map to an array of child records; anything else is rejected rather
// than coerced.
const forwardSchema = `{
  "type": "object",
  "additionalProperties": {
    "type": "array",
    "items": {
      "type": "object",
      "required": ["name", "startTime", "endTime"],
      "properties": {
        "name": {"type": "string"},
        "startTime": {"type": "number"},
        "endTime": {"type": "number"},
        "util": {"type": "array", "items": {"type": "number"}}
      }
    }
  }
}`

var (
	forwardSchemaLoader = gojsonschema.NewStringLoader(forwardSchema)

	namePath  = jp.MustParseString("$." + fieldName)
	startPath = jp.MustParseString("$." + fieldStartTime)
	endPath   = jp.MustParseString("$." + fieldEndTime)
	utilPath  = jp.MustParseString("$." + fieldUtil)
	donePath  = jp.MustParseString("$." + fieldDone)
)

// JoinLocations renders a location list for a query string.
func JoinLocations(locs []string) string {
	return strings.Join(locs, locationListSep)
}

// SplitLocations parses a location list from a query string.
func SplitLocations(raw string) []string {
	if raw == "" {
		return nil
	}

	return strings.Split(raw, locationListSep)
}

// EncodeHistogram renders bins as [[begin, end, count], ...].
func EncodeHistogram(bins []Bin) ([]byte, error) {
	out := make([]any, len(bins))
	for i, b := range bins {
		out[i] = []any{b.Begin, b.End, b.Count}
	}

	return marshal(out)
}

// DecodeHistogram parses a histogram payload.
func DecodeHistogram(data []byte) ([]Bin, error) {
	value, err := oj.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: histogram: %w", ErrQueryFailed, err)
	}

	rows, ok := value.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: histogram is %T, not an array", ErrQueryFailed, value)
	}

	bins := make([]Bin, len(rows))

	for i, row := range rows {
		nums, numErr := trace.Numbers(row)
		if numErr != nil || len(nums) != histogramTupleLen {
			return nil, fmt.Errorf("%w: histogram entry %d is malformed", ErrQueryFailed, i)
		}

		bins[i] = Bin{Begin: nums[0], End: nums[1], Count: int64(nums[2])}
	}

	return bins, nil
}

// EncodeDone renders the stream completion line.
func EncodeDone() []byte {
	return []byte(`{"` + fieldDone + `":true}`)
}

// DecodeStreamLine parses one NDJSON line of an interval stream. done is
// true for the completion line.
func DecodeStreamLine(line []byte) (iv trace.Interval, done bool, err error) {
	value, err := oj.Parse(line)
	if err != nil {
		return trace.Interval{}, false, fmt.Errorf("%w: stream line: %w", ErrQueryFailed, err)
	}

	if flag, isBool := donePath.First(value).(bool); isBool && flag {
		return trace.Interval{}, true, nil
	}

	iv, err = trace.FromFields(value)
	if err != nil {
		return trace.Interval{}, false, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}

	return iv, false, nil
}

// EncodeForward renders a trace-forward payload.
func EncodeForward(fwd Forward) ([]byte, error) {
	out := make(map[string]any, len(fwd))

	for loc, recs := range fwd {
		items := make([]any, len(recs))

		for i, rec := range recs {
			item := map[string]any{
				fieldName:      rec.Name,
				fieldStartTime: rec.StartTime,
				fieldEndTime:   rec.EndTime,
			}

			if rec.Util != nil {
				item[fieldUtil] = floatsToAny(rec.Util)
			}

			items[i] = item
		}

		out[loc] = items
	}

	return marshal(out)
}

// DecodeForward validates and parses a trace-forward payload. A location
// whose child list is not an array fails the query.
func DecodeForward(data []byte) (Forward, error) {
	result, err := gojsonschema.Validate(forwardSchemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: trace forward: %w", ErrQueryFailed, err)
	}

	if !result.Valid() {
		return nil, fmt.Errorf("%w: trace forward: %s", ErrQueryFailed, describeSchemaErrors(result.Errors()))
	}

	value, err := oj.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: trace forward: %w", ErrQueryFailed, err)
	}

	obj, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: trace forward is %T", ErrQueryFailed, value)
	}

	fwd := make(Forward, len(obj))

	for loc, raw := range obj {
		items, isArray := raw.([]any)
		if !isArray {
			return nil, fmt.Errorf("%w: primitive list for %s is %T, not an array", ErrQueryFailed, loc, raw)
		}

		recs := make([]ForwardRecord, 0, len(items))

		for _, item := range items {
			rec, recErr := decodeForwardRecord(item)
			if recErr != nil {
				return nil, fmt.Errorf("%w: location %s: %w", ErrQueryFailed, loc, recErr)
			}

			recs = append(recs, rec)
		}

		fwd[loc] = recs
	}

	return fwd, nil
}

// EncodeUtilization renders a per-location utilization payload.
func EncodeUtilization(util map[string][]float64) ([]byte, error) {
	out := make(map[string]any, len(util))
	for loc, series := range util {
		out[loc] = floatsToAny(series)
	}

	return marshal(out)
}

// DecodeUtilization parses a per-location utilization payload.
func DecodeUtilization(data []byte) (map[string][]float64, error) {
	value, err := oj.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: utilization: %w", ErrQueryFailed, err)
	}

	obj, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: utilization is %T, not an object", ErrQueryFailed, value)
	}

	out := make(map[string][]float64, len(obj))

	for loc, raw := range obj {
		series, numErr := trace.Numbers(raw)
		if numErr != nil {
			return nil, fmt.Errorf("%w: utilization for %s: %w", ErrQueryFailed, loc, numErr)
		}

		out[loc] = series
	}

	return out, nil
}

// EncodeSeries renders a single utilization series as a JSON array.
func EncodeSeries(series []float64) ([]byte, error) {
	return marshal(floatsToAny(series))
}

// DecodeSeries parses a JSON array of numbers.
func DecodeSeries(data []byte) ([]float64, error) {
	value, err := oj.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: series: %w", ErrQueryFailed, err)
	}

	series, err := trace.Numbers(value)
	if err != nil {
		return nil, fmt.Errorf("%w: series: %w", ErrQueryFailed, err)
	}

	return series, nil
}

func decodeForwardRecord(item any) (ForwardRecord, error) {
	name, _ := namePath.First(item).(string)

	start, ok := trace.Number(startPath.First(item))
	if !ok {
		return ForwardRecord{}, fmt.Errorf("%w: %s", trace.ErrMalformedRecord, fieldStartTime)
	}

	end, ok := trace.Number(endPath.First(item))
	if !ok {
		return ForwardRecord{}, fmt.Errorf("%w: %s", trace.ErrMalformedRecord, fieldEndTime)
	}

	rec := ForwardRecord{Name: name, StartTime: start, EndTime: end}

	if raw := utilPath.First(item); raw != nil {
		util, err := trace.Numbers(raw)
		if err != nil {
			return ForwardRecord{}, err
		}

		rec.Util = util
	}

	return rec, nil
}

func describeSchemaErrors(errs []gojsonschema.ResultError) string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.String()
	}

	sort.Strings(msgs)

	return strings.Join(msgs, "; ")
}

func floatsToAny(vals []float64) []any {
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = v
	}

	return out
}

func marshal(v any) ([]byte, error) {
	data, err := oj.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	return data, nil
}
