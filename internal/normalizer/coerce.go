package normalizer

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
	"github.com/xuri/excelize/v2"
)

const (
	isoDate   = "2006-01-02"
	clockTime = "15:04"

	// serial day numbers accepted as spreadsheet dates (1900-01-01 .. 9999-12-31)
	minSerialDate = 1
	maxSerialDate = 2958465
)

var passengerSeparators = regexp.MustCompile(`[;,\n]`)

// Text renders a raw scalar as trimmed text. Whole numbers drop their
// fractional part so that numeric ids read as "100" rather than "100.0".
func Text(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return ""
		}
		if val == math.Trunc(val) && math.Abs(val) < 1e15 {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return Text(float64(val))
	case time.Time:
		if val.IsZero() {
			return ""
		}
		return val.Format("2006-01-02 15:04:05")
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

// CleanText strips table separators and surrounding whitespace
func CleanText(v interface{}) string {
	return strings.TrimSpace(strings.ReplaceAll(Text(v), "|", ""))
}

// isNumeric reports whether a raw value arrived as a number
func isNumeric(v interface{}) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	}
	return false
}

// IsInteger reports whether text parses as a whole number
func IsInteger(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	if _, err := strconv.ParseInt(strings.TrimSuffix(s, ".0"), 10, 64); err == nil {
		return true
	}
	return false
}

// ParsePrice converts a raw price cell to a non-negative finite number.
// Currency symbols and thousands separators are stripped; anything that
// does not parse becomes 0.
func ParsePrice(v interface{}, currencySymbols []string) float64 {
	var d decimal.Decimal
	switch val := v.(type) {
	case nil:
		return 0
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return 0
		}
		d = decimal.NewFromFloat(val)
	case float32:
		return ParsePrice(float64(val), currencySymbols)
	case string:
		s := val
		for _, sym := range currencySymbols {
			s = strings.ReplaceAll(s, sym, "")
		}
		s = strings.ReplaceAll(s, ",", "")
		s = strings.Join(strings.Fields(s), "")
		if s == "" {
			return 0
		}
		parsed, err := decimal.NewFromString(s)
		if err != nil {
			return 0
		}
		d = parsed
	default:
		f, err := cast.ToFloat64E(v)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0
		}
		d = decimal.NewFromFloat(f)
	}

	if d.IsNegative() {
		return 0
	}
	f, _ := d.Float64()
	if math.IsInf(f, 0) {
		return 0
	}
	return f
}

// ParseDate normalizes a raw date cell to YYYY-MM-DD. Text is parsed from
// its first whitespace token; when no layout fits that token is returned.
func ParseDate(v interface{}, layouts []string) string {
	if t, ok := v.(time.Time); ok {
		if t.IsZero() {
			return ""
		}
		return t.Format(isoDate)
	}
	if t, ok := serialTime(v); ok {
		return t.Format(isoDate)
	}

	s := Text(v)
	if s == "" {
		return ""
	}
	token := strings.Fields(s)[0]
	for _, layout := range layouts {
		if t, err := time.Parse(layout, token); err == nil {
			return t.Format(isoDate)
		}
	}
	return token
}

// ParseTime normalizes a raw time cell to HH:MM. Spreadsheet day fractions
// are accepted. A combined value is parsed from its last token. Values that
// fit no layout become empty.
func ParseTime(v interface{}, layouts []string) string {
	switch val := v.(type) {
	case time.Time:
		if val.IsZero() {
			return ""
		}
		return val.Format(clockTime)
	case float64:
		if t, ok := serialTime(val); ok {
			return t.Format(clockTime)
		}
		return dayFraction(val)
	case float32:
		return ParseTime(float64(val), layouts)
	}

	s := Text(v)
	if s == "" {
		return ""
	}
	fields := strings.Fields(s)
	token := fields[len(fields)-1]
	for _, layout := range layouts {
		if t, err := time.Parse(layout, token); err == nil {
			return t.Format(clockTime)
		}
	}
	return ""
}

// serialTime converts a spreadsheet serial date number
func serialTime(v interface{}) (time.Time, bool) {
	f, ok := v.(float64)
	if !ok || math.IsNaN(f) || f < minSerialDate || f > maxSerialDate {
		return time.Time{}, false
	}
	t, err := excelize.ExcelDateToTime(f, false)
	if err != nil {
		return time.Time{}, false
	}
	return t.Round(time.Second), true
}

func dayFraction(f float64) string {
	if math.IsNaN(f) || f < 0 || f >= 1 {
		return ""
	}
	minutes := int(math.Round(f * 24 * 60))
	if minutes >= 24*60 {
		minutes = 24*60 - 1
	}
	return time.Date(0, 1, 1, minutes/60, minutes%60, 0, 0, time.UTC).Format(clockTime)
}

// ParseDateTime splits a combined date-time cell. Generic parsing is tried
// first; otherwise the first token is read as the date and the last as the time.
func ParseDateTime(v interface{}, dateLayouts, timeLayouts []string) (string, string) {
	if t, ok := v.(time.Time); ok {
		if t.IsZero() {
			return "", ""
		}
		return t.Format(isoDate), t.Format(clockTime)
	}
	if t, ok := serialTime(v); ok {
		return t.Format(isoDate), t.Format(clockTime)
	}

	s := Text(v)
	if s == "" {
		return "", ""
	}
	if strings.Contains(s, ":") {
		if t, err := cast.ToTimeE(s); err == nil {
			return t.Format(isoDate), t.Format(clockTime)
		}
	}

	date := ParseDate(s, dateLayouts)
	if len(strings.Fields(s)) < 2 {
		return date, ""
	}
	return date, ParseTime(s, timeLayouts)
}

// ParsePassengers splits free text on ';', ',' or newline, keeping order
func ParsePassengers(v interface{}) []string {
	s := Text(v)
	if s == "" {
		return []string{}
	}
	parts := passengerSeparators.Split(s, -1)
	passengers := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = CleanText(p); p != "" {
			passengers = append(passengers, p)
		}
	}
	return passengers
}

// ParseDescription extracts source and destination from invoice text such
// as "איסוף: תל אביב - חיפה". Text without a marker yields two empty strings.
func ParseDescription(v interface{}, markers []string) (string, string) {
	s := Text(v)
	if s == "" {
		return "", ""
	}
	lower := strings.ToLower(s)
	found := false
	for _, m := range markers {
		if m != "" && strings.Contains(lower, strings.ToLower(m)) {
			found = true
			break
		}
	}
	if !found {
		return "", ""
	}

	parts := strings.Split(s, "-")
	if len(parts) < 2 {
		return "", ""
	}
	source := parts[0]
	if i := strings.LastIndex(source, ":"); i >= 0 {
		source = source[i+1:]
	}
	return CleanText(source), CleanText(parts[len(parts)-1])
}

// NormalizeName collapses runs of whitespace
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}
