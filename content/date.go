package content

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// HeaderDateLayout is the RFC 5322 date layout used in synthesized headers.
const HeaderDateLayout = "Mon, 2 Jan 2006 15:04:05 -0700"

// Stored date strings come in three shapes:
//
//	12/2/2001 6:18:53 PM Eastern Standard Time
//	12/2/01
//	01-12-02 18:18:53 EST
var (
	dateTimeAMPM = regexp.MustCompile(`^\s*(\d{1,2})/(\d{1,2})/(\d{2,4})\s+(\d{1,2}):(\d{1,2}):(\d{1,2})\s*([AaPp][Mm])\s+(\S.*?)\s*$`)
	dateOnly     = regexp.MustCompile(`^\s*(\d{1,2})/(\d{1,2})/(\d{2,4})`)
	dateTimeISO  = regexp.MustCompile(`^\s*(\d{2,4})-(\d{1,2})-(\d{1,2})\s+(\d{1,2}):(\d{1,2}):(\d{1,2})\s+(\S.*?)\s*$`)
	numericZone  = regexp.MustCompile(`^(?i:GMT|UTC)?([+-])(\d{1,2}):?(\d{2})?$`)
)

// zoneOffsets maps zone abbreviations and names to hours east of UTC.
var zoneOffsets = map[string]int{
	"gmt":  0,
	"utc":  0,
	"ut":   0,
	"z":    0,
	"est":  -5,
	"edt":  -4,
	"cst":  -6,
	"cdt":  -5,
	"mst":  -7,
	"mdt":  -6,
	"pst":  -8,
	"pdt":  -7,
	"akst": -9,
	"akdt": -8,
	"hst":  -10,
	"ast":  -4,
	"adt":  -3,

	"greenwich mean time":           0,
	"eastern standard time":         -5,
	"eastern daylight time":         -4,
	"central standard time":         -6,
	"central daylight time":         -5,
	"mountain standard time":        -7,
	"mountain daylight time":        -6,
	"pacific standard time":         -8,
	"pacific daylight time":         -7,
	"alaska standard time":          -9,
	"alaska daylight time":          -8,
	"hawaii standard time":          -10,
	"hawaii-aleutian standard time": -10,
	"atlantic standard time":        -4,
	"atlantic daylight time":        -3,
}

// Date parses DateString. The second result is false when no known pattern
// matches; callers then fall back to the raw string.
func (m *MailMessage) Date() (time.Time, bool) {
	return ParseDate(m.DateString)
}

// ParseDate tries the stored date patterns in order and returns the first
// match.
func ParseDate(s string) (time.Time, bool) {
	if t, ok := parseAMPM(s); ok {
		return t, true
	}
	if t, ok := parseDateOnly(s); ok {
		return t, true
	}
	return parseISO(s)
}

func parseAMPM(s string) (time.Time, bool) {
	g := dateTimeAMPM.FindStringSubmatch(s)
	if g == nil {
		return time.Time{}, false
	}
	loc, ok := zone(g[8])
	if !ok {
		return time.Time{}, false
	}
	hour := atoi(g[4]) % 12
	if strings.EqualFold(g[7], "pm") {
		hour += 12
	}
	return time.Date(year(g[3]), time.Month(atoi(g[1])), atoi(g[2]),
		hour, atoi(g[5]), atoi(g[6]), 0, loc), true
}

func parseDateOnly(s string) (time.Time, bool) {
	g := dateOnly.FindStringSubmatch(s)
	if g == nil {
		return time.Time{}, false
	}
	return time.Date(year(g[3]), time.Month(atoi(g[1])), atoi(g[2]), 0, 0, 0, 0, time.UTC), true
}

func parseISO(s string) (time.Time, bool) {
	g := dateTimeISO.FindStringSubmatch(s)
	if g == nil {
		return time.Time{}, false
	}
	loc, ok := zone(g[7])
	if !ok {
		return time.Time{}, false
	}
	return time.Date(year(g[1]), time.Month(atoi(g[2])), atoi(g[3]),
		atoi(g[4]), atoi(g[5]), atoi(g[6]), 0, loc), true
}

// zone resolves a zone abbreviation, name or numeric offset.
func zone(name string) (*time.Location, bool) {
	if off, ok := zoneOffsets[strings.ToLower(name)]; ok {
		if off == 0 {
			return time.UTC, true
		}
		return time.FixedZone("", off*3600), true
	}

	g := numericZone.FindStringSubmatch(name)
	if g == nil {
		return nil, false
	}
	secs := atoi(g[2])*3600 + atoi(g[3])*60
	if g[1] == "-" {
		secs = -secs
	}
	return time.FixedZone("", secs), true
}

// year expands two digit years the way time.Parse does: 69-99 are 19xx,
// 00-68 are 20xx.
func year(s string) int {
	y := atoi(s)
	if len(s) > 2 {
		return y
	}
	if y >= 69 {
		return 1900 + y
	}
	return 2000 + y
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
