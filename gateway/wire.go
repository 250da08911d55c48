package gateway

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/chromaprobe/chromaprobe/colorspace"
)

// RawSample is one parsed reading from the device, before color
// normalization. Consumed immediately by the orchestrator.
type RawSample struct {
	Acidity    float64
	Color      colorspace.Tristimulus
	CapturedAt time.Time
}

// The firmware emits one of three line formats depending on its build and
// mode. Older builds mirror their debug display output (format A); newer
// builds emit a compact struct literal (format B); the generic key:value form
// (format C) is what the bench harness produces.
//
//	A: TCS R: 0xFF (255), G: 0xE5 (229), B: 0x80 (128), C: 0x00 (0), PH: 6.80
//	B: {r:255,g:229,b:128,c:0,ph:6.80}
//	C: PH:6.80,R:255,G:229,B:128,C:0
var displayRe = regexp.MustCompile(
	`^TCS\s+R:\s*0x([0-9A-Fa-f]+)\s*\((\d+)\)\s*,\s*` +
		`G:\s*0x([0-9A-Fa-f]+)\s*\((\d+)\)\s*,\s*` +
		`B:\s*0x([0-9A-Fa-f]+)\s*\((\d+)\)\s*` +
		`(?:,\s*C:\s*0x([0-9A-Fa-f]+)\s*\((\d+)\)\s*)?` +
		`,\s*PH:\s*([0-9.]+)\s*$`,
)

// ParseLine parses a wire line into a RawSample, attempting the display
// format, then the struct-literal format, then the generic key:value format.
// The caller stamps CapturedAt. Malformed lines yield a ParseError; values
// outside plausible bounds yield an InvalidRangeError.
func ParseLine(line string) (RawSample, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return RawSample{}, &ParseError{Line: line, message: "empty line"}
	}

	if m := displayRe.FindStringSubmatch(line); m != nil {
		return parseDisplay(line, m)
	}
	if strings.HasPrefix(line, "{") && strings.HasSuffix(line, "}") {
		return parseStructLiteral(line)
	}
	return parseKeyValue(line)
}

func parseDisplay(line string, m []string) (RawSample, error) {
	channels := make([]int, 3)
	for i := 0; i < 3; i++ {
		hexVal, err := strconv.ParseInt(m[1+2*i], 16, 32)
		if err != nil {
			return RawSample{}, &ParseError{Line: line, message: "bad hex field"}
		}
		decVal, err := strconv.Atoi(m[2+2*i])
		if err != nil {
			return RawSample{}, &ParseError{Line: line, message: "bad decimal field"}
		}
		if int(hexVal) != decVal {
			return RawSample{}, &ParseError{
				Line:    line,
				message: "hex and decimal channel values disagree",
			}
		}
		channels[i] = decVal
	}

	clear := 0
	if m[7] != "" {
		hexVal, err := strconv.ParseInt(m[7], 16, 32)
		if err != nil {
			return RawSample{}, &ParseError{Line: line, message: "bad hex field"}
		}
		decVal, err := strconv.Atoi(m[8])
		if err != nil || int(hexVal) != decVal {
			return RawSample{}, &ParseError{
				Line:    line,
				message: "hex and decimal clear values disagree",
			}
		}
		clear = decVal
	}

	ph, err := strconv.ParseFloat(m[9], 64)
	if err != nil {
		return RawSample{}, &ParseError{Line: line, message: "bad acidity field"}
	}

	return validated(RawSample{
		Acidity: ph,
		Color: colorspace.Tristimulus{
			R: channels[0], G: channels[1], B: channels[2], Clear: clear,
		},
	})
}

func parseStructLiteral(line string) (RawSample, error) {
	body := strings.TrimSuffix(strings.TrimPrefix(line, "{"), "}")
	return parseFields(line, body)
}

func parseKeyValue(line string) (RawSample, error) {
	return parseFields(line, line)
}

// parseFields handles both the struct-literal body and the generic key:value
// format: comma-separated KEY:VALUE pairs, keys case-insensitive, requiring
// at minimum acidity and the three color channels.
func parseFields(line, body string) (RawSample, error) {
	var (
		sample  RawSample
		seen    = map[string]bool{}
		numeric = func(key, raw string) (float64, error) {
			v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
			if err != nil {
				return 0, &ParseError{
					Line:    line,
					message: "non-numeric " + key + " field",
				}
			}
			return v, nil
		}
	)

	for _, field := range strings.Split(body, ",") {
		key, raw, ok := strings.Cut(field, ":")
		if !ok {
			return RawSample{}, &ParseError{
				Line:    line,
				message: "field without key:value separator",
			}
		}
		key = strings.ToLower(strings.TrimSpace(key))

		v, err := numeric(key, raw)
		if err != nil {
			return RawSample{}, err
		}

		switch key {
		case "ph":
			sample.Acidity = v
		case "r":
			sample.Color.R = int(v)
		case "g":
			sample.Color.G = int(v)
		case "b":
			sample.Color.B = int(v)
		case "c", "clear":
			sample.Color.Clear = int(v)
		default:
			return RawSample{}, &ParseError{
				Line:    line,
				message: "unknown field " + strconv.Quote(key),
			}
		}
		seen[key] = true
	}

	for _, required := range []string{"ph", "r", "g", "b"} {
		if !seen[required] {
			return RawSample{}, &ParseError{
				Line:    line,
				message: "missing required field " + strconv.Quote(required),
			}
		}
	}

	return validated(sample)
}

// validated enforces the physically plausible bounds shared by all formats.
func validated(s RawSample) (RawSample, error) {
	if s.Acidity < 0 || s.Acidity > 14 {
		return RawSample{}, &InvalidRangeError{Field: "ph", Value: s.Acidity}
	}
	for _, ch := range []struct {
		name  string
		value int
	}{
		{"r", s.Color.R},
		{"g", s.Color.G},
		{"b", s.Color.B},
		{"clear", s.Color.Clear},
	} {
		if ch.value < 0 || ch.value > 65535 {
			return RawSample{}, &InvalidRangeError{
				Field: ch.name, Value: float64(ch.value),
			}
		}
	}
	return s, nil
}
