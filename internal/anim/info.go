package anim

import (
	"bufio"
	"bytes"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// oneDay is the upper bound, in seconds, for every timing parameter.
const oneDay float64 = 24 * 60 * 60

// percentDecode reverses percent encoding, returning the input
// unchanged when it is not valid percent-encoded text.
func percentDecode(s string) string {
	s = strings.TrimSpace(s)
	decoded, err := url.PathUnescape(s)
	if err != nil {
		return s
	}
	return strings.TrimSpace(decoded)
}

// percentEncode escapes everything outside the unreserved set, so a
// value survives the space-delimited wire format.
func percentEncode(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' ||
			c == '-' || c == '.' || c == '_' || c == '~' {
			b.WriteByte(c)
			continue
		}
		const hex = "0123456789ABCDEF"
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0xf])
	}
	return b.String()
}

// parseInfo parses the output of an info query into a descriptor.
// It returns ok=false when a required identity field is missing; a
// rejected candidate leaves no partial state behind.
func parseInfo(output []byte) (Descriptor, bool) {
	// Scripts opt out of repeating; everything else opts in.
	info := Descriptor{Repeat: true}
	defaultDuration := -1.0

	sc := bufio.NewScanner(bytes.NewReader(output))
	for sc.Scan() {
		// Split on single spaces, keeping empty tokens: positional
		// param fields are allowed to be empty on the wire.
		fields := strings.Split(strings.TrimSpace(sc.Text()), " ")
		if len(fields) < 2 {
			continue
		}
		text := func() string {
			return percentDecode(strings.Join(fields[1:], " "))
		}
		switch fields[0] {
		case "guid":
			if g, err := uuid.Parse(percentDecode(fields[1])); err == nil {
				info.GUID = g
			}
		case "name":
			info.Name = text()
		case "version":
			info.Version = text()
		case "year":
			info.Year = text()
		case "author":
			info.Author = text()
		case "license":
			info.License = text()
		case "description":
			info.Description = text()
		case "kpmode":
			switch fields[1] {
			case "position":
				info.KPMode = KPPosition
			case "name":
				info.KPMode = KPName
			default:
				info.KPMode = KPNone
			}
		case "time":
			if defaultDuration > 0 {
				// A declared duration locks the script to relative time.
				continue
			}
			info.AbsoluteTime = fields[1] == "absolute"
		case "repeat":
			info.Repeat = fields[1] == "on"
		case "preempt":
			info.Preempt = fields[1] == "on"
		case "parammode":
			info.LiveParams = fields[1] == "live"
		case "param":
			parseParamLine(&info, fields, &defaultDuration)
		}
	}

	if !info.valid() {
		return Descriptor{}, false
	}
	injectReserved(&info, defaultDuration)
	return info, true
}

// parseParamLine handles one "param <type> <name> <prefix> <postfix>
// <default> [<min>] [<max>]" line. Malformed or reserved-name lines
// are dropped without affecting the rest of the descriptor.
func parseParamLine(info *Descriptor, fields []string, defaultDuration *float64) {
	if len(fields) < 3 {
		return
	}
	for len(fields) < 8 {
		fields = append(fields, "")
	}
	typ := parseParamType(fields[1])
	if typ == ParamInvalid {
		return
	}
	name := strings.ToLower(fields[2])
	if info.HasParam(name) {
		return
	}
	prefix, postfix := percentDecode(fields[3]), percentDecode(fields[4])
	var def, min, max interface{} = percentDecode(fields[5]), percentDecode(fields[6]), percentDecode(fields[7])

	switch name {
	case "trigger", "kptrigger":
		if typ != ParamBool {
			return
		}
	case "duration":
		value := valueFloat(def)
		if info.AbsoluteTime || typ != ParamDouble || value < 0.1 || value > oneDay {
			return
		}
		min, max = 0.1, oneDay
		*defaultDuration = value
	case "delay", "kpdelay", "repeat", "kprepeat", "stop", "kpstop", "kprelease":
		// Synthesized after parsing; scripts may not declare these.
		return
	}

	info.Params = append(info.Params, Param{
		Type:    typ,
		Name:    name,
		Prefix:  prefix,
		Postfix: postfix,
		Default: def,
		Minimum: min,
		Maximum: max,
	})
}

// injectReserved appends the reserved timing parameters every
// descriptor carries, honoring whatever the script already declared.
func injectReserved(info *Descriptor, defaultDuration float64) {
	if !info.HasParam("trigger") {
		info.Params = append(info.Params, Param{Type: ParamBool, Name: "trigger", Default: true})
	}
	if !info.HasParam("kptrigger") {
		info.Params = append(info.Params, Param{Type: ParamBool, Name: "kptrigger", Default: false})
	}
	// Preemption only makes sense on a cyclic relative timeline.
	if info.AbsoluteTime || !info.Repeat {
		info.Preempt = false
	}
	info.Params = append(info.Params,
		Param{Type: ParamDouble, Name: "delay", Default: 0.0, Minimum: 0.0, Maximum: oneDay},
		Param{Type: ParamDouble, Name: "kpdelay", Default: 0.0, Minimum: 0.0, Maximum: oneDay},
		Param{Type: ParamBool, Name: "kprelease", Default: false, Minimum: 0, Maximum: 3},
	)
	if defaultDuration < 0 {
		defaultDuration = 1.0
		if !info.AbsoluteTime {
			info.Params = append(info.Params, Param{
				Type: ParamDouble, Name: "duration",
				Default: defaultDuration, Minimum: 0.1, Maximum: oneDay,
			})
		}
	}
	if info.Repeat {
		// With repeats on, stop counters are repeat counts; -1 means forever.
		info.Params = append(info.Params,
			Param{Type: ParamDouble, Name: "repeat", Default: defaultDuration, Minimum: 0.1, Maximum: oneDay},
			Param{Type: ParamDouble, Name: "kprepeat", Default: defaultDuration, Minimum: 0.1, Maximum: oneDay},
			Param{Type: ParamLong, Name: "stop", Default: int64(-1), Minimum: int64(0), Maximum: int64(1000)},
			Param{Type: ParamLong, Name: "kpstop", Default: int64(0), Minimum: int64(0), Maximum: int64(1000)},
		)
	} else {
		// With repeats off, stop offsets are absolute seconds.
		info.Params = append(info.Params,
			Param{Type: ParamDouble, Name: "stop", Default: -1.0, Minimum: 0.1, Maximum: oneDay},
			Param{Type: ParamDouble, Name: "kpstop", Default: -1.0, Minimum: 0.1, Maximum: oneDay},
		)
	}
}
