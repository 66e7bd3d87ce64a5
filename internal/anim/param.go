package anim

import (
	"strconv"
	"strings"
)

// ParamType identifies the value type of a script parameter.
type ParamType int

const (
	ParamInvalid ParamType = iota
	ParamLong
	ParamDouble
	ParamBool
	ParamRGB
	ParamARGB
	ParamGradient
	ParamAGradient
	ParamAngle
	ParamString
	ParamLabel
)

// String returns the wire-format token for a parameter type.
func (t ParamType) String() string {
	switch t {
	case ParamLong:
		return "long"
	case ParamDouble:
		return "double"
	case ParamBool:
		return "bool"
	case ParamRGB:
		return "rgb"
	case ParamARGB:
		return "argb"
	case ParamGradient:
		return "gradient"
	case ParamAGradient:
		return "agradient"
	case ParamAngle:
		return "angle"
	case ParamString:
		return "string"
	case ParamLabel:
		return "label"
	}
	return "invalid"
}

// parseParamType maps an info-line type token to a ParamType.
// Unknown tokens yield ParamInvalid.
func parseParamType(token string) ParamType {
	switch strings.ToLower(token) {
	case "long":
		return ParamLong
	case "double":
		return ParamDouble
	case "bool":
		return ParamBool
	case "rgb":
		return ParamRGB
	case "argb":
		return ParamARGB
	case "gradient":
		return ParamGradient
	case "agradient":
		return ParamAGradient
	case "angle":
		return ParamAngle
	case "string":
		return ParamString
	case "label":
		return ParamLabel
	}
	return ParamInvalid
}

// Param describes one configurable animation parameter. Default,
// Minimum and Maximum are loosely typed; their concrete type depends
// on Type. A Param is immutable once appended to a descriptor.
type Param struct {
	Type    ParamType
	Name    string
	Prefix  string
	Postfix string
	Default interface{}
	Minimum interface{}
	Maximum interface{}
}

// valueString renders a loosely-typed parameter value the way it is
// written on the wire.
func valueString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "1"
		}
		return "0"
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case uint32:
		return strconv.FormatUint(uint64(t), 10)
	default:
		return ""
	}
}

// valueFloat coerces a loosely-typed parameter value to a float64,
// yielding 0 for anything non-numeric.
func valueFloat(v interface{}) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case bool:
		if t {
			return 1
		}
		return 0
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0
		}
		return f
	}
	return 0
}
