package eval

import (
	"strings"
	"time"

	"github.com/vshell/vshell/query/ast"
	"github.com/vshell/vshell/query/value"
)

// Date & time family (spec §4.7), modeled on jq's broken-down-time arrays:
// [seconds, minutes, hours, day-of-month, month(0-based), year-1900,
// weekday, day-of-year] in UTC, as produced by gmtime(3).
func init() {
	registerBuiltin("now", 0, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		return []PV{{Val: value.NewNumber(float64(time.Now().UnixNano()) / 1e9)}}, nil
	})
	registerBuiltin("mktime", 0, single(func(v value.Value) (value.Value, error) {
		t, err := brokenDownToTime(v)
		if err != nil {
			return value.Value{}, err
		}
		return value.NewNumber(float64(t.Unix())), nil
	}))
	registerBuiltin("gmtime", 0, single(func(v value.Value) (value.Value, error) {
		if v.Kind != value.Number {
			return value.Value{}, newError("gmtime requires a number")
		}
		return timeToBrokenDown(time.Unix(int64(v.N), 0).UTC()), nil
	}))
	registerBuiltin("localtime", 0, single(func(v value.Value) (value.Value, error) {
		if v.Kind != value.Number {
			return value.Value{}, newError("localtime requires a number")
		}
		return timeToBrokenDown(time.Unix(int64(v.N), 0).Local()), nil
	}))
	registerBuiltin("strftime", 1, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		layout, err := evalOne(ev, args[0], in, env)
		if err != nil {
			return nil, err
		}
		t, err := brokenDownToTime(in.Val)
		if err != nil {
			return nil, err
		}
		return []PV{{Val: value.NewString(t.UTC().Format(strftimeToGo(layout.S)))}}, nil
	})
	registerBuiltin("strptime", 1, func(ev *Evaluator, in PV, args []*ast.Node, env *Env) ([]PV, error) {
		if in.Val.Kind != value.String {
			return nil, newError("strptime requires a string input")
		}
		layout, err := evalOne(ev, args[0], in, env)
		if err != nil {
			return nil, err
		}
		t, err := time.Parse(strftimeToGo(layout.S), in.Val.S)
		if err != nil {
			return nil, newError("date %q does not match format %q", in.Val.S, layout.S)
		}
		return []PV{{Val: timeToBrokenDown(t.UTC())}}, nil
	})
	registerBuiltin("todate", 0, single(func(v value.Value) (value.Value, error) {
		if v.Kind != value.Number {
			return value.Value{}, newError("todate requires a number")
		}
		return value.NewString(time.Unix(int64(v.N), 0).UTC().Format("2006-01-02T15:04:05Z")), nil
	}))
	registerBuiltin("fromdate", 0, single(func(v value.Value) (value.Value, error) {
		if v.Kind != value.String {
			return value.Value{}, newError("fromdate requires a string")
		}
		t, err := time.Parse("2006-01-02T15:04:05Z", v.S)
		if err != nil {
			return value.Value{}, newError("date %q does not match ISO-8601", v.S)
		}
		return value.NewNumber(float64(t.Unix())), nil
	}))
	registerBuiltin("date", 0, single(func(v value.Value) (value.Value, error) {
		if v.Kind != value.Number {
			return value.Value{}, newError("date requires a number")
		}
		return value.NewString(time.Unix(int64(v.N), 0).UTC().Format("2006-01-02T15:04:05Z")), nil
	}))
}

func timeToBrokenDown(t time.Time) value.Value {
	return value.NewArray([]value.Value{
		value.NewNumber(float64(t.Second())),
		value.NewNumber(float64(t.Minute())),
		value.NewNumber(float64(t.Hour())),
		value.NewNumber(float64(t.Day())),
		value.NewNumber(float64(int(t.Month()) - 1)),
		value.NewNumber(float64(t.Year() - 1900)),
		value.NewNumber(float64(int(t.Weekday()))),
		value.NewNumber(float64(t.YearDay() - 1)),
	})
}

func brokenDownToTime(v value.Value) (time.Time, error) {
	if v.Kind != value.Array || len(v.A) < 6 {
		return time.Time{}, newError("not a valid broken-down time array")
	}
	sec := int(v.A[0].N)
	min := int(v.A[1].N)
	hour := int(v.A[2].N)
	day := int(v.A[3].N)
	month := int(v.A[4].N) + 1
	year := int(v.A[5].N) + 1900
	return time.Date(year, time.Month(month), day, hour, min, sec, 0, time.UTC), nil
}

// strftimeToGo converts the common strftime directives jq supports into Go's
// reference-time layout syntax.
func strftimeToGo(layout string) string {
	replacer := strings.NewReplacer(
		"%Y", "2006",
		"%m", "01",
		"%d", "02",
		"%H", "15",
		"%M", "04",
		"%S", "05",
		"%Z", "MST",
		"%z", "-0700",
		"%e", "_2",
		"%j", "002",
		"%A", "Monday",
		"%a", "Mon",
		"%B", "January",
		"%b", "Jan",
		"%T", "15:04:05",
		"%%", "%",
	)
	return replacer.Replace(layout)
}
