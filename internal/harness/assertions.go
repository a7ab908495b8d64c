package harness

import (
	"fmt"
	"math"
)

// checkAssertions evaluates every assertion against the recording. All
// failures are collected, not fail-fast, so one run reports everything.
func checkAssertions(result *Result, scenario *Scenario) {
	for i := range scenario.Assertions {
		a := &scenario.Assertions[i]
		switch a.Type {
		case AssertSignalAt:
			checkSignalAt(result, i, a)
		case AssertSignalSeries:
			checkSignalSeries(result, i, a)
		case AssertFieldAt:
			checkFieldAt(result, i, a)
		case AssertPassCount:
			checkPassCount(result, i, a)
		case AssertDiagCount:
			checkDiagCount(result, i, a)
		}
	}
}

func near(got, want, within float64) bool {
	if within == 0 {
		return got == want
	}
	return math.Abs(got-want) <= within
}

func checkSignalAt(result *Result, index int, a *Assertion) {
	rec, ok := result.At(a.Frame)
	if !ok {
		result.AddError(fmt.Sprintf("assertions[%d]: no frame %d recorded", index, a.Frame))
		return
	}
	v, ok := rec.Signals[a.Key]
	if !ok {
		result.AddError(fmt.Sprintf("assertions[%d]: signal %q not sampled at frame %d", index, a.Key, rec.Frame))
		return
	}
	if a.Component >= len(v) {
		result.AddError(fmt.Sprintf("assertions[%d]: signal %q has %d components", index, a.Key, len(v)))
		return
	}
	if !near(v[a.Component], a.Value, a.Within) {
		result.AddError(fmt.Sprintf("assertions[%d]: %s[%d] = %v at frame %d, want %v",
			index, a.Key, a.Component, v[a.Component], rec.Frame, a.Value))
	}
}

func checkSignalSeries(result *Result, index int, a *Assertion) {
	for i, want := range a.Values {
		rec, ok := result.At(int64(i) + 1)
		if !ok {
			result.AddError(fmt.Sprintf("assertions[%d]: no frame %d recorded", index, i+1))
			return
		}
		v, ok := rec.Signals[a.Key]
		if !ok {
			result.AddError(fmt.Sprintf("assertions[%d]: signal %q not sampled at frame %d", index, a.Key, rec.Frame))
			return
		}
		if a.Component >= len(v) {
			result.AddError(fmt.Sprintf("assertions[%d]: signal %q has %d components", index, a.Key, len(v)))
			return
		}
		if !near(v[a.Component], want, a.Within) {
			result.AddError(fmt.Sprintf("assertions[%d]: %s[%d] = %v at frame %d, want %v",
				index, a.Key, a.Component, v[a.Component], rec.Frame, want))
		}
	}
}

func checkFieldAt(result *Result, index int, a *Assertion) {
	rec, ok := result.At(a.Frame)
	if !ok {
		result.AddError(fmt.Sprintf("assertions[%d]: no frame %d recorded", index, a.Frame))
		return
	}
	f, ok := rec.Fields[a.Key]
	if !ok {
		result.AddError(fmt.Sprintf("assertions[%d]: field %q not sampled at frame %d", index, a.Key, rec.Frame))
		return
	}
	if a.Element >= f.Count || a.Component >= f.Stride {
		result.AddError(fmt.Sprintf("assertions[%d]: field %q is %dx%d, no element %d component %d",
			index, a.Key, f.Count, f.Stride, a.Element, a.Component))
		return
	}
	got := f.Data[a.Element*f.Stride+a.Component]
	if !near(got, a.Value, a.Within) {
		result.AddError(fmt.Sprintf("assertions[%d]: %s[%d][%d] = %v at frame %d, want %v",
			index, a.Key, a.Element, a.Component, got, rec.Frame, a.Value))
	}
}

func checkPassCount(result *Result, index int, a *Assertion) {
	rec, ok := result.At(a.Frame)
	if !ok {
		result.AddError(fmt.Sprintf("assertions[%d]: no frame %d recorded", index, a.Frame))
		return
	}
	if rec.Passes != a.Count {
		result.AddError(fmt.Sprintf("assertions[%d]: %d render passes at frame %d, want %d",
			index, rec.Passes, rec.Frame, a.Count))
	}
}

func checkDiagCount(result *Result, index int, a *Assertion) {
	total := int64(0)
	for _, d := range result.Diags {
		if d.Code == a.Code && (a.Key == "" || d.Key == a.Key) {
			total += d.Count
		}
	}
	if total != int64(a.Count) {
		result.AddError(fmt.Sprintf("assertions[%d]: diagnostic %s occurred %d times, want %d",
			index, a.Code, total, a.Count))
	}
}
