package vm

import (
	"fmt"

	"github.com/josharian/intern"
)

type Value interface{ isValue() }

func NewValue() Value { return VNull{} }

type VBool bool

func (_ VBool) isValue()       {}
func (v VBool) String() string { return fmt.Sprintf("%t", v) }

type VNull struct{}

func (_ VNull) isValue()       {}
func (v VNull) String() string { return "null" }

type VNum float64

func (_ VNum) isValue()       {}
func (v VNum) String() string { return fmt.Sprintf("%g", float64(v)) }

type VStr string

func (_ VStr) isValue()       {}
func (v VStr) String() string { return fmt.Sprintf("%q", string(v)) }

// NewVStr COPIES s into the process-wide intern pool, so equal string
// values share one backing allocation.
func NewVStr(s string) VStr { return VStr(intern.String(s)) }

func VAdd(v, w Value) (res Value, ok bool) {
	res = NewValue()
	switch v := v.(type) {
	case VNum:
		switch w := w.(type) {
		case VNum:
			return v + w, true
		}
	case VStr:
		switch w := w.(type) {
		case VStr:
			return NewVStr(string(v) + string(w)), true
		}
	}
	return
}

func VSub(v, w Value) (res Value, ok bool) {
	res = NewValue()
	switch v := v.(type) {
	case VNum:
		switch w := w.(type) {
		case VNum:
			return v - w, true
		}
	}
	return
}

func VMul(v, w Value) (res Value, ok bool) {
	res = NewValue()
	switch v := v.(type) {
	case VNum:
		switch w := w.(type) {
		case VNum:
			return v * w, true
		}
	}
	return
}

func VDiv(v, w Value) (res Value, ok bool) {
	res = NewValue()
	switch v := v.(type) {
	case VNum:
		switch w := w.(type) {
		case VNum:
			return v / w, true
		}
	}
	return
}

func VGreater(v, w Value) (res Value, ok bool) {
	res = NewValue()
	switch v := v.(type) {
	case VNum:
		switch w := w.(type) {
		case VNum:
			return VBool(v > w), true
		}
	}
	return
}

func VLess(v, w Value) (res Value, ok bool) {
	res = NewValue()
	switch v := v.(type) {
	case VNum:
		switch w := w.(type) {
		case VNum:
			return VBool(v < w), true
		}
	}
	return
}

func VNeg(v Value) (res Value, ok bool) {
	res = NewValue()
	switch v := v.(type) {
	case VNum:
		return -v, true
	}
	return
}

func VTruthy(v Value) VBool {
	switch v := v.(type) {
	case VBool:
		return v
	case VNull:
		return false
	default:
		return true
	}
}

func VEq(v, w Value) VBool {
	switch v := v.(type) {
	case VBool:
		switch w := w.(type) {
		case VBool:
			return v == w
		}
	case VNum:
		switch w := w.(type) {
		case VNum:
			return v == w
		}
	case VStr:
		switch w := w.(type) {
		case VStr:
			return v == w
		}
	case VNull:
		_, ok := w.(VNull)
		return VBool(ok)
	}
	return false
}
