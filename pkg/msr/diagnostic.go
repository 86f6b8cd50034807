package msr

import "fmt"

// Verdict is the outcome of a self test.
type Verdict int

const (
	VerdictPass Verdict = iota
	VerdictFail
	// VerdictNoResponse means the test did not answer, by timeout or transport error.
	VerdictNoResponse
)

func (v Verdict) String() string {
	switch v {
	case VerdictPass:
		return "pass"
	case VerdictFail:
		return "fail"
	case VerdictNoResponse:
		return "no response"
	}
	return fmt.Sprintf("Verdict(%d)", int(v))
}

// DiagnosticResult is the outcome of a RAM or sensor self test.
type DiagnosticResult struct {
	Command CommandCode
	Verdict Verdict
	// Status is the marker the device answered with, zero when it did not answer.
	Status Status
	// Err is the transport error behind a VerdictNoResponse.
	Err error
}

// IsWarning reports whether the test did not pass. The reader remains usable.
func (r DiagnosticResult) IsWarning() bool {
	return r.Verdict != VerdictPass
}

func (r DiagnosticResult) String() string {
	if r.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", r.Command, r.Verdict, r.Err)
	}
	return fmt.Sprintf("%s: %s", r.Command, r.Verdict)
}
