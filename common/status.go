package common

//go:generate go run github.com/dmarkham/enumer -json -type Status -trimprefix Status

// Status of a scene in the pipeline.
// PENDING -> FETCHED -> PROCESSED, or PENDING/FETCHED -> SKIPPED/FAILED
type Status int

const (
	StatusPENDING Status = iota
	StatusFETCHED
	StatusPROCESSED
	StatusSKIPPED
	StatusFAILED
)

// Terminal returns whether no further transition is possible
func (s Status) Terminal() bool {
	return s == StatusPROCESSED || s == StatusSKIPPED || s == StatusFAILED
}

// Color of the status in a terminal (color codes of mitchellh/colorstring)
func (s Status) Color() string {
	switch s {
	case StatusPENDING:
		return "dark_gray"
	case StatusFETCHED:
		return "blue"
	case StatusPROCESSED:
		return "green"
	case StatusSKIPPED:
		return "yellow"
	case StatusFAILED:
		return "red"
	}
	return "default"
}
