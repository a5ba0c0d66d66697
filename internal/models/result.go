package models

// Status is the outcome of a single geocoding attempt.
type Status int

const (
	StatusFailed Status = iota
	StatusSuccess
)

// Labels written to the Status column of the output sheet.
const (
	LabelSuccess  = "Success"
	LabelFailed   = "Failed"
	LabelNotFound = "Not found"
)

func (s Status) String() string {
	if s == StatusSuccess {
		return LabelSuccess
	}
	return LabelFailed
}

// GeocodeResult is the outcome of geocoding one address. Coordinates is set
// only on success; Reason is set only on failure.
type GeocodeResult struct {
	Coordinates *Coordinates
	Status      Status
	Reason      error
}

// Success returns a successful result carrying coords.
func Success(coords Coordinates) GeocodeResult {
	return GeocodeResult{Coordinates: &coords, Status: StatusSuccess}
}

// Failure returns a failed result carrying the reason.
func Failure(reason error) GeocodeResult {
	return GeocodeResult{Status: StatusFailed, Reason: reason}
}

// OK reports whether the result carries coordinates.
func (r GeocodeResult) OK() bool {
	return r.Status == StatusSuccess && r.Coordinates != nil
}
