package models

// Summary holds the counters of a single batch run.
type Summary struct {
	Total      int    // Total number of non-blank addresses processed.
	Successful int    // Successful is the number of addresses that were geocoded.
	Failed     int    // Failed is the number of addresses that were not geocoded.
	OutputFile string // OutputFile is the path the results were written to.
	Saved      bool   // Saved reports whether the output file was persisted.
}

// Record counts one processed address.
func (s *Summary) Record(result GeocodeResult) {
	s.Total++
	if result.OK() {
		s.Successful++
		return
	}
	s.Failed++
}
