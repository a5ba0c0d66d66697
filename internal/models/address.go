package models

// AddressRecord is one non-blank address read from the input sheet.
type AddressRecord struct {
	Row     int    // Row is the 1-based sheet row the address was read from.
	Address string // Address is the location to be geocoded.
}
