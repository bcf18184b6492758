package model

// RawRecord is one log object as returned by the appliance. Numbers are kept
// as json.Number so identities survive decoding without float rounding.
type RawRecord map[string]any
