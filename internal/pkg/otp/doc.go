// Package otp generates one-time passcodes.
//
// Codes are six decimal digits, zero-padded, drawn from a cryptographically
// secure source. They are single use by contract: the caller stores a digest
// of the code and clears it once the code has been presented.
package otp
