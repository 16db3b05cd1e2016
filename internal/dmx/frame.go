package dmx

// Channels is the size of one DMX universe.
const Channels = 512

// Frame is one full universe of channel values, 0-indexed.
type Frame [Channels]byte

// Address is a 1-based DMX channel address in 1..512.
// The zero value is not a valid address.
type Address uint16

// NewAddress validates a raw 1-based address.
func NewAddress(n int) (Address, bool) {
	if n < 1 || n > Channels {
		return 0, false
	}
	return Address(n), true
}

// Valid reports whether a is inside 1..512.
func (a Address) Valid() bool { return a >= 1 && a <= Channels }

// Index returns the 0-based frame index for a valid address.
func (a Address) Index() int { return int(a) - 1 }

// Get returns the value at a, or 0 for an invalid address.
func (f *Frame) Get(a Address) byte {
	if !a.Valid() {
		return 0
	}
	return f[a.Index()]
}

// Set writes v at a. Invalid addresses are ignored.
func (f *Frame) Set(a Address, v byte) bool {
	if !a.Valid() {
		return false
	}
	f[a.Index()] = v
	return true
}

// Fill copies data into the frame starting at channel 1. Data beyond
// 512 bytes is dropped; channels past len(data) are left untouched.
func (f *Frame) Fill(data []byte) int {
	return copy(f[:], data)
}
