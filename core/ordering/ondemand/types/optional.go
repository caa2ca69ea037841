package types

import "fmt"

// DigestLength is the length in bytes of a proposal digest.
const DigestLength = 32

// Digest is the hash of a proposal.
type Digest [DigestLength]byte

// String implements fmt.Stringer. It returns the first bytes in hexadecimal.
func (d Digest) String() string {
	return fmt.Sprintf("%x", d[:])[:8]
}

// OptionalDigest is a digest that is either present or absent. The zero value
// is absent.
type OptionalDigest struct {
	value   Digest
	present bool
}

// SomeDigest returns a present digest.
func SomeDigest(d Digest) OptionalDigest {
	return OptionalDigest{value: d, present: true}
}

// NoDigest returns an absent digest.
func NoDigest() OptionalDigest {
	return OptionalDigest{}
}

// Get returns the digest and true if it is present.
func (o OptionalDigest) Get() (Digest, bool) {
	return o.value, o.present
}

// IsPresent returns true if the digest is set.
func (o OptionalDigest) IsPresent() bool {
	return o.present
}

// String implements fmt.Stringer.
func (o OptionalDigest) String() string {
	if !o.present {
		return "none"
	}

	return o.value.String()
}

// OptionalBytes is a byte string that is either present or absent. A present
// empty value is different from an absent one. The zero value is absent.
type OptionalBytes struct {
	value   []byte
	present bool
}

// SomeBytes returns present bytes. A nil slice is present and empty.
func SomeBytes(value []byte) OptionalBytes {
	if value == nil {
		value = []byte{}
	}

	return OptionalBytes{value: value, present: true}
}

// NoBytes returns absent bytes.
func NoBytes() OptionalBytes {
	return OptionalBytes{}
}

// Get returns the bytes and true if they are present.
func (o OptionalBytes) Get() ([]byte, bool) {
	return o.value, o.present
}

// IsPresent returns true if the bytes are set.
func (o OptionalBytes) IsPresent() bool {
	return o.present
}
