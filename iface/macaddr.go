package iface

import (
	"crypto/rand"
	"encoding/binary"

	"golang.org/x/crypto/blake2b"
)

// deriveFallbackMAC replaces the teacher's enet.Init crypto/rand-filled
// fallback (soc/nxp/enet/enet.go) with a deterministic-per-process
// derivation: every interface added without a burned-in address gets a
// distinct, reproducible-within-this-process address, which makes the
// sockdev/loopback test devices in this repo behave the same way across
// a single run instead of a fresh random address every time Add is called.
func deriveFallbackMAC(ifNbr int, salt []byte) HwAddr {
	var ifNbrBytes [8]byte
	binary.BigEndian.PutUint64(ifNbrBytes[:], uint64(ifNbr))

	sum := blake2b.Sum512(append(append([]byte{}, salt...), ifNbrBytes[:]...))

	mac := HwAddr(append([]byte{}, sum[:6]...))
	mac[0] &= 0xfe
	mac[0] |= 0x02

	return mac
}

// newBootSalt reads a fresh per-process salt. Failure here would mean the
// OS entropy source is unavailable, which this module treats as fatal the
// same way the teacher's hardware RNG failures are unrecoverable.
func newBootSalt() []byte {
	salt := make([]byte, 32)
	if _, err := rand.Read(salt); err != nil {
		panic("iface: failed to read boot salt: " + err.Error())
	}
	return salt
}
