package megolm

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"roomkeys/internal/util/memzero"
)

const (
	ratchetParts      = 4
	ratchetPartLength = 32
	ratchetLength     = ratchetParts * ratchetPartLength
)

// ratchet is the Megolm ratchet state at a given counter.
type ratchet struct {
	data    [ratchetLength]byte
	counter uint32
}

func newRatchet(data []byte, counter uint32) ratchet {
	var r ratchet
	copy(r.data[:], data)
	r.counter = counter
	return r
}

func (r *ratchet) part(i int) []byte {
	return r.data[i*ratchetPartLength : (i+1)*ratchetPartLength]
}

// rehash overwrites part to with HMAC(part from, seed to).
func (r *ratchet) rehash(from, to int) {
	m := hmac.New(sha256.New, r.part(from))
	m.Write([]byte{byte(to)})
	sum := m.Sum(nil)
	copy(r.part(to), sum)
	memzero.Zero(sum)
}

// advance moves the ratchet forward by one message.
func (r *ratchet) advance() {
	mask := uint32(0x00FFFFFF)
	h := 0
	r.counter++

	// Find the highest-order part that changes at this counter.
	for h < ratchetParts {
		if r.counter&mask == 0 {
			break
		}
		h++
		mask >>= 8
	}
	for i := ratchetParts - 1; i >= h; i-- {
		r.rehash(h, i)
	}
}

// advanceTo moves the ratchet to index, wrapping around when index is below
// the current counter.
func (r *ratchet) advanceTo(index uint32) {
	for j := 0; j < ratchetParts; j++ {
		shift := uint((ratchetParts - j - 1) * 8)
		mask := ^uint32(0) << shift

		steps := ((index >> shift) - (r.counter >> shift)) & 0xff
		if steps == 0 {
			if index < r.counter {
				steps = 0x100
			} else {
				continue
			}
		}
		for ; steps > 1; steps-- {
			r.rehash(j, j)
		}
		for k := ratchetParts - 1; k >= j; k-- {
			r.rehash(j, k)
		}
		r.counter = index & mask
	}
}

func (r *ratchet) index() uint32 { return r.counter }

func (r *ratchet) wipe() {
	memzero.Zero(r.data[:])
	r.counter = 0
}

// equal compares ratchet material in constant time.
func (r *ratchet) equal(o *ratchet) bool {
	return r.counter == o.counter && hmac.Equal(r.data[:], o.data[:])
}

type pickledRatchet struct {
	Counter uint32 `json:"counter"`
	Inner   string `json:"inner"`
}

func (r ratchet) MarshalJSON() ([]byte, error) {
	return json.Marshal(pickledRatchet{
		Counter: r.counter,
		Inner:   base64.RawStdEncoding.EncodeToString(r.data[:]),
	})
}

func (r *ratchet) UnmarshalJSON(b []byte) error {
	var p pickledRatchet
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	raw, err := base64.RawStdEncoding.DecodeString(p.Inner)
	if err != nil {
		return fmt.Errorf("%w: ratchet: %v", ErrBadInput, err)
	}
	defer memzero.Zero(raw)
	if len(raw) != ratchetLength {
		return fmt.Errorf("%w: ratchet length %d", ErrBadInput, len(raw))
	}
	*r = newRatchet(raw, p.Counter)
	return nil
}
