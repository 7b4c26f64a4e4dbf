package documents

import (
	"crypto/rand"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

type uuidProvider struct{}

// NewUUIDProvider constructs an IDProvider that issues UUIDv7 identifiers.
func NewUUIDProvider() IDProvider {
	return &uuidProvider{}
}

func (p *uuidProvider) NewID() (string, error) {
	value, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return value.String(), nil
}

type ulidKeyProvider struct{}

// NewULIDKeyProvider constructs a KeyProvider that issues ULID storage keys.
// ULIDs sort lexicographically by creation time, which keeps key order aligned
// with document age.
func NewULIDKeyProvider() KeyProvider {
	return &ulidKeyProvider{}
}

func (p *ulidKeyProvider) NewKey(at time.Time) (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	value, err := ulid.New(ulid.Timestamp(at.UTC()), entropy)
	if err != nil {
		return "", err
	}
	return value.String(), nil
}
