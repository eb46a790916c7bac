package canon

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// Domain prefixes. The version suffix leaves room for algorithm changes.
const (
	DomainAction = "launchpad/action/v1"
	DomainTally  = "launchpad/tally/v1"
	DomainDraw   = "launchpad/draw/v1"
	DomainSeed   = "launchpad/seed/v1"
	DomainState  = "launchpad/state/v1"
)

// sumWithDomain computes SHA256(domain + 0x00 + data).
// The null separator keeps the domain/data boundary unambiguous.
func sumWithDomain(domain string, data []byte) [32]byte {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func hashWithDomain(domain string, data []byte) string {
	sum := sumWithDomain(domain, data)
	return hex.EncodeToString(sum[:])
}

// ActionID computes the content-addressed id of an executed campaign
// action. The same action, arguments and sequence number always produce
// the same id, which makes store writes idempotent under retry.
func ActionID(campaignID, action string, args map[string]any, seq int64) (string, error) {
	data, err := Marshal(map[string]any{
		"campaign_id": campaignID,
		"action":      action,
		"args":        args,
		"seq":         seq,
	})
	if err != nil {
		return "", fmt.Errorf("action id: %w", err)
	}
	return hashWithDomain(DomainAction, data), nil
}

// MustActionID is like ActionID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustActionID(campaignID, action string, args map[string]any, seq int64) string {
	id, err := ActionID(campaignID, action, args, seq)
	if err != nil {
		panic(err)
	}
	return id
}

// Digest hashes the canonical encoding of v under the tally domain.
func Digest(v any) (string, error) {
	data, err := Marshal(v)
	if err != nil {
		return "", fmt.Errorf("digest: %w", err)
	}
	return hashWithDomain(DomainTally, data), nil
}

// Draw derives the pseudo-random word for one lottery round from the
// fulfilled seed. Rounds are independent and fully determined by
// (seed, round).
func Draw(seed [32]byte, round uint64) [32]byte {
	var data [40]byte
	copy(data[:32], seed[:])
	binary.BigEndian.PutUint64(data[32:], round)
	return sumWithDomain(DomainDraw, data[:])
}

// Seed derives the request seed a campaign hands to the randomness
// oracle. It binds the request to the campaign and its subscription set.
func Seed(campaignID, subscriptionsDigest string) [32]byte {
	return sumWithDomain(DomainSeed, []byte(campaignID+"\x00"+subscriptionsDigest))
}

// StateHash hashes a canonical state snapshot.
func StateHash(canonical []byte) string {
	return hashWithDomain(DomainState, canonical)
}
