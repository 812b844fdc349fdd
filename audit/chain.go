// Copyright 2026 The OpenTrusty Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package audit

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// GenesisHash is the prev_hash value stored against the first entry in
// each tenant's chain.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000"

// canonicalPayload encodes the portion of an Event that is covered by the
// integrity hash, in a deterministic field order. Metadata keys are
// sorted so that two equal maps always marshal to the same bytes
// regardless of Go's randomized map iteration order.
type canonicalPayload struct {
	ID                string         `json:"id"`
	Type              string         `json:"type"`
	TenantID          string         `json:"tenant_id"`
	ActorID           string         `json:"actor_id"`
	Resource          string         `json:"resource"`
	TargetID          string         `json:"target_id"`
	TargetName        string         `json:"target_name"`
	Metadata          []metadataPair `json:"metadata"`
	TimestampUnixNano int64          `json:"timestamp_unix_nano"`
	Success           bool           `json:"success"`
}

type metadataPair struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

func canonicalize(e Event) ([]byte, error) {
	pairs := make([]metadataPair, 0, len(e.Metadata))
	for k, v := range e.Metadata {
		pairs = append(pairs, metadataPair{Key: k, Value: v})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Key < pairs[j].Key })

	payload := canonicalPayload{
		ID:                e.ID,
		Type:              e.Type,
		TenantID:          e.TenantID,
		ActorID:           e.ActorID,
		Resource:          e.Resource,
		TargetID:          e.TargetID,
		TargetName:        e.TargetName,
		Metadata:          pairs,
		TimestampUnixNano: e.Timestamp.UnixNano(),
		Success:           e.Success,
	}
	return json.Marshal(payload)
}

// ComputeIntegrity returns hex(HMAC-SHA256(key, prevHash || canonicalPayload(e))).
// prevHash is GenesisHash for the first entry in a tenant's chain.
func ComputeIntegrity(key []byte, prevHash string, e Event) (string, error) {
	payload, err := canonicalize(e)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(prevHash))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// ChainedEntry is one row of the persisted audit chain: an Event plus the
// integrity hash and the hash of the entry immediately before it.
type ChainedEntry struct {
	Event     Event
	PrevHash  string
	Integrity string
}

// VerifyChain recomputes the integrity hash of every entry in order and
// reports the index of the first entry whose stored integrity does not
// match the recomputation, or -1 if the chain is intact. entries must be
// supplied in insertion order for a single tenant.
func VerifyChain(key []byte, entries []ChainedEntry) (int, error) {
	expectedPrev := GenesisHash
	for i, entry := range entries {
		if entry.PrevHash != expectedPrev {
			return i, nil
		}
		want, err := ComputeIntegrity(key, entry.PrevHash, entry.Event)
		if err != nil {
			return i, err
		}
		if !hmac.Equal([]byte(want), []byte(entry.Integrity)) {
			return i, nil
		}
		expectedPrev = entry.Integrity
	}
	return -1, nil
}
