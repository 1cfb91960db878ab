package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/hashicorp/consul/api"

	"github.com/luxfi/signer/pkg/encoding"
)

// KVLister is the part of the consul KV client used to discover the
// committee.
type KVLister interface {
	List(prefix string, q *api.QueryOptions) (api.KVPairs, *api.QueryMeta, error)
}

func NewConsulClient(addr string) (*api.Client, error) {
	consulConfig := api.DefaultConfig()
	if addr != "" {
		consulConfig.Address = addr
	}
	return api.NewClient(consulConfig)
}

// LoadSignersFromConsul reads the committee stored under prefix. Each key
// is <prefix><signer id> holding a JSON SignerEntry; ids must run from 0
// without gaps.
func LoadSignersFromConsul(kv KVLister, prefix string) ([]SignerEntry, error) {
	pairs, _, err := kv.List(prefix, nil)
	if err != nil {
		return nil, fmt.Errorf("config: list %s: %w", prefix, err)
	}

	byID := make(map[int]SignerEntry, len(pairs))
	for _, pair := range pairs {
		raw := strings.TrimPrefix(pair.Key, prefix)
		id, err := strconv.Atoi(raw)
		if err != nil || id < 0 {
			return nil, fmt.Errorf("config: bad signer key %q", pair.Key)
		}
		var entry SignerEntry
		if err := encoding.JsonBytesToStruct(pair.Value, &entry); err != nil {
			return nil, fmt.Errorf("config: signer %d: %w", id, err)
		}
		byID[id] = entry
	}

	ids := make([]int, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	signers := make([]SignerEntry, len(ids))
	for i, id := range ids {
		if id != i {
			return nil, fmt.Errorf("config: signer ids are not contiguous, missing %d", i)
		}
		signers[i] = byID[id]
	}
	return signers, nil
}
