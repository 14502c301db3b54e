package relations

import (
	"context"
	"fmt"
)

// EventType is the closed set of replication event kinds. Keeping it a
// typed enum makes new kinds an exhaustive-switch concern.
type EventType int

const (
	EventBootstrapTenant EventType = iota
	EventBulkBootstrapTenant
	EventExternalUserUpdate
	EventBulkExternalUserUpdate
)

func (t EventType) String() string {
	switch t {
	case EventBootstrapTenant:
		return "bootstrap_tenant"
	case EventBulkBootstrapTenant:
		return "bulk_bootstrap_tenant"
	case EventExternalUserUpdate:
		return "external_user_update"
	case EventBulkExternalUserUpdate:
		return "bulk_external_user_update"
	default:
		return fmt.Sprintf("unknown(%d)", int(t))
	}
}

func (t EventType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// EnvironmentPartition derives the partition key for a deployment
// environment. All events from one environment share a partition, so
// their tuples apply in order relative to each other.
func EnvironmentPartition(environment string) string {
	return environment
}

// ReplicationEvent is the envelope handed to the replicator: an ordered
// add-set and remove-set of tuples plus free-form diagnostic info.
type ReplicationEvent struct {
	Type         EventType      `json:"type"`
	Info         map[string]any `json:"info,omitempty"`
	PartitionKey string         `json:"partition_key"`
	Add          []Tuple        `json:"add,omitempty"`
	Remove       []Tuple        `json:"remove,omitempty"`
}

// Replicator delivers replication events to the authorization graph with
// at-least-once semantics, ordered within a partition key. A failed
// Replicate fails the whole operation that produced the event.
type Replicator interface {
	Replicate(ctx context.Context, event ReplicationEvent) error
}
