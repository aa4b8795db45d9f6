package domain

// FlowStatus is the lifecycle state of a flow.
type FlowStatus string

const (
	FlowEnabled  FlowStatus = "ENABLED"
	FlowDisabled FlowStatus = "DISABLED"
)

// VersionPolicy selects which version of a flow a webhook call runs.
type VersionPolicy string

const (
	// LockedFallbackToLatest uses the published version when one
	// exists, otherwise the most recently created version. This is the
	// production path: a disabled flow never executes under it.
	LockedFallbackToLatest VersionPolicy = "LOCKED_FALLBACK"

	// Latest always uses the most recently created version, letting
	// edits be live-tested without touching production traffic.
	Latest VersionPolicy = "LATEST"
)

// Flow is a reference to a versioned automation definition, owned by
// an external service. Only the fields the coordinator reads are here.
type Flow struct {
	ID                 string
	Status             FlowStatus
	PublishedVersionID string
	LatestVersionID    string

	// Handshake is nil when the trigger has no handshake step.
	Handshake *HandshakeConfig
}

// ResolveVersion applies the policy to pick the version id to run.
func (f *Flow) ResolveVersion(policy VersionPolicy) string {
	if policy == LockedFallbackToLatest && f.PublishedVersionID != "" {
		return f.PublishedVersionID
	}
	return f.LatestVersionID
}
