package store

// Key layout. Everything the engine persists lives under one of these
// prefixes so each concern can List its own records without scanning the
// whole bucket.
const (
	// TaskPrefix holds one record per tracked work item.
	TaskPrefix = "task/"

	// UnitPrefix holds one record per remediation unit, keyed by the
	// {type, target} dedup key.
	UnitPrefix = "unit/"

	// AlertPrefix holds one record per open human-facing alert, keyed by
	// type then fingerprint.
	AlertPrefix = "alert/"
)

// TaskKey returns the record key for a task ID.
func TaskKey(taskID string) string {
	return TaskPrefix + taskID
}

// UnitKey returns the record key for a remediation unit's dedup key.
func UnitKey(dedupKey string) string {
	return UnitPrefix + dedupKey
}

// AlertKey returns the record key for an alert fingerprint of a type.
func AlertKey(sigType, fingerprint string) string {
	return AlertPrefix + sigType + "/" + fingerprint
}

// AlertTypePrefix returns the List prefix covering all alerts of a type.
func AlertTypePrefix(sigType string) string {
	return AlertPrefix + sigType + "/"
}
