package redis

const (
	// DefaultQueueName is the list the push worker drains.
	DefaultQueueName = "opencon_push_notification"
	// DefaultAuditKey is the capped list of enqueued message summaries.
	DefaultAuditKey = "confsync:notifications:audit"
	// KeyPrefixImportStatus is the prefix for the last import status of a source.
	KeyPrefixImportStatus = "confsync:import:"
	// KeyPrefixImportLock is the prefix for the cross-instance import lock of a source.
	KeyPrefixImportLock = "confsync:lock:import:"
)

// ImportStatusKey returns the Redis key for the last import status of source.
func ImportStatusKey(source string) string {
	return KeyPrefixImportStatus + source
}

// ImportLockKey returns the Redis key guarding imports of source.
func ImportLockKey(source string) string {
	return KeyPrefixImportLock + source
}
