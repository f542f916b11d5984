package schema

const (
	MetaThread = "thread"
	MetaStage  = "stage"
	MetaKind   = "kind"
	MetaSender = "sender"
	MetaRunID  = "run_id"
)

// GetMetaString extracts a string from a metadata map. Returns "" if missing/not string.
func GetMetaString(meta map[string]any, key string) string {
	if meta == nil {
		return ""
	}
	val, ok := meta[key]
	if !ok {
		return ""
	}
	str, ok := val.(string)
	if !ok {
		return ""
	}
	return str
}
