package domain

import "gorm.io/datatypes"

// Context field names accumulated across the scripted flow. The document
// is forward-compatible: fields no handler knows about pass through intact.
const (
	CtxClientName          = "client_name"
	CtxClientPhone         = "client_phone"
	CtxServiceID           = "service_id"
	CtxServiceName         = "service_name"
	CtxDate                = "date"
	CtxTime                = "time"
	CtxAttemptCount        = "attempt_count"
	CtxAppointmentID       = "appointment_id"
	CtxPendingConfirmation = "pending_confirmation"
)

// selectionKeys are the fields cleared on reset, abort, and re-engagement.
var selectionKeys = []string{
	CtxServiceID,
	CtxServiceName,
	CtxDate,
	CtxTime,
	CtxAttemptCount,
	CtxAppointmentID,
	CtxPendingConfirmation,
}

// MergeContext builds the next context value from the previous one: the
// previous document is copied (never mutated), selections are cleared when
// requested, then the patch is applied. A nil patch value deletes the key.
func MergeContext(prev datatypes.JSONMap, patch map[string]any, clearSelections bool) datatypes.JSONMap {
	next := make(datatypes.JSONMap, len(prev)+len(patch))
	for k, v := range prev {
		next[k] = v
	}
	if clearSelections {
		for _, k := range selectionKeys {
			delete(next, k)
		}
	}
	for k, v := range patch {
		if v == nil {
			delete(next, k)
			continue
		}
		next[k] = v
	}
	return next
}

// CtxString reads a string field from the context document.
func CtxString(ctx datatypes.JSONMap, key string) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx[key].(string); ok {
		return v
	}
	return ""
}

// CtxInt reads an int field, tolerating the float64 that jsonb decoding
// produces.
func CtxInt(ctx datatypes.JSONMap, key string) int {
	if ctx == nil {
		return 0
	}
	switch v := ctx[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// CtxInt64 reads an int64 field stored as string, for snowflake ids that
// would lose precision as jsonb numbers.
func CtxInt64(ctx datatypes.JSONMap, key string) int64 {
	raw := CtxString(ctx, key)
	if raw == "" {
		return 0
	}
	var id int64
	for _, c := range raw {
		if c < '0' || c > '9' {
			return 0
		}
		id = id*10 + int64(c-'0')
	}
	return id
}
