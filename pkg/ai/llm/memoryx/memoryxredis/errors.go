package memoryxredis

import "github.com/Abraxas-365/chatkeep/pkg/errx"

var snapshotErrors = errx.NewRegistry("HISTORY_REDIS")

var (
	ErrSave      = snapshotErrors.Register("SAVE", errx.TypeExternal, 500, "Redis history save failed")
	ErrLoad      = snapshotErrors.Register("LOAD", errx.TypeExternal, 500, "Redis history load failed")
	ErrDelete    = snapshotErrors.Register("DELETE", errx.TypeExternal, 500, "Redis history delete failed")
	ErrMarshal   = snapshotErrors.Register("MARSHAL", errx.TypeInternal, 500, "Failed to marshal history")
	ErrUnmarshal = snapshotErrors.Register("UNMARSHAL", errx.TypeInternal, 500, "Failed to unmarshal history")
)
