package router

import (
	"reflect"
	"runtime"
	"strings"
)

// functionName derives a stable, human-readable name for a handler from
// its function symbol. The package path is stripped and the "-fm" suffix
// Go appends to method values is removed, so
// "github.com/acme/sync/handlers.OnAddressEdit" becomes
// "handlers.OnAddressEdit".
func functionName(h Handler) string {
	name := runtime.FuncForPC(reflect.ValueOf(h).Pointer()).Name()
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	return strings.TrimSuffix(name, "-fm")
}
