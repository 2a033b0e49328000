package shared

import "fmt"

// CycleLockKey builds redis keys guarding lifecycle transitions of a store.
func CycleLockKey(scope string) string {
	return fmt.Sprintf("pantryledger:cycle:%s:lock", scope)
}
