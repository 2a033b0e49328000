package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("PANTRYLEDGER_TEST_MODE") == "" {
			_ = os.Setenv("PANTRYLEDGER_TEST_MODE", "1")
		}
	})
}
