package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("SOLVENT_TEST_MODE") == "" {
			_ = os.Setenv("SOLVENT_TEST_MODE", "1")
		}
	})
}
