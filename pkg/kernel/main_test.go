package kernel

import (
	"os"
	"testing"

	"github.com/skyblanket/swarmrt/pkg/log"
)

func TestMain(m *testing.M) {
	log.Init(log.Config{Level: log.ErrorLevel})
	os.Exit(m.Run())
}
