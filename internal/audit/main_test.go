package audit_test

import (
	"testing"

	"go.uber.org/goleak"
)

// Claims are checked on errgroup workers; none may outlive Run.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"))
}
