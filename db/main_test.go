package db

import (
	"context"
	"fmt"
	"os"
	"testing"
)

func TestMain(m *testing.M) {
	os.Exit(runTests(m))
}

// runTests starts Postgres unless POSTGRES_URL points at one already.
func runTests(m *testing.M) int {
	if os.Getenv("POSTGRES_URL") != "" {
		return m.Run()
	}

	ctx := context.Background()

	container, err := StartPostgresContainer(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer func() {
		_ = container.Terminate(ctx)
	}()

	os.Setenv("POSTGRES_URL", container.URL)

	return m.Run()
}
