package timeouts

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestConfigure_IgnoresZero(t *testing.T) {
	defer Reset()

	Configure(Config{Short: 7 * time.Second})
	if Short() != 7*time.Second {
		t.Errorf("Short = %v, want 7s", Short())
	}
	if Medium() != DefaultMedium {
		t.Errorf("Medium = %v, want default", Medium())
	}
}

func TestConfigureFromEnv(t *testing.T) {
	defer Reset()
	t.Setenv("TIMEOUT_PAY", "90s")
	t.Setenv("TIMEOUT_LONG", "bogus")

	if n := ConfigureFromEnv(); n != 1 {
		t.Errorf("configured %d values, want 1", n)
	}
	if Pay() != 90*time.Second {
		t.Errorf("Pay = %v, want 90s", Pay())
	}
	if Long() != DefaultLong {
		t.Errorf("Long = %v, want default", Long())
	}
}

func TestWithTimeout(t *testing.T) {
	ctx, cancel := WithTimeout(context.Background(), time.Millisecond, zap.NewNop(), "test")
	<-ctx.Done()
	cancel()
	if ctx.Err() != context.DeadlineExceeded {
		t.Errorf("err = %v, want deadline exceeded", ctx.Err())
	}
}
