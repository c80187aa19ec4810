package dialogsdk

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestComponentLogger_TagsAndChains(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(zerolog.New(&buf))
	defer SetLogger(zerolog.Nop())

	componentLogger("tracker").Warn().Str("user", "u1").Msg("streak reset")

	out := buf.String()
	if !strings.Contains(out, `"component":"tracker"`) {
		t.Fatalf("missing component field: %s", out)
	}
	if !strings.Contains(out, `"user":"u1"`) || !strings.Contains(out, "streak reset") {
		t.Fatalf("missing chained fields: %s", out)
	}
}

func TestComponentLogger_SilentByDefault(t *testing.T) {
	// Nop logger: chained calls must be safe no-ops.
	componentLogger("engine").Error().Msg("never emitted")
}
