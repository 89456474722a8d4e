package ai

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFallbackCompressorDerivesTitleFromToolName(t *testing.T) {
	draft, err := FallbackCompressor{}.Compress(context.Background(), "output text", "Bash")
	require.NoError(t, err)
	require.Equal(t, "Ran Bash", draft.Title)
	require.Equal(t, "change", draft.Type)
	require.Equal(t, 3, draft.Importance)
}

func TestFallbackCompressorBlankToolNameDefaultsToTool(t *testing.T) {
	draft, err := FallbackCompressor{}.Compress(context.Background(), "x", "   ")
	require.NoError(t, err)
	require.Equal(t, "Ran tool", draft.Title)
}

func TestFallbackCompressorTruncatesLongOutput(t *testing.T) {
	long := strings.Repeat("x", 1000)
	draft, err := FallbackCompressor{}.Compress(context.Background(), long, "Read")
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(draft.Narrative, "... [truncated]"))
	require.LessOrEqual(t, len(draft.Narrative), 520)
}

func TestNoopEmbedderReportsNoSupport(t *testing.T) {
	e := NoopEmbedder{}
	require.Equal(t, 0, e.Dimensions())
	vec, err := e.Embed(context.Background(), "text")
	require.NoError(t, err)
	require.Nil(t, vec)
}
