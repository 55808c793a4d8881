package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/fmueller/batchscribe/internal/batch"
	"github.com/fmueller/batchscribe/internal/cli"
	"github.com/stretchr/testify/require"
)

func TestShouldPrintUsageHint(t *testing.T) {
	t.Parallel()

	require.True(t, shouldPrintUsageHint(errors.New("unknown command \"bad\" for \"batchscribe\"")))
	require.True(t, shouldPrintUsageHint(errors.New("unknown flag: --oops")))
	require.True(t, shouldPrintUsageHint(errors.New("accepts 2 arg(s), received 1")))
	require.False(t, shouldPrintUsageHint(errors.New("download model \"small\": context deadline exceeded")))
	require.False(t, shouldPrintUsageHint(nil))
}

func TestErrorHint(t *testing.T) {
	t.Parallel()

	require.Contains(t, errorHint(batch.ErrNoInputs), "batchscribe transcribe")
	require.Contains(t, errorHint(fmt.Errorf("%w: a.mp3", batch.ErrFilesFailed)), "skipped")
	require.Empty(t, errorHint(errors.New("boom")))
}

func TestHelpHintTarget(t *testing.T) {
	t.Parallel()

	root := cli.NewRootCmd()
	require.Equal(t, "batchscribe", helpHintTarget(root, []string{"--badflag"}))
	require.Equal(t, "batchscribe", helpHintTarget(root, []string{"badcmd"}))
	require.Equal(t, "batchscribe transcribe", helpHintTarget(root, []string{"transcribe"}))
	require.Equal(t, "batchscribe config set", helpHintTarget(root, []string{"config", "set", "model"}))
}
