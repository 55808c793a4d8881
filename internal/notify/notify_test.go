package notify

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompletedCallsBothHooks(t *testing.T) {
	t.Parallel()

	var beeps int
	var title, message string
	n := &Notifier{
		Beep: func() error {
			beeps++
			return nil
		},
		Notify: func(ttl, m string) error {
			title, message = ttl, m
			return nil
		},
	}

	require.NoError(t, n.Completed("3/3 files"))
	require.Equal(t, 1, beeps)
	require.Equal(t, "batchscribe", title)
	require.Equal(t, "3/3 files", message)
}

func TestCompletedJoinsErrors(t *testing.T) {
	t.Parallel()

	n := &Notifier{
		Beep:   func() error { return errors.New("no speaker") },
		Notify: func(string, string) error { return errors.New("no dbus") },
	}

	err := n.Completed("done")
	require.ErrorContains(t, err, "no speaker")
	require.ErrorContains(t, err, "no dbus")
}

func TestCompletedOnNilNotifier(t *testing.T) {
	t.Parallel()

	var n *Notifier
	require.NoError(t, n.Completed("done"))
}
