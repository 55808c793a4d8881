package notify

import (
	"errors"

	"github.com/gen2brain/beeep"
)

const appTitle = "batchscribe"

// Notifier signals the end of a batch. Both hooks are replaceable so tests
// and headless runs never touch the desktop.
type Notifier struct {
	Beep   func() error
	Notify func(title, message string) error
}

func New() *Notifier {
	return &Notifier{
		Beep: func() error {
			return beeep.Beep(beeep.DefaultFreq, beeep.DefaultDuration)
		},
		Notify: func(title, message string) error {
			return beeep.Notify(title, message, "")
		},
	}
}

// Completed plays the completion sound and posts a desktop notification with
// summary. Both are attempted; their errors are joined.
func (n *Notifier) Completed(summary string) error {
	if n == nil {
		return nil
	}

	var errs []error
	if n.Beep != nil {
		errs = append(errs, n.Beep())
	}
	if n.Notify != nil {
		errs = append(errs, n.Notify(appTitle, summary))
	}
	return errors.Join(errs...)
}
