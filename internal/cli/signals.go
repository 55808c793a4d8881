package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
)

type signalSource interface {
	Notify(c chan<- os.Signal)
	Stop(c chan<- os.Signal)
}

type osSignals struct{}

func (osSignals) Notify(c chan<- os.Signal) {
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
}

func (osSignals) Stop(c chan<- os.Signal) {
	signal.Stop(c)
}

type stopper interface {
	Stop()
}

// watchInterrupts turns the first interrupt into a cooperative stop and the
// second into a cancellation of the returned context. The returned func
// releases the signal handler and must be called once the batch ends.
func (a *appState) watchInterrupts(parent context.Context, target stopper) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)

	signals := a.signals
	if signals == nil {
		signals = osSignals{}
	}

	sigCh := make(chan os.Signal, 2)
	signals.Notify(sigCh)

	done := make(chan struct{})
	finished := make(chan struct{})

	go func() {
		defer close(finished)
		interrupts := 0
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case sig := <-sigCh:
				interrupts++
				if interrupts == 1 {
					a.log().Warn("interrupt received; finishing current file, press Ctrl+C again to abort it", zap.String("signal", sig.String()))
					target.Stop()
					continue
				}
				a.log().Warn("second interrupt; aborting current file", zap.String("signal", sig.String()))
				cancel()
				return
			}
		}
	}()

	return ctx, func() {
		signals.Stop(sigCh)
		close(done)
		<-finished
		cancel()
	}
}
