package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fmueller/batchscribe/internal/batch"
	"github.com/schollz/progressbar/v3"
)

type stopFunc func()

func startSpinner(enabled bool, description string) stopFunc {
	if !enabled {
		return func() {}
	}

	bar := progressbar.NewOptions(
		-1,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionThrottle(80*time.Millisecond),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	stopCh := make(chan struct{})
	doneCh := make(chan struct{})

	go func() {
		defer close(doneCh)
		ticker := time.NewTicker(120 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-stopCh:
				_ = bar.Finish()
				return
			case <-ticker.C:
				_ = bar.Add(1)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stopCh)
			<-doneCh
		})
	}
}

// batchProgress renders one bar step per finished file. All methods are
// no-ops when disabled; they are only called from the batch goroutine.
type batchProgress struct {
	enabled bool
	bar     *progressbar.ProgressBar
}

func newBatchProgress(enabled bool) *batchProgress {
	return &batchProgress{enabled: enabled}
}

func (p *batchProgress) start(index, total int, source string) {
	if !p.enabled {
		return
	}
	if p.bar == nil {
		p.bar = progressbar.NewOptions(
			total,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(20),
			progressbar.OptionThrottle(65*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
	}
	p.bar.Describe(fmt.Sprintf("[%d/%d] %s", index+1, total, filepath.Base(source)))
}

func (p *batchProgress) done(done, _ int, _ batch.Outcome) {
	if p.bar == nil {
		return
	}
	_ = p.bar.Set(done)
}

func (p *batchProgress) finish() {
	if p.bar == nil {
		return
	}
	_ = p.bar.Finish()
}
