// Package utils holds small lifecycle helpers shared by the console's servers.
package utils //nolint:revive // var-naming: utils is an acceptable package name for shared utilities

import "sync"

// MergeErrorChans fans the given channels into one. Nil values are dropped:
// ListenHTTP reports a clean shutdown as nil, which is not a failure for the
// caller waiting on the merged channel. The result is closed once every input
// is closed, or immediately when there are no inputs.
func MergeErrorChans(channels ...<-chan error) <-chan error {
	out := make(chan error)
	var wg sync.WaitGroup

	wg.Add(len(channels))
	for _, ch := range channels {
		go func(c <-chan error) {
			defer wg.Done()
			for err := range c {
				if err != nil {
					out <- err
				}
			}
		}(ch)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	return out
}
