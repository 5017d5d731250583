// Copyright 2024 The drcov2lcov Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package atonce

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestDoCollapsesConcurrentCalls(t *testing.T) {
	var calls int32
	started := make(chan struct{})
	release := make(chan struct{})
	wantErr := errors.New("boom")

	var wg sync.WaitGroup
	results := make([]error, 10)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = Do("test", "key", func() error {
				atomic.AddInt32(&calls, 1)
				close(started)
				<-release
				return wantErr
			})
		}(i)
	}

	<-started
	close(release)
	wg.Wait()

	if calls != 1 {
		t.Errorf("f ran %d times, want 1", calls)
	}
	for i, err := range results {
		if err != wantErr {
			t.Errorf("caller %d got %v, want %v", i, err, wantErr)
		}
	}
}

func TestDoDistinctKeys(t *testing.T) {
	var calls int32
	var wg sync.WaitGroup
	for _, key := range []string{"a", "b", "c"} {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			Do("test-distinct", key, func() error {
				atomic.AddInt32(&calls, 1)
				return nil
			})
		}(key)
	}
	wg.Wait()
	if calls != 3 {
		t.Errorf("f ran %d times, want 3", calls)
	}
}
