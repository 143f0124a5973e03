package pool

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func itemIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("app-%03d", i)
	}
	return ids
}

func noPacing() Config { return Config{Workers: 4} }

type itemCounter struct {
	mu    sync.Mutex
	items map[string]int
}

func (c *itemCounter) RecordItem(status string, _ float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.items == nil {
		c.items = map[string]int{}
	}
	c.items[status]++
}

func TestScheduler_AllSucceed(t *testing.T) {
	rec := &itemCounter{}
	s := NewScheduler(noPacing(), WithLogger(zaptest.NewLogger(t)), WithRecorder(rec))

	var seen sync.Map
	report := s.Run(context.Background(), itemIDs(20), func(_ context.Context, id string) error {
		seen.Store(id, true)
		return nil
	})

	assert.Equal(t, 20, report.Total())
	assert.Equal(t, 20, report.Completed())
	assert.Zero(t, report.Failed())
	assert.Empty(t, report.Errors())
	assert.Equal(t, 20, rec.items["success"])
	for _, id := range itemIDs(20) {
		_, ok := seen.Load(id)
		assert.True(t, ok, id)
	}
}

func TestScheduler_IsolatesErrorsAndPanics(t *testing.T) {
	s := NewScheduler(noPacing())

	report := s.Run(context.Background(), []string{"ok-1", "bad", "boom", "ok-2"}, func(_ context.Context, id string) error {
		switch id {
		case "bad":
			return errors.New("no llm_phase1 dir")
		case "boom":
			panic("nil map")
		}
		return nil
	})

	assert.Equal(t, 4, report.Completed())
	assert.Equal(t, 2, report.Failed())
	errs := report.Errors()
	sort.Strings(errs)
	assert.Equal(t, []string{
		"Error processing bad: no llm_phase1 dir",
		"Error processing boom: task panicked: nil map",
	}, errs)
}

func TestScheduler_RespectsWorkerLimit(t *testing.T) {
	s := NewScheduler(Config{Workers: 3})

	var active, peak atomic.Int32
	s.Run(context.Background(), itemIDs(30), func(context.Context, string) error {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		active.Add(-1)
		return nil
	})

	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.GreaterOrEqual(t, peak.Load(), int32(1))
}

func TestScheduler_Progress(t *testing.T) {
	var mu sync.Mutex
	var dones []int
	s := NewScheduler(noPacing(), WithProgress(func(done, total int, _ string, _ error) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, 10, total)
		dones = append(dones, done)
	}))

	s.Run(context.Background(), itemIDs(10), func(context.Context, string) error { return nil })

	sort.Ints(dones)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, dones)
}

func TestScheduler_PacingRunsAfterEachItem(t *testing.T) {
	var mu sync.Mutex
	var delays []time.Duration
	s := NewScheduler(Config{Workers: 2, PacingMax: 10 * time.Second}, WithSleep(func(_ context.Context, d time.Duration) error {
		mu.Lock()
		defer mu.Unlock()
		delays = append(delays, d)
		return nil
	}))

	s.Run(context.Background(), itemIDs(5), func(context.Context, string) error { return nil })

	require.Len(t, delays, 5)
	for _, d := range delays {
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, 10*time.Second)
	}
}

func TestScheduler_EmptyInput(t *testing.T) {
	report := NewScheduler(DefaultConfig()).Run(context.Background(), nil, func(context.Context, string) error {
		t.Fatal("task must not run")
		return nil
	})
	assert.Zero(t, report.Total())
	assert.Zero(t, report.Completed())
}

func TestReport_WriteTo(t *testing.T) {
	r := newReport(3)
	r.record("a", nil, time.Millisecond)
	r.record("b", errors.New("timeout"), time.Millisecond)
	r.record("c", errors.New("auth"), time.Millisecond)

	var buf bytes.Buffer
	n, err := r.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)
	assert.Equal(t, "Summary of Errors(total 2):\nError processing b: timeout\nError processing c: auth\n", buf.String())
}

func TestReport_WriteFile(t *testing.T) {
	r := newReport(1)
	r.record("a", errors.New("x"), 0)

	path := filepath.Join(t.TempDir(), "logs", "error_ds.log")
	require.NoError(t, r.WriteFile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "Summary of Errors(total 1):\n"))
}

// N 个条目中恰好 K 个失败：报告中恰好 K 条错误，N 个条目全部完成且不重复
func TestProperty_SchedulerAccountsForEveryItem(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)

	properties.Property("every item is reported exactly once", prop.ForAll(
		func(n, k, workers int) bool {
			if k > n {
				k = n
			}
			ids := itemIDs(n)
			failing := make(map[string]bool, k)
			panics := make(map[string]bool, k)
			for i, id := range ids[:k] {
				failing[id] = true
				panics[id] = i%2 == 0
			}

			s := NewScheduler(Config{Workers: workers})
			report := s.Run(context.Background(), ids, func(_ context.Context, id string) error {
				if failing[id] {
					if panics[id] {
						panic("item " + id)
					}
					return errors.New("item " + id)
				}
				return nil
			})

			if report.Completed() != n || len(report.Errors()) != k {
				t.Logf("n=%d k=%d completed=%d errors=%d", n, k, report.Completed(), len(report.Errors()))
				return false
			}
			seen := make(map[string]int, n)
			for _, res := range report.Results() {
				seen[res.ID]++
				if (res.Err != "") != failing[res.ID] {
					return false
				}
			}
			for _, id := range ids {
				if seen[id] != 1 {
					t.Logf("item %s reported %d times", id, seen[id])
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 40),
		gen.IntRange(0, 40),
		gen.IntRange(1, 8),
	))

	properties.TestingRun(t)
}
