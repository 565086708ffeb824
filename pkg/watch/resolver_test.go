package watch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fakeClock advances its wall clock by the slept duration and returns
// immediately, recording every sleep. Safe for concurrent use.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	if d > 0 {
		c.now = c.now.Add(d)
	}
	return nil
}

func (c *fakeClock) recorded() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, len(c.sleeps))
	copy(out, c.sleeps)
	return out
}

// scriptFetcher replays a fixed outcome sequence per app id, repeating the
// last outcome once the script runs out. Safe for concurrent use.
type scriptFetcher struct {
	mu      sync.Mutex
	scripts map[string][]Outcome
	calls   map[string]int
}

func newScriptFetcher() *scriptFetcher {
	return &scriptFetcher{
		scripts: make(map[string][]Outcome),
		calls:   make(map[string]int),
	}
}

func (f *scriptFetcher) set(appID string, outcomes ...Outcome) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts[appID] = outcomes
}

func (f *scriptFetcher) Fetch(_ context.Context, item Item) Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.calls[item.AppID]
	f.calls[item.AppID] = n + 1
	script := f.scripts[item.AppID]
	if len(script) == 0 {
		return Transient(fmt.Errorf("no script for %s", item.AppID))
	}
	if n >= len(script) {
		return script[len(script)-1]
	}
	return script[n]
}

func (f *scriptFetcher) count(appID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[appID]
}

func newTestResolver(f Fetcher, policy RetryPolicy, clock Clock) *Resolver {
	return &Resolver{
		fetcher: f,
		policy:  policy.withDefaults(),
		clock:   clock,
		logger:  zerolog.Nop(),
	}
}

func durationsEqual(got, want []time.Duration) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestNewResolverRequiresFetcher(t *testing.T) {
	_, err := NewResolver(nil, DefaultRetryPolicy(), zerolog.Nop())
	if err == nil {
		t.Fatal("Expected error for nil fetcher")
	}
}

func TestNewResolverFillsPolicyDefaults(t *testing.T) {
	r, err := NewResolver(newScriptFetcher(), RetryPolicy{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewResolver failed: %v", err)
	}
	if r.policy != DefaultRetryPolicy() {
		t.Errorf("Expected zero policy to become %+v, got %+v", DefaultRetryPolicy(), r.policy)
	}
}

func TestResolveValueFirstTry(t *testing.T) {
	fetcher := newScriptFetcher()
	fetcher.set("app-1", Value(42))
	clock := newFakeClock()
	r := newTestResolver(fetcher, DefaultRetryPolicy(), clock)

	res := r.Resolve(context.Background(), Item{AppID: "app-1", BotID: "bot-1"})

	if !res.Success {
		t.Fatalf("Expected success, got %+v", res)
	}
	if !res.HasCount || res.Count != 42 {
		t.Errorf("Expected count 42, got HasCount=%v Count=%d", res.HasCount, res.Count)
	}
	if res.Attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", res.Attempts)
	}
	if res.Elapsed != 0 {
		t.Errorf("Expected zero elapsed without sleeps, got %s", res.Elapsed)
	}
	if len(clock.recorded()) != 0 {
		t.Errorf("Expected no sleeps, got %v", clock.recorded())
	}
}

func TestResolveNoValueIsTerminal(t *testing.T) {
	fetcher := newScriptFetcher()
	fetcher.set("app-1", Transient(errors.New("boom")), NoValue())
	clock := newFakeClock()
	r := newTestResolver(fetcher, DefaultRetryPolicy(), clock)

	res := r.Resolve(context.Background(), Item{AppID: "app-1"})

	if !res.Success {
		t.Fatalf("Expected no-value to terminate the loop normally, got %+v", res)
	}
	if res.HasCount {
		t.Error("Expected no count for a no-value outcome")
	}
	if res.Attempts != 2 {
		t.Errorf("Expected 2 attempts, got %d", res.Attempts)
	}
}

func TestResolveBackoffDoubles(t *testing.T) {
	fetcher := newScriptFetcher()
	fetcher.set("app-1",
		Transient(errors.New("one")),
		Transient(errors.New("two")),
		Value(7),
	)
	clock := newFakeClock()
	r := newTestResolver(fetcher, DefaultRetryPolicy(), clock)

	res := r.Resolve(context.Background(), Item{AppID: "app-1"})

	if !res.Success || res.Count != 7 {
		t.Fatalf("Expected success with count 7, got %+v", res)
	}
	want := []time.Duration{1 * time.Second, 2 * time.Second}
	if got := clock.recorded(); !durationsEqual(got, want) {
		t.Errorf("Expected sleeps %v, got %v", want, got)
	}
	if res.Elapsed != 3*time.Second {
		t.Errorf("Expected elapsed to include backoff sleeps (3s), got %s", res.Elapsed)
	}
}

func TestResolveExhaustsRetryBudget(t *testing.T) {
	fetcher := newScriptFetcher()
	fetcher.set("app-1", Transient(errors.New("always down")))
	clock := newFakeClock()
	r := newTestResolver(fetcher, DefaultRetryPolicy(), clock)

	res := r.Resolve(context.Background(), Item{AppID: "app-1"})

	if res.Success {
		t.Fatalf("Expected failure after exhaustion, got %+v", res)
	}
	if !errors.Is(res.Err, ErrRetriesExhausted) {
		t.Errorf("Expected ErrRetriesExhausted, got %v", res.Err)
	}
	if got := fetcher.count("app-1"); got != 5 {
		t.Errorf("Expected exactly 5 fetch attempts, got %d", got)
	}
	want := []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}
	if got := clock.recorded(); !durationsEqual(got, want) {
		t.Errorf("Expected sleeps %v, got %v", want, got)
	}
	if res.Elapsed != 15*time.Second {
		t.Errorf("Expected elapsed 15s, got %s", res.Elapsed)
	}
}

func TestResolveHonorsRetryAfterHint(t *testing.T) {
	// The current backoff delay is 2s when the rate limit arrives; the
	// server hint must win regardless.
	fetcher := newScriptFetcher()
	fetcher.set("app-1",
		Transient(errors.New("blip")),
		RateLimitedFor(5*time.Second),
		Value(3),
	)
	clock := newFakeClock()
	r := newTestResolver(fetcher, DefaultRetryPolicy(), clock)

	res := r.Resolve(context.Background(), Item{AppID: "app-1"})

	if !res.Success || res.Count != 3 {
		t.Fatalf("Expected success with count 3, got %+v", res)
	}
	want := []time.Duration{1 * time.Second, 5 * time.Second}
	if got := clock.recorded(); !durationsEqual(got, want) {
		t.Errorf("Expected sleeps %v, got %v", want, got)
	}
}

func TestResolveRateLimitDoesNotConsumeBudget(t *testing.T) {
	fetcher := newScriptFetcher()
	fetcher.set("app-1",
		RateLimited(),
		RateLimited(),
		RateLimited(),
		Value(9),
	)
	clock := newFakeClock()
	// One transient error would already exhaust this policy.
	policy := RetryPolicy{MaxAttempts: 1, InitialDelay: time.Second, MaxDelay: time.Minute, Multiplier: 2.0}
	r := newTestResolver(fetcher, policy, clock)

	res := r.Resolve(context.Background(), Item{AppID: "app-1"})

	if !res.Success || res.Count != 9 {
		t.Fatalf("Expected rate limits to leave the budget untouched, got %+v", res)
	}
	if got := fetcher.count("app-1"); got != 4 {
		t.Errorf("Expected 4 fetch attempts, got %d", got)
	}
	// Without a hint the loop waits the current delay, which keeps doubling.
	want := []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}
	if got := clock.recorded(); !durationsEqual(got, want) {
		t.Errorf("Expected sleeps %v, got %v", want, got)
	}
}

func TestResolveDelayCap(t *testing.T) {
	fetcher := newScriptFetcher()
	fetcher.set("app-1", Transient(errors.New("down")))
	clock := newFakeClock()
	policy := RetryPolicy{MaxAttempts: 6, InitialDelay: time.Second, MaxDelay: 4 * time.Second, Multiplier: 2.0}
	r := newTestResolver(fetcher, policy, clock)

	res := r.Resolve(context.Background(), Item{AppID: "app-1"})

	if res.Success {
		t.Fatalf("Expected failure, got %+v", res)
	}
	want := []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second, 4 * time.Second, 4 * time.Second}
	if got := clock.recorded(); !durationsEqual(got, want) {
		t.Errorf("Expected capped sleeps %v, got %v", want, got)
	}
}

func TestResolveUnboundedPolicy(t *testing.T) {
	fetcher := newScriptFetcher()
	outcomes := make([]Outcome, 0, 9)
	for i := 0; i < 8; i++ {
		outcomes = append(outcomes, Transient(errors.New("flaky")))
	}
	outcomes = append(outcomes, Value(11))
	fetcher.set("app-1", outcomes...)
	clock := newFakeClock()
	policy := RetryPolicy{MaxAttempts: -1, InitialDelay: time.Second, MaxDelay: time.Minute, Multiplier: 2.0}
	r := newTestResolver(fetcher, policy, clock)

	res := r.Resolve(context.Background(), Item{AppID: "app-1"})

	if !res.Success || res.Count != 11 {
		t.Fatalf("Expected unbounded policy to outlast 8 failures, got %+v", res)
	}
	if res.Attempts != 9 {
		t.Errorf("Expected 9 attempts, got %d", res.Attempts)
	}
}

func TestResolveCancelledContext(t *testing.T) {
	fetcher := newScriptFetcher()
	fetcher.set("app-1", Transient(errors.New("down")))
	clock := newFakeClock()
	r := newTestResolver(fetcher, DefaultRetryPolicy(), clock)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := r.Resolve(ctx, Item{AppID: "app-1"})

	if res.Success {
		t.Fatalf("Expected failure for a cancelled context, got %+v", res)
	}
	if !errors.Is(res.Err, ErrRunCancelled) {
		t.Errorf("Expected ErrRunCancelled, got %v", res.Err)
	}
}

func TestResolveKeepsNoStateBetweenCalls(t *testing.T) {
	// Two consecutive resolutions of the same item must each start with a
	// fresh attempt counter and a fresh backoff delay.
	fetcher := newScriptFetcher()
	fetcher.set("app-1",
		Transient(errors.New("first call blip")),
		Value(5),
		Transient(errors.New("second call blip")),
		Value(6),
	)
	clock := newFakeClock()
	r := newTestResolver(fetcher, DefaultRetryPolicy(), clock)
	item := Item{AppID: "app-1", BotID: "bot-1"}

	first := r.Resolve(context.Background(), item)
	second := r.Resolve(context.Background(), item)

	if !first.Success || first.Count != 5 {
		t.Fatalf("Expected first call to succeed with 5, got %+v", first)
	}
	if !second.Success || second.Count != 6 {
		t.Fatalf("Expected second call to succeed with 6, got %+v", second)
	}
	if first.Attempts != 2 || second.Attempts != 2 {
		t.Errorf("Expected both calls to take 2 attempts, got %d and %d", first.Attempts, second.Attempts)
	}
	// Both backoff sleeps used the initial delay, proving the reset.
	want := []time.Duration{1 * time.Second, 1 * time.Second}
	if got := clock.recorded(); !durationsEqual(got, want) {
		t.Errorf("Expected sleeps %v, got %v", want, got)
	}
}

func TestRetryPolicyNext(t *testing.T) {
	tests := []struct {
		name   string
		policy RetryPolicy
		delay  time.Duration
		want   time.Duration
	}{
		{
			name:   "doubles",
			policy: RetryPolicy{MaxDelay: time.Minute, Multiplier: 2.0},
			delay:  time.Second,
			want:   2 * time.Second,
		},
		{
			name:   "caps_at_max",
			policy: RetryPolicy{MaxDelay: 3 * time.Second, Multiplier: 2.0},
			delay:  2 * time.Second,
			want:   3 * time.Second,
		},
		{
			name:   "negative_max_uncapped",
			policy: RetryPolicy{MaxDelay: -1, Multiplier: 2.0},
			delay:  time.Minute,
			want:   2 * time.Minute,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.policy.next(tt.delay); got != tt.want {
				t.Errorf("next(%s) = %s, want %s", tt.delay, got, tt.want)
			}
		})
	}
}
