package digest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"reviewpulse/internal/insights"
	"reviewpulse/internal/session"

	"github.com/benbjohnson/clock"
)

type fakeKPIs struct {
	k   insights.KPIs
	err error
}

func (f fakeKPIs) KPIs() (insights.KPIs, error) {
	return f.k, f.err
}

type fakePoster struct {
	mu       sync.Mutex
	channels []string
	texts    []string
	err      error
}

func (p *fakePoster) PostEphemeral(channelID, userID, text string) error {
	return nil
}

func (p *fakePoster) PostMessage(channelID, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.channels = append(p.channels, channelID)
	p.texts = append(p.texts, text)
	return nil
}

func (p *fakePoster) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.texts)
}

func TestNewRejectsInvalidSchedule(t *testing.T) {
	if _, err := New("every morning", time.UTC, nil, fakeKPIs{}, &fakePoster{}, "C1"); err == nil {
		t.Fatal("expected parse error")
	}
	if _, err := New("0 9 * * * *", time.UTC, nil, fakeKPIs{}, &fakePoster{}, "C1"); err == nil {
		t.Fatal("six-field expressions are not accepted")
	}
}

func TestNextHonorsLocation(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	s, err := New("0 9 * * 1-5", loc, nil, fakeKPIs{}, &fakePoster{}, "C1")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// Saturday 2025-03-15 12:00 UTC, next weekday 9am in UTC+3 is Monday 06:00 UTC.
	got := s.Next(time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC))
	if want := time.Date(2025, 3, 17, 6, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("Next = %s, want %s", got, want)
	}
}

func TestRunOnce(t *testing.T) {
	poster := &fakePoster{}
	s, _ := New("0 9 * * *", time.UTC, nil, fakeKPIs{err: session.ErrNoData}, poster, "C1")
	if err := s.RunOnce(); err != nil || poster.count() != 0 {
		t.Fatalf("no data: err=%v posts=%d", err, poster.count())
	}

	s.source = fakeKPIs{k: insights.KPIs{Total: 4, SatisfactionRate: 75}}
	if err := s.RunOnce(); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if poster.channels[0] != "C1" || !strings.HasPrefix(poster.texts[0], "*Review digest*\n*Review KPIs* (4 reviews)") {
		t.Fatalf("unexpected post %q to %q", poster.texts[0], poster.channels[0])
	}

	poster.err = errors.New("channel_not_found")
	if err := s.RunOnce(); err == nil || !strings.Contains(err.Error(), "channel_not_found") {
		t.Fatalf("post error not surfaced: %v", err)
	}
	s.source = fakeKPIs{err: errors.New("boom")}
	if err := s.RunOnce(); err == nil {
		t.Fatal("source error not surfaced")
	}
}

func TestStartPostsOnSchedule(t *testing.T) {
	mock := clock.NewMock()
	mock.Set(time.Date(2025, 3, 10, 8, 59, 0, 0, time.UTC))
	poster := &fakePoster{}
	s, err := New("0 9 * * *", time.UTC, mock, fakeKPIs{k: insights.KPIs{Total: 1}}, poster, "C9")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	time.Sleep(10 * time.Millisecond)
	for i := 0; i < 3000 && poster.count() == 0; i++ {
		mock.Add(time.Minute)
	}
	if poster.count() != 1 {
		t.Fatalf("expected exactly one digest, got %d", poster.count())
	}
}
