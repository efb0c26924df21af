package lifecycle

import (
	"testing"
	"time"

	"github.com/hetansh2220/Pulse/internal/models"
)

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func TestClassify(t *testing.T) {
	end := base.Add(1000 * time.Minute)

	tests := []struct {
		name     string
		now      time.Time
		end      time.Time
		resolved bool
		want     models.Status
	}{
		{"inside buffer", base.Add(1 * time.Minute), end, false, models.StatusUpcoming},
		{"after buffer", base.Add(16 * time.Minute), end, false, models.StatusActive},
		{"past end", base.Add(2000 * time.Minute), end, false, models.StatusEnded},
		{"resolved past end", base.Add(2000 * time.Minute), end, true, models.StatusResolved},
		{"buffer boundary", base.Add(15 * time.Minute), end, false, models.StatusActive},
		{"just before buffer boundary", base.Add(15*time.Minute - time.Nanosecond), end, false, models.StatusUpcoming},
		{"at creation", base, end, false, models.StatusUpcoming},
		{"end boundary", end, end, false, models.StatusEnded},
		{"just before end", end.Add(-time.Nanosecond), end, false, models.StatusActive},
		{"resolved during buffer", base.Add(1 * time.Minute), end, true, models.StatusResolved},
		{"buffer wins over end", base.Add(5 * time.Minute), base.Add(2 * time.Minute), false, models.StatusUpcoming},
		{"clock before creation", base.Add(-1 * time.Hour), end, false, models.StatusUpcoming},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := models.LifecycleInput{CreationTime: base, EndTime: tt.end, Resolved: tt.resolved}
			if got := Classify(in, tt.now); got != tt.want {
				t.Errorf("Classify() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestBufferRemaining(t *testing.T) {
	tests := []struct {
		now  time.Time
		want time.Duration
	}{
		{base, 15 * time.Minute},
		{base.Add(10 * time.Minute), 5 * time.Minute},
		{base.Add(15 * time.Minute), 0},
		{base.Add(2 * time.Hour), 0},
		{base.Add(-5 * time.Minute), 20 * time.Minute},
	}

	for _, tt := range tests {
		if got := BufferRemaining(base, tt.now); got != tt.want {
			t.Errorf("BufferRemaining(now=%v) = %v, want %v", tt.now.Sub(base), got, tt.want)
		}
	}
}

func TestFreshMarketIsUpcoming(t *testing.T) {
	in := models.LifecycleInput{CreationTime: base, EndTime: base.Add(time.Hour)}
	if got := Classify(in, base); got != models.StatusUpcoming {
		t.Errorf("fresh market classified as %s", got)
	}
}

func TestIsTradable(t *testing.T) {
	for _, s := range models.Statuses {
		want := s == models.StatusActive
		if got := IsTradable(s); got != want {
			t.Errorf("IsTradable(%s) = %v, want %v", s, got, want)
		}
	}
	if IsTradable(models.Status("bogus")) {
		t.Error("unknown status must not be tradable")
	}
}

func TestFilterByStatus(t *testing.T) {
	now := base.Add(24 * time.Hour)
	markets := []models.Market{
		{ID: "fresh", CreationTime: now.Add(-5 * time.Minute), EndTime: now.Add(time.Hour)},
		{ID: "live", CreationTime: now.Add(-time.Hour), EndTime: now.Add(time.Hour)},
		{ID: "over", CreationTime: now.Add(-2 * time.Hour), EndTime: now.Add(-time.Hour)},
		{ID: "done", CreationTime: now.Add(-2 * time.Hour), EndTime: now.Add(-time.Hour), Resolved: true},
	}

	tests := []struct {
		status models.Status
		want   []string
	}{
		{models.StatusUpcoming, []string{"fresh"}},
		{models.StatusActive, []string{"live"}},
		{models.StatusEnded, []string{"over"}},
		{models.StatusResolved, []string{"done"}},
		{"", []string{"fresh", "live", "over", "done"}},
	}

	for _, tt := range tests {
		got := FilterByStatus(markets, tt.status, now)
		if len(got) != len(tt.want) {
			t.Fatalf("FilterByStatus(%q) returned %d markets, want %d", tt.status, len(got), len(tt.want))
		}
		for i := range got {
			if got[i].ID != tt.want[i] {
				t.Errorf("FilterByStatus(%q)[%d] = %s, want %s", tt.status, i, got[i].ID, tt.want[i])
			}
		}
	}

	counts := Counts(markets, now)
	for _, s := range models.Statuses {
		if counts[s] != 1 {
			t.Errorf("Counts[%s] = %d, want 1", s, counts[s])
		}
	}
}
