package validation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gatherhub/gatherhub/internal/model"
)

type fakePhotos map[string]string

func (f fakePhotos) Resolve(ctx context.Context, key string) (string, error) {
	if url, ok := f[key]; ok {
		return url, nil
	}
	return "", model.ErrNotFound
}

func TestValidate(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	start := now.Add(2 * time.Hour)
	end := start.Add(3 * time.Hour)
	loc := &model.Coordinate{Lat: 0.1, Lng: 0.2}

	offline := Proposal{
		Title:     "Picnic at the lake",
		Content:   "Bring food.",
		Location:  loc,
		Address:   "Near Null Island",
		StartTime: start,
		EndTime:   end,
		NewChain:  true,
	}
	online := Proposal{
		Title:      "Remote hangout",
		Content:    "See you online.",
		OnlineOnly: true,
		Link:       "https://example.com/meet",
		HasParent:  true,
		StartTime:  start,
		EndTime:    end,
		NewChain:   true,
	}

	tests := []struct {
		name   string
		mutate func(p Proposal) Proposal
		base   Proposal
		want   error
	}{
		{name: "valid offline", base: offline},
		{name: "valid online", base: online},
		{
			name:   "valid offline with address only",
			base:   offline,
			mutate: func(p Proposal) Proposal { p.Location = nil; return p },
		},
		{
			name:   "valid offline with location only",
			base:   offline,
			mutate: func(p Proposal) Proposal { p.Address = ""; return p },
		},
		{
			name:   "missing title",
			base:   offline,
			mutate: func(p Proposal) Proposal { p.Title = ""; return p },
			want:   ErrMissingTitle,
		},
		{
			name:   "missing content",
			base:   offline,
			mutate: func(p Proposal) Proposal { p.Content = ""; return p },
			want:   ErrMissingContent,
		},
		{
			name:   "photo not found",
			base:   offline,
			mutate: func(p Proposal) Proposal { p.PhotoKey = "nonexistent"; return p },
			want:   ErrPhotoNotFound,
		},
		{
			name:   "resolvable photo passes",
			base:   offline,
			mutate: func(p Proposal) Proposal { p.PhotoKey = "known"; return p },
		},
		{
			name:   "online without link",
			base:   online,
			mutate: func(p Proposal) Proposal { p.Link = ""; return p },
			want:   ErrOnlineMissingLink,
		},
		{
			name:   "online without parent",
			base:   online,
			mutate: func(p Proposal) Proposal { p.HasParent = false; return p },
			want:   ErrOnlineMissingParent,
		},
		{
			name:   "offline with link",
			base:   offline,
			mutate: func(p Proposal) Proposal { p.Link = "https://example.com/meet"; return p },
			want:   ErrOfflineHasLink,
		},
		{
			name:   "offline without address or location",
			base:   offline,
			mutate: func(p Proposal) Proposal { p.Location = nil; p.Address = ""; return p },
			want:   ErrMissingAddressOrLoc,
		},
		{
			name:   "ends before starts",
			base:   online,
			mutate: func(p Proposal) Proposal { p.StartTime, p.EndTime = p.EndTime, p.StartTime; return p },
			want:   ErrEndsBeforeStarts,
		},
		{
			name:   "zero duration",
			base:   online,
			mutate: func(p Proposal) Proposal { p.EndTime = p.StartTime; return p },
			want:   ErrEndsBeforeStarts,
		},
		{
			name: "creation in the past",
			base: online,
			mutate: func(p Proposal) Proposal {
				p.StartTime = now.Add(-2 * time.Hour)
				p.EndTime = now.Add(time.Hour)
				return p
			},
			want: ErrInPast,
		},
		{
			name: "reschedule may move start into the past",
			base: online,
			mutate: func(p Proposal) Proposal {
				p.NewChain = false
				p.StartTime = now.Add(-2 * time.Hour)
				p.EndTime = now.Add(time.Hour)
				return p
			},
		},
		{
			name: "too far in the future",
			base: online,
			mutate: func(p Proposal) Proposal {
				p.StartTime = now.Add(500 * 24 * time.Hour)
				p.EndTime = p.StartTime.Add(3 * time.Hour)
				return p
			},
			want: ErrTooFarInFuture,
		},
		{
			name: "too long",
			base: online,
			mutate: func(p Proposal) Proposal {
				p.EndTime = p.StartTime.Add(100 * 24 * time.Hour)
				return p
			},
			want: ErrTooLong,
		},
		{
			name: "title violation reported before time violation",
			base: offline,
			mutate: func(p Proposal) Proposal {
				p.Title = ""
				p.EndTime = p.StartTime
				return p
			},
			want: ErrMissingTitle,
		},
	}

	engine := NewEngine(Limits{}, fakePhotos{"known": "https://cdn.example.com/known.jpg"})

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			p := test.base
			if test.mutate != nil {
				p = test.mutate(p)
			}
			err := engine.Validate(context.Background(), p, now)
			if !errors.Is(err, test.want) {
				t.Errorf("Validate: got %v, want %v", err, test.want)
			}
		})
	}
}

func TestValidateCustomLimits(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	engine := NewEngine(Limits{Horizon: 48 * time.Hour, MaxDuration: time.Hour}, fakePhotos{})

	p := Proposal{
		Title:     "Short notice",
		Content:   "content",
		Address:   "somewhere",
		StartTime: now.Add(72 * time.Hour),
		EndTime:   now.Add(73 * time.Hour),
		NewChain:  true,
	}
	if err := engine.Validate(context.Background(), p, now); !errors.Is(err, ErrTooFarInFuture) {
		t.Errorf("horizon: got %v, want %v", err, ErrTooFarInFuture)
	}

	p.StartTime = now.Add(time.Hour)
	p.EndTime = p.StartTime.Add(2 * time.Hour)
	if err := engine.Validate(context.Background(), p, now); !errors.Is(err, ErrTooLong) {
		t.Errorf("duration: got %v, want %v", err, ErrTooLong)
	}
}
