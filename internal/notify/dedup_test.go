package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/bookswap/bookswap/internal/model"
)

func TestGuardDuplicate(t *testing.T) {
	now := time.Now()
	existing := []model.Notification{
		{
			ID:         "m1",
			Sender:     "alice@example.com",
			Preview:    "hey",
			OccurredAt: now,
			Kind:       model.KindMessage,
		},
	}

	g := Guard{Window: 5 * time.Second}

	tests := []struct {
		name      string
		candidate model.Notification
		want      bool
	}{
		{
			name: "same sender and body inside window",
			candidate: model.Notification{
				ID: "m2", Sender: "alice@example.com", Preview: "hey",
				OccurredAt: now.Add(3 * time.Second), Kind: model.KindMessage,
			},
			want: true,
		},
		{
			name: "inside window but earlier",
			candidate: model.Notification{
				ID: "m2", Sender: "alice@example.com", Preview: "hey",
				OccurredAt: now.Add(-4 * time.Second), Kind: model.KindMessage,
			},
			want: true,
		},
		{
			name: "exactly on the window boundary",
			candidate: model.Notification{
				ID: "m2", Sender: "alice@example.com", Preview: "hey",
				OccurredAt: now.Add(5 * time.Second), Kind: model.KindMessage,
			},
			want: true,
		},
		{
			name: "outside window",
			candidate: model.Notification{
				ID: "m2", Sender: "alice@example.com", Preview: "hey",
				OccurredAt: now.Add(6 * time.Second), Kind: model.KindMessage,
			},
			want: false,
		},
		{
			name: "different body",
			candidate: model.Notification{
				ID: "m2", Sender: "alice@example.com", Preview: "hi",
				OccurredAt: now.Add(time.Second), Kind: model.KindMessage,
			},
			want: false,
		},
		{
			name: "different sender",
			candidate: model.Notification{
				ID: "m2", Sender: "bob@example.com", Preview: "hey",
				OccurredAt: now.Add(time.Second), Kind: model.KindMessage,
			},
			want: false,
		},
		{
			name: "non-message kinds are exempt",
			candidate: model.Notification{
				ID: "w1", Sender: "alice@example.com", Preview: "hey",
				OccurredAt: now.Add(time.Second), Kind: model.KindWishlistMatch,
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, g.Duplicate(existing, tt.candidate))
		})
	}
}

func TestGuardZeroWindowDisablesProximityRule(t *testing.T) {
	now := time.Now()
	existing := []model.Notification{
		{ID: "m1", Sender: "alice@example.com", Preview: "hey", OccurredAt: now, Kind: model.KindMessage},
	}

	g := Guard{}
	candidate := model.Notification{
		ID: "m2", Sender: "alice@example.com", Preview: "hey",
		OccurredAt: now, Kind: model.KindMessage,
	}
	assert.False(t, g.Duplicate(existing, candidate))
}
