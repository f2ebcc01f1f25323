package data

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestFindPlayerToken(t *testing.T) {
	db := setUpDatabase(t)

	seen := time.Date(2023, 4, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		seedData *PlayerToken
		lookup   string
		want     *PlayerToken
	}{
		{
			name:   "name was never seen",
			lookup: "Jeb",
			want:   nil,
		},
		{
			name:     "name is registered",
			seedData: &PlayerToken{Name: "Bill", Token: "abc", FirstSeen: seen, LastSeen: seen},
			lookup:   "Bill",
			want:     &PlayerToken{Name: "Bill", Token: "abc", FirstSeen: seen, LastSeen: seen},
		},
		{
			name:     "lookup is exact",
			seedData: &PlayerToken{Name: "Bob", Token: "def", FirstSeen: seen, LastSeen: seen},
			lookup:   "bob",
			want:     nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.seedData != nil {
				if err := CreatePlayerToken(db, tt.seedData); err != nil {
					t.Fatalf("error seeding token: %v", err)
				}
				if tt.want != nil {
					tt.want.ID = tt.seedData.ID
				}
			}

			got, err := FindPlayerToken(db, tt.lookup)
			if err != nil {
				t.Fatalf("FindPlayerToken() error = %v", err)
			}
			if got != nil {
				got.FirstSeen = got.FirstSeen.UTC()
				got.LastSeen = got.LastSeen.UTC()
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("FindPlayerToken() mismatch; diff:\n%s", diff)
			}
		})
	}
}

func TestCreatePlayerToken_DuplicateName(t *testing.T) {
	db := setUpDatabase(t)

	if err := CreatePlayerToken(db, &PlayerToken{Name: "Val", Token: "1"}); err != nil {
		t.Fatalf("CreatePlayerToken() error = %v", err)
	}
	if err := CreatePlayerToken(db, &PlayerToken{Name: "Val", Token: "2"}); err == nil {
		t.Fatal("expected unique constraint violation for duplicate name")
	}
}

func TestTouchPlayerToken(t *testing.T) {
	db := setUpDatabase(t)

	if err := CreatePlayerToken(db, &PlayerToken{Name: "Val", Token: "1"}); err != nil {
		t.Fatalf("CreatePlayerToken() error = %v", err)
	}
	seen := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	if err := TouchPlayerToken(db, "Val", seen); err != nil {
		t.Fatalf("TouchPlayerToken() error = %v", err)
	}

	got, err := FindPlayerToken(db, "Val")
	if err != nil || got == nil {
		t.Fatalf("FindPlayerToken() = %v, %v", got, err)
	}
	if !got.LastSeen.Equal(seen) {
		t.Errorf("expected LastSeen %v, got %v", seen, got.LastSeen)
	}
}
