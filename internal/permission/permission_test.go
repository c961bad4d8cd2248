package permission

import (
	"context"
	"testing"

	"github.com/gatherhub/gatherhub/internal/model"
)

type fakeHierarchy struct {
	moderators map[string]bool // kind/ownerID/userID
}

func (f fakeHierarchy) IsModerator(ctx context.Context, kind, ownerID, userID string) (bool, error) {
	return f.moderators[kind+"/"+ownerID+"/"+userID], nil
}

func (f fakeHierarchy) CommunityExists(ctx context.Context, id string) (bool, error) {
	return true, nil
}
func (f fakeHierarchy) GroupExists(ctx context.Context, id string) (bool, error) { return true, nil }
func (f fakeHierarchy) UserExists(ctx context.Context, id string) (bool, error)  { return true, nil }

func TestResolve(t *testing.T) {
	t.Parallel()

	h := fakeHierarchy{moderators: map[string]bool{
		"community/c1/mod":   true,
		"group/g1/mod":       true,
		"community/c1/alice": false,
	}}

	tests := []struct {
		name      string
		owner     model.Owner
		creator   string
		organizer bool
		viewer    string
		want      Decision
	}{
		{
			name:    "creator of individually owned chain can edit",
			owner:   model.OwnedByUser("alice"),
			creator: "alice",
			viewer:  "alice",
			want:    Decision{CanEdit: true},
		},
		{
			name:    "third party gets nothing on individually owned chain",
			owner:   model.OwnedByUser("alice"),
			creator: "alice",
			viewer:  "carol",
			want:    Decision{},
		},
		{
			name:    "moderator of unrelated community gets nothing on individually owned chain",
			owner:   model.OwnedByUser("alice"),
			creator: "alice",
			viewer:  "mod",
			want:    Decision{},
		},
		{
			name:      "organizer can edit without owning",
			owner:     model.OwnedByUser("alice"),
			creator:   "alice",
			organizer: true,
			viewer:    "bob",
			want:      Decision{CanEdit: true},
		},
		{
			name:    "owning individual can edit even when not the creator",
			owner:   model.OwnedByUser("bob"),
			creator: "alice",
			viewer:  "bob",
			want:    Decision{CanEdit: true},
		},
		{
			name:    "community moderator can moderate but not edit",
			owner:   model.OwnedByCommunity("c1"),
			creator: "alice",
			viewer:  "mod",
			want:    Decision{CanModerate: true},
		},
		{
			name:      "community moderator who is also organizer gets both",
			owner:     model.OwnedByCommunity("c1"),
			creator:   "alice",
			organizer: true,
			viewer:    "mod",
			want:      Decision{CanEdit: true, CanModerate: true},
		},
		{
			name:    "creator of community owned chain edits but does not moderate",
			owner:   model.OwnedByCommunity("c1"),
			creator: "alice",
			viewer:  "alice",
			want:    Decision{CanEdit: true},
		},
		{
			name:    "group moderator can moderate group owned chain",
			owner:   model.OwnedByGroup("g1"),
			creator: "alice",
			viewer:  "mod",
			want:    Decision{CanModerate: true},
		},
		{
			name:    "non-moderator gets nothing on community owned chain",
			owner:   model.OwnedByCommunity("c1"),
			creator: "alice",
			viewer:  "carol",
			want:    Decision{},
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			got, err := Resolve(context.Background(), test.owner, test.creator, test.organizer, test.viewer, h)
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if got != test.want {
				t.Errorf("Resolve: got %+v, want %+v", got, test.want)
			}
		})
	}
}
