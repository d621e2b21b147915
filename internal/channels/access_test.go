package channels

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name      string
		kind      Kind
		permitted []int64
		snap      AccessSnapshot
		want      bool
	}{
		{
			name: "public admits everyone",
			kind: KindPublic,
			snap: AccessSnapshot{},
			want: true,
		},
		{
			name: "public admits user with no roles",
			kind: KindPublic,
			snap: AccessSnapshot{ActiveRoleIDs: SnapshotRoles(nil)},
			want: true,
		},
		{
			name: "private admits member",
			kind: KindPrivate,
			snap: AccessSnapshot{IsMember: true},
			want: true,
		},
		{
			name: "private refuses non-member",
			kind: KindPrivate,
			snap: AccessSnapshot{IsMember: false},
			want: false,
		},
		{
			name:      "restricted admits active role holder",
			kind:      KindRestricted,
			permitted: []int64{3, 7},
			snap:      AccessSnapshot{ActiveRoleIDs: SnapshotRoles([]int64{7})},
			want:      true,
		},
		{
			name:      "restricted refuses disjoint role sets",
			kind:      KindRestricted,
			permitted: []int64{3, 7},
			snap:      AccessSnapshot{ActiveRoleIDs: SnapshotRoles([]int64{9})},
			want:      false,
		},
		{
			name:      "restricted ignores membership",
			kind:      KindRestricted,
			permitted: []int64{3},
			snap:      AccessSnapshot{IsMember: true},
			want:      false,
		},
		{
			name:      "restricted with empty permitted set refuses all",
			kind:      KindRestricted,
			permitted: nil,
			snap:      AccessSnapshot{ActiveRoleIDs: SnapshotRoles([]int64{1, 2, 3})},
			want:      false,
		},
		{
			name: "unknown kind fails closed",
			kind: Kind("secret"),
			snap: AccessSnapshot{IsMember: true, ActiveRoleIDs: SnapshotRoles([]int64{1})},
			want: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Evaluate(tc.kind, tc.permitted, tc.snap))
		})
	}
}
