package channels

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeChannelRepo struct {
	nextID    int64
	channels  map[int64]Channel
	permitted map[int64][]int64
	members   map[[2]int64]*Member
	messages  map[int64]Message
	reactions map[[2]int64]map[string]bool
	authors   map[int64]string
}

func newFakeChannelRepo() *fakeChannelRepo {
	return &fakeChannelRepo{
		nextID:    1,
		channels:  make(map[int64]Channel),
		permitted: make(map[int64][]int64),
		members:   make(map[[2]int64]*Member),
		messages:  make(map[int64]Message),
		reactions: make(map[[2]int64]map[string]bool),
		authors:   make(map[int64]string),
	}
}

func (f *fakeChannelRepo) addChannel(kind Kind, permitted ...int64) Channel {
	c := Channel{ID: f.nextID, Name: "canal", Kind: kind, Active: true, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	f.nextID++
	f.channels[c.ID] = c
	f.permitted[c.ID] = permitted
	return c
}

func (f *fakeChannelRepo) GetChannel(_ context.Context, id int64) (Channel, error) {
	c, ok := f.channels[id]
	if !ok || !c.Active {
		return Channel{}, ErrNotFound
	}
	return c, nil
}

func (f *fakeChannelRepo) ListChannels(_ context.Context) ([]Channel, error) {
	var list []Channel
	for _, c := range f.channels {
		if c.Active {
			list = append(list, c)
		}
	}
	return list, nil
}

func (f *fakeChannelRepo) ListAccessRows(_ context.Context, userID int64) ([]AccessRow, error) {
	var rows []AccessRow
	for id, c := range f.channels {
		if !c.Active {
			continue
		}
		_, member := f.members[[2]int64{id, userID}]
		rows = append(rows, AccessRow{Channel: c, PermittedRoleIDs: f.permitted[id], IsMember: member})
	}
	return rows, nil
}

func (f *fakeChannelRepo) PermittedRoleIDs(_ context.Context, channelID int64) ([]int64, error) {
	return f.permitted[channelID], nil
}

func (f *fakeChannelRepo) IsMember(_ context.Context, channelID, userID int64) (bool, error) {
	_, ok := f.members[[2]int64{channelID, userID}]
	return ok, nil
}

func (f *fakeChannelRepo) AddMember(_ context.Context, m Member) error {
	key := [2]int64{m.ChannelID, m.UserID}
	if _, ok := f.members[key]; !ok {
		m.JoinedAt = time.Now()
		f.members[key] = &m
	}
	return nil
}

func (f *fakeChannelRepo) MarkRead(_ context.Context, channelID, userID int64) error {
	key := [2]int64{channelID, userID}
	if m, ok := f.members[key]; ok {
		m.LastReadAt = time.Now()
		return nil
	}
	f.members[key] = &Member{ChannelID: channelID, UserID: userID, Role: MemberRegular, JoinedAt: time.Now(), LastReadAt: time.Now()}
	return nil
}

func (f *fakeChannelRepo) UnreadCount(_ context.Context, channelID, userID int64) (int, error) {
	var cursor time.Time
	if m, ok := f.members[[2]int64{channelID, userID}]; ok {
		cursor = m.LastReadAt
	}
	count := 0
	for _, msg := range f.messages {
		if msg.ChannelID == channelID && msg.CreatedAt.After(cursor) {
			count++
		}
	}
	return count, nil
}

func (f *fakeChannelRepo) LastMessage(_ context.Context, channelID int64) (*Message, error) {
	var last *Message
	for id := range f.messages {
		msg := f.messages[id]
		if msg.ChannelID != channelID {
			continue
		}
		if last == nil || msg.CreatedAt.After(last.CreatedAt) {
			last = &msg
		}
	}
	return last, nil
}

func (f *fakeChannelRepo) ListMessages(_ context.Context, channelID int64, _ int) ([]MessageRecord, error) {
	var records []MessageRecord
	for id := range f.messages {
		msg := f.messages[id]
		if msg.ChannelID != channelID {
			continue
		}
		rec := MessageRecord{Message: msg, AuthorName: f.authors[msg.AuthorID]}
		for emoji := range f.reactionsFor(msg.ID) {
			rec.Reactions = append(rec.Reactions, ReactionCount{Emoji: emoji, Count: f.reactionCount(msg.ID, emoji)})
		}
		records = append(records, rec)
	}
	return records, nil
}

func (f *fakeChannelRepo) reactionsFor(messageID int64) map[string]bool {
	merged := make(map[string]bool)
	for key, set := range f.reactions {
		if key[0] != messageID {
			continue
		}
		for emoji, on := range set {
			if on {
				merged[emoji] = true
			}
		}
	}
	return merged
}

func (f *fakeChannelRepo) reactionCount(messageID int64, emoji string) int {
	count := 0
	for key, set := range f.reactions {
		if key[0] == messageID && set[emoji] {
			count++
		}
	}
	return count
}

func (f *fakeChannelRepo) GetMessage(_ context.Context, id int64) (Message, error) {
	msg, ok := f.messages[id]
	if !ok {
		return Message{}, ErrNotFound
	}
	return msg, nil
}

func (f *fakeChannelRepo) CreateMessage(_ context.Context, msg Message) (int64, error) {
	msg.ID = f.nextID
	f.nextID++
	msg.CreatedAt = time.Now()
	msg.UpdatedAt = msg.CreatedAt
	f.messages[msg.ID] = msg
	return msg.ID, nil
}

func (f *fakeChannelRepo) ToggleReaction(_ context.Context, messageID, userID int64, emoji string) (bool, error) {
	key := [2]int64{messageID, userID}
	if f.reactions[key] == nil {
		f.reactions[key] = make(map[string]bool)
	}
	f.reactions[key][emoji] = !f.reactions[key][emoji]
	return f.reactions[key][emoji], nil
}

func (f *fakeChannelRepo) DeactivateChannel(_ context.Context, id int64) (int64, error) {
	c, ok := f.channels[id]
	if !ok || !c.Active {
		return 0, nil
	}
	c.Active = false
	f.channels[id] = c
	return 1, nil
}

type fakeRolesPort struct {
	active map[int64][]int64
}

func (f *fakeRolesPort) ActiveRoleIDs(_ context.Context, userID int64) ([]int64, error) {
	return f.active[userID], nil
}

func newChannelService(repo *fakeChannelRepo, roles *fakeRolesPort) *Service {
	if roles == nil {
		roles = &fakeRolesPort{active: map[int64][]int64{}}
	}
	return NewService(repo, roles, nil, nil)
}

func TestCanAccessPublicChannel(t *testing.T) {
	repo := newFakeChannelRepo()
	c := repo.addChannel(KindPublic)
	svc := newChannelService(repo, nil)

	ok, err := svc.CanAccess(context.Background(), c.ID, 42)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestCanAccessPrivateChannelFlipsWithMembership(t *testing.T) {
	repo := newFakeChannelRepo()
	c := repo.addChannel(KindPrivate)
	svc := newChannelService(repo, nil)

	ok, err := svc.CanAccess(context.Background(), c.ID, 42)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, repo.AddMember(context.Background(), Member{ChannelID: c.ID, UserID: 42, Role: MemberRegular}))

	ok, err = svc.CanAccess(context.Background(), c.ID, 42)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestCanAccessRestrictedChannelFollowsActiveRoles(t *testing.T) {
	repo := newFakeChannelRepo()
	c := repo.addChannel(KindRestricted, 7)
	roles := &fakeRolesPort{active: map[int64][]int64{42: {7}}}
	svc := newChannelService(repo, roles)

	ok, err := svc.CanAccess(context.Background(), c.ID, 42)
	require.NoError(t, err)
	require.True(t, ok)

	// Toggling the role inactive removes access even though the
	// assignment row still exists.
	roles.active[42] = nil
	ok, err = svc.CanAccess(context.Background(), c.ID, 42)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPostMessageDeniedWithoutAccess(t *testing.T) {
	repo := newFakeChannelRepo()
	c := repo.addChannel(KindPrivate)
	svc := newChannelService(repo, nil)

	_, err := svc.PostMessage(context.Background(), c.ID, 42, PostMessageInput{Body: "oi"})
	require.ErrorIs(t, err, ErrAccessDenied)
	require.Empty(t, repo.messages)
}

func TestPostMessageRejectsEmptyBody(t *testing.T) {
	repo := newFakeChannelRepo()
	c := repo.addChannel(KindPublic)
	svc := newChannelService(repo, nil)

	_, err := svc.PostMessage(context.Background(), c.ID, 42, PostMessageInput{Body: "   "})
	require.ErrorIs(t, err, ErrValidation)
}

func TestPostMessageRejectsCrossChannelReply(t *testing.T) {
	repo := newFakeChannelRepo()
	a := repo.addChannel(KindPublic)
	b := repo.addChannel(KindPublic)
	svc := newChannelService(repo, nil)

	parent, err := svc.PostMessage(context.Background(), a.ID, 42, PostMessageInput{Body: "origem"})
	require.NoError(t, err)

	_, err = svc.PostMessage(context.Background(), b.ID, 42, PostMessageInput{Body: "resposta", ReplyTo: &parent.ID})
	require.ErrorIs(t, err, ErrReplyMismatch)
}

func TestPostMessageAdvancesReadCursor(t *testing.T) {
	repo := newFakeChannelRepo()
	c := repo.addChannel(KindPublic)
	svc := newChannelService(repo, nil)

	_, err := svc.PostMessage(context.Background(), c.ID, 42, PostMessageInput{Body: "primeira"})
	require.NoError(t, err)

	unread, err := repo.UnreadCount(context.Background(), c.ID, 42)
	require.NoError(t, err)
	require.Zero(t, unread)

	unread, err = repo.UnreadCount(context.Background(), c.ID, 99)
	require.NoError(t, err)
	require.Equal(t, 1, unread)
}

func TestVisibleChannelsFiltersByAccess(t *testing.T) {
	repo := newFakeChannelRepo()
	public := repo.addChannel(KindPublic)
	private := repo.addChannel(KindPrivate)
	restricted := repo.addChannel(KindRestricted, 7)
	roles := &fakeRolesPort{active: map[int64][]int64{42: {7}}}
	svc := newChannelService(repo, roles)

	summaries, err := svc.VisibleChannels(context.Background(), 42)
	require.NoError(t, err)

	ids := make(map[int64]bool)
	for _, s := range summaries {
		ids[s.Channel.ID] = true
	}
	require.True(t, ids[public.ID])
	require.False(t, ids[private.ID])
	require.True(t, ids[restricted.ID])
}

func TestReactToggles(t *testing.T) {
	repo := newFakeChannelRepo()
	c := repo.addChannel(KindPublic)
	svc := newChannelService(repo, nil)

	msg, err := svc.PostMessage(context.Background(), c.ID, 42, PostMessageInput{Body: "oi"})
	require.NoError(t, err)

	added, err := svc.React(context.Background(), c.ID, msg.ID, 99, "👍")
	require.NoError(t, err)
	require.True(t, added)

	added, err = svc.React(context.Background(), c.ID, msg.ID, 99, "👍")
	require.NoError(t, err)
	require.False(t, added)
}

func TestReactRejectsForeignMessage(t *testing.T) {
	repo := newFakeChannelRepo()
	a := repo.addChannel(KindPublic)
	b := repo.addChannel(KindPublic)
	svc := newChannelService(repo, nil)

	msg, err := svc.PostMessage(context.Background(), a.ID, 42, PostMessageInput{Body: "oi"})
	require.NoError(t, err)

	_, err = svc.React(context.Background(), b.ID, msg.ID, 42, "👍")
	require.ErrorIs(t, err, ErrNotFound)
}
