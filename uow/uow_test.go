package uow

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goentity/entitymap/metadata"
	"github.com/goentity/entitymap/ormerr"
	"github.com/goentity/entitymap/recordstate"
	"github.com/goentity/entitymap/relation"
)

type Profile struct {
	metadata.Meta `entity:"table=profiles,alias=profile"`
	ID            int64  `entity:"pk,column=id,generated"`
	Bio           string `entity:"column=bio"`
}

type Tag struct {
	metadata.Meta `entity:"table=tags,alias=tag"`
	ID            int64  `entity:"pk,column=id,generated"`
	Name          string `entity:"column=name"`
}

type User struct {
	metadata.Meta `entity:"table=users,alias=user"`
	ID            int64        `entity:"pk,column=id,generated"`
	Username      string       `entity:"column=username"`
	ProfileID     *int64       `entity:"column=profile_id"`
	Profile       relation.Box `entity:"relation=one_to_one,target=Profile,fetch=lazy,cascade=persist|remove,join_column=profile_id,join_nullable"`
	Tags          relation.Box `entity:"relation=many_to_many,target=Tag,fetch=lazy,join_table=user_tags,join_table_owner_fk=user_id,join_table_inverse_fk=tag_id"`
}

type A struct {
	metadata.Meta `entity:"table=as,alias=a"`
	ID            int64        `entity:"pk,column=id,generated"`
	BID           *int64       `entity:"column=b_id"`
	B             relation.Box `entity:"relation=many_to_one,target=B,fetch=lazy,join_column=b_id"`
}

type B struct {
	metadata.Meta `entity:"table=bs,alias=b"`
	ID            int64        `entity:"pk,column=id,generated"`
	AID           *int64       `entity:"column=a_id"`
	A             relation.Box `entity:"relation=many_to_one,target=A,fetch=lazy,join_column=a_id"`
}

func newRegistry(t *testing.T, types ...any) *metadata.Registry {
	t.Helper()
	r := metadata.NewRegistry()
	for _, v := range types {
		r.Register(reflect.TypeOf(v))
	}
	return r
}

type call struct {
	op   string
	kind string
}

type fakeExecutor struct {
	calls []call
}

func (f *fakeExecutor) Insert(d *metadata.Descriptor, record any) error {
	f.calls = append(f.calls, call{"insert", d.TypeID})
	return nil
}
func (f *fakeExecutor) Update(d *metadata.Descriptor, record any) error {
	f.calls = append(f.calls, call{"update", d.TypeID})
	return nil
}
func (f *fakeExecutor) Delete(d *metadata.Descriptor, record any) error {
	f.calls = append(f.calls, call{"delete", d.TypeID})
	return nil
}
func (f *fakeExecutor) InsertJoinRow(jt *metadata.JoinTable, ownerID, targetID any) error {
	f.calls = append(f.calls, call{"join-insert", jt.Name})
	return nil
}
func (f *fakeExecutor) DeleteJoinRow(jt *metadata.JoinTable, ownerID, targetID any) error {
	f.calls = append(f.calls, call{"join-delete", jt.Name})
	return nil
}

func TestScheduleInsertCascadesOnlyLoadedRelations(t *testing.T) {
	r := newRegistry(t, User{}, Profile{}, Tag{})
	state := recordstate.New()
	u := New(r, state)

	profile := &Profile{Bio: "hi"}
	user := &User{Username: "neo"}
	metadata.SetRelationBox(user, "Profile", relation.NewLoaded(profile))
	// Tags left Unloaded: must not be walked.

	require.NoError(t, u.ScheduleInsert(user))

	exec := &fakeExecutor{}
	require.NoError(t, u.Commit(exec))

	require.Len(t, exec.calls, 2)
	assert.Equal(t, call{"insert", "Profile"}, exec.calls[0], "owning side must insert after its dependency")
	assert.Equal(t, call{"insert", "User"}, exec.calls[1])
}

func TestScheduleInsertIsIdempotent(t *testing.T) {
	r := newRegistry(t, User{}, Profile{}, Tag{})
	state := recordstate.New()
	u := New(r, state)
	user := &User{Username: "neo"}

	require.NoError(t, u.ScheduleInsert(user))
	require.NoError(t, u.ScheduleInsert(user))

	exec := &fakeExecutor{}
	require.NoError(t, u.Commit(exec))
	assert.Len(t, exec.calls, 1)
}

func TestScheduleDeleteReversesInsertOrderAndSchedulesJoinRemovals(t *testing.T) {
	r := newRegistry(t, User{}, Profile{}, Tag{})
	state := recordstate.New()
	u := New(r, state)

	profile := &Profile{ID: 1, Bio: "hi"}
	tag := &Tag{ID: 5, Name: "go"}
	id := int64(1)
	user := &User{ID: 1, Username: "neo", ProfileID: &id}
	metadata.SetRelationBox(user, "Profile", relation.NewLoaded(profile))
	metadata.SetRelationBox(user, "Tags", relation.NewLoaded([]any{tag}))
	// Simulate records already loaded from the database: ScheduleDelete
	// is a no-op on anything never persisted.
	state.MarkPersisted(user, nil)
	state.MarkPersisted(profile, nil)
	state.MarkPersisted(tag, nil)

	require.NoError(t, u.ScheduleDelete(user))

	exec := &fakeExecutor{}
	require.NoError(t, u.Commit(exec))

	require.GreaterOrEqual(t, len(exec.calls), 3)
	assert.Equal(t, call{"delete", "User"}, exec.calls[0], "dependent must delete before what it depends on")
	assert.Equal(t, call{"delete", "Profile"}, exec.calls[1])
	assert.Equal(t, call{"join-delete", "user_tags"}, exec.calls[2])
}

func TestScheduleUpdateIsNoOpUnlessPersistedAndDirty(t *testing.T) {
	r := newRegistry(t, User{}, Profile{}, Tag{})
	state := recordstate.New()
	u := New(r, state)

	user := &User{ID: 1, Username: "neo"}
	require.NoError(t, u.ScheduleUpdate(user), "never-persisted record must not be scheduled")

	exec := &fakeExecutor{}
	require.NoError(t, u.Commit(exec))
	assert.Empty(t, exec.calls)

	state.MarkPersisted(user, map[string]any{"id": int64(1), "username": "neo", "profile_id": nil})
	require.NoError(t, u.ScheduleUpdate(user), "persisted but unchanged record must not be scheduled")
	require.NoError(t, u.Commit(exec))
	assert.Empty(t, exec.calls)

	user.Username = "trinity"
	require.NoError(t, u.ScheduleUpdate(user))
	require.NoError(t, u.Commit(exec))
	require.Len(t, exec.calls, 1)
	assert.Equal(t, call{"update", "User"}, exec.calls[0])
}

func TestScheduleJoinInsertRunsOnCommit(t *testing.T) {
	r := newRegistry(t, User{}, Profile{}, Tag{})
	state := recordstate.New()
	u := New(r, state)
	jt := &metadata.JoinTable{Name: "user_tags", OwnerFK: "user_id", InverseFK: "tag_id"}
	u.ScheduleJoinInsert(jt, int64(1), int64(2))

	exec := &fakeExecutor{}
	require.NoError(t, u.Commit(exec))
	require.Len(t, exec.calls, 1)
	assert.Equal(t, call{"join-insert", "user_tags"}, exec.calls[0])
}

func TestCommitResetsSchedules(t *testing.T) {
	r := newRegistry(t, User{}, Profile{}, Tag{})
	state := recordstate.New()
	u := New(r, state)
	require.NoError(t, u.ScheduleInsert(&User{Username: "neo"}))

	exec := &fakeExecutor{}
	require.NoError(t, u.Commit(exec))
	require.NoError(t, u.Commit(exec))
	assert.Len(t, exec.calls, 1, "second commit with nothing newly scheduled should do nothing")
}

func TestMutualOwningCycleFailsWithCascadeCycle(t *testing.T) {
	r := newRegistry(t, A{}, B{})
	state := recordstate.New()
	u := New(r, state)

	require.NoError(t, u.ScheduleInsert(&A{}))
	require.NoError(t, u.ScheduleInsert(&B{}))

	exec := &fakeExecutor{}
	err := u.Commit(exec)
	require.Error(t, err)
	var cycleErr *ormerr.CascadeCycle
	assert.ErrorAs(t, err, &cycleErr)
}
