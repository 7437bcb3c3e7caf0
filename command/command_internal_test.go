package command

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pkg.world.dev/world-engine/inspector/codec"
	"pkg.world.dev/world-engine/inspector/ecs"
)

func TestParse(t *testing.T) {
	t.Parallel()

	parent := ecs.Entity(9)
	tests := []struct {
		name    string
		method  string
		params  string
		want    Command
		wantErr error
	}{
		{
			name:   "toggle component",
			method: MethodToggleComponent,
			params: `{"entity":4294967297,"component":3}`,
			want:   ToggleComponent{Entity: 4294967297, Component: 3},
		},
		{
			name:   "remove component",
			method: MethodRemoveComponent,
			params: `{"entity":1,"component":2}`,
			want:   RemoveComponent{Entity: 1, Component: 2},
		},
		{
			name:   "despawn defaults to recursive",
			method: MethodDespawnEntity,
			params: `{"entity":1}`,
			want:   DespawnEntity{Entity: 1, Mode: DespawnRecursive},
		},
		{
			name:   "despawn descendants",
			method: MethodDespawnEntity,
			params: `{"entity":1,"kind":"descendants"}`,
			want:   DespawnEntity{Entity: 1, Mode: DespawnDescendants},
		},
		{
			name:   "toggle visibility",
			method: MethodToggleVisibility,
			params: `{"entity":5}`,
			want:   ToggleVisibility{Entity: 5},
		},
		{
			name:   "reparent to root",
			method: MethodReparentEntity,
			params: `{"entity":5,"parent":null}`,
			want:   ReparentEntity{Entity: 5},
		},
		{
			name:   "reparent",
			method: MethodReparentEntity,
			params: `{"entity":5,"parent":9}`,
			want:   ReparentEntity{Entity: 5, Parent: &parent},
		},
		{
			name:   "spawn without params",
			method: MethodSpawnEntity,
			params: ``,
			want:   SpawnEntity{},
		},
		{
			name:   "spawn under parent",
			method: MethodSpawnEntity,
			params: `{"parent":9}`,
			want:   SpawnEntity{Parent: &parent},
		},
		{name: "unknown method", method: "inspector/nope", params: `{}`, wantErr: ErrUnknownMethod},
		{name: "missing params", method: MethodToggleComponent, params: ``, wantErr: ErrInvalidParams},
		{name: "null params", method: MethodToggleComponent, params: `null`, wantErr: ErrInvalidParams},
		{name: "missing entity", method: MethodRemoveComponent, params: `{"component":1}`, wantErr: ErrInvalidParams},
		{name: "missing component", method: MethodRemoveComponent, params: `{"entity":1}`, wantErr: ErrInvalidParams},
		{name: "missing value", method: MethodInsertComponent, params: `{"entity":1,"component":1}`, wantErr: ErrInvalidParams},
		{name: "bad despawn kind", method: MethodDespawnEntity, params: `{"entity":1,"kind":"all"}`, wantErr: ErrInvalidParams},
		{name: "malformed", method: MethodToggleVisibility, params: `{"entity":`, wantErr: ErrInvalidParams},
		{name: "wrong type", method: MethodToggleVisibility, params: `{"entity":"one"}`, wantErr: ErrInvalidParams},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := Parse(tc.method, []byte(tc.params))
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParse_ValueIsKept(t *testing.T) {
	t.Parallel()

	cmd, err := Parse(MethodUpdateComponent, []byte(`{"entity":1,"component":2,"value":{"x":9007199254740993}}`))
	require.NoError(t, err)
	update, ok := cmd.(UpdateComponent)
	require.True(t, ok)
	assert.Equal(t, ecs.Entity(1), update.Entity)
	assert.Equal(t, ecs.ComponentID(2), update.Component)

	obj, ok := update.Value.(map[string]any)
	require.True(t, ok)
	x, err := codec.AsInt64(obj["x"])
	require.NoError(t, err)
	assert.Equal(t, int64(9007199254740993), x)
}

func TestCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want int
	}{
		{err: nil, want: 0},
		{err: eris.Wrap(ErrUnknownMethod, "x"), want: CodeMethodNotFound},
		{err: eris.Wrap(ErrInvalidParams, "x"), want: CodeInvalidParams},
		{err: eris.Wrap(ErrDeserialize, "x"), want: CodeInvalidParams},
		{err: eris.Wrap(ErrNotFound, "x"), want: CodeInvalidRequest},
		{err: eris.Wrap(ErrAlreadyExists, "x"), want: CodeInvalidRequest},
		{err: eris.Wrap(ErrUnsupported, "x"), want: CodeInvalidRequest},
		{err: eris.Wrap(ErrInvalidOperation, "x"), want: CodeInvalidRequest},
		{err: eris.Wrap(ErrInvariantViolation, "x"), want: CodeInternalError},
		{err: eris.New("boom"), want: CodeInternalError},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, Code(tc.err), "%v", tc.err)
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want error
	}{
		{err: eris.Wrap(ecs.ErrEntityNotFound, "e"), want: ErrNotFound},
		{err: eris.Wrap(ecs.ErrComponentNotOnEntity, "e"), want: ErrNotFound},
		{err: eris.Wrap(ecs.ErrComponentExists, "e"), want: ErrAlreadyExists},
		{err: eris.Wrap(codec.ErrDecode, "e"), want: ErrDeserialize},
		{err: eris.Wrap(ecs.ErrHierarchyCycle, "e"), want: ErrInvalidOperation},
		{err: eris.Wrap(ecs.ErrResourceKind, "e"), want: ErrUnsupported},
		{err: eris.Wrap(ErrInvariantViolation, "e"), want: ErrInvariantViolation},
	}
	for _, tc := range tests {
		assert.ErrorIs(t, classify(tc.err), tc.want)
	}
	assert.NoError(t, classify(nil))
}
