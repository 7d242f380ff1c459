package featureflag

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFeatureFlag(t *testing.T) {
	f := New([]string{string(FlagCompactAfterRemove), " disable_node_mutations ", ""})

	t.Run("is set", func(t *testing.T) {
		require.True(t, f.IsSet(FlagCompactAfterRemove))
		require.True(t, f.IsSet(FlagDisableNodeMutations))
		require.False(t, f.IsSet(FlagDisableWebsocketQueries))
		require.Len(t, f, 2)
	})

	t.Run("run if enabled", func(t *testing.T) {
		var runCompact bool
		f.IfSet(FlagCompactAfterRemove, func() {
			runCompact = true
		})
		require.True(t, runCompact)

		var runValidate bool
		f.IfSet(FlagValidateAfterMutation, func() {
			runValidate = true
		})
		require.False(t, runValidate)
	})

	t.Run("run if disabled", func(t *testing.T) {
		var runCompact bool
		f.IfNotSet(FlagCompactAfterRemove, func() {
			runCompact = true
		})
		require.False(t, runCompact)

		var runValidate bool
		f.IfNotSet(FlagValidateAfterMutation, func() {
			runValidate = true
		})
		require.True(t, runValidate)
	})

	t.Run("strings", func(t *testing.T) {
		require.Equal(t, []string{"COMPACT_AFTER_REMOVE", "DISABLE_NODE_MUTATIONS"}, f.Strings())
		require.Empty(t, New(nil).Strings())
	})
}
