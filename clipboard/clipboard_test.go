package clipboard_test

import (
	"testing"

	atotto "github.com/atotto/clipboard"
	"github.com/fwojciec/codeshell/clipboard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystem_CopyRead(t *testing.T) {
	// Not parallel: the system clipboard is shared state.
	cb := clipboard.NewSystem()
	if atotto.Unsupported {
		assert.ErrorIs(t, cb.Copy("x"), clipboard.ErrUnsupported)
		return
	}

	content := "test clipboard content from codeshell"
	if err := cb.Copy(content); err != nil {
		t.Skipf("clipboard not usable here: %v", err)
	}

	got, err := cb.Read()
	require.NoError(t, err)
	assert.Equal(t, content, got)
}
