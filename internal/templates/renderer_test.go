package templates

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRenderer() *FSRenderer {
	return NewFSRenderer(fstest.MapFS{
		"welcome_subject.txt":  {Data: []byte("Welcome, {{.name}}")},
		"welcome_message.txt":  {Data: []byte("Hello {{.name}}")},
		"welcome_message.html": {Data: []byte("<p>Hello {{.name}}</p>")},
	})
}

func TestRender(t *testing.T) {
	ctx := context.Background()
	r := newTestRenderer()

	t.Run("renders a text template", func(t *testing.T) {
		out, err := r.Render(ctx, "welcome", SuffixText, map[string]interface{}{"name": "Ana"})
		require.NoError(t, err)
		assert.Equal(t, "Hello Ana", out)
	})

	t.Run("renders the subject template", func(t *testing.T) {
		out, err := r.Render(ctx, "welcome", SuffixSubject, map[string]interface{}{"name": "Ana"})
		require.NoError(t, err)
		assert.Equal(t, "Welcome, Ana", out)
	})

	t.Run("html templates get contextual escaping", func(t *testing.T) {
		out, err := r.Render(ctx, "welcome", SuffixHTML, map[string]interface{}{"name": "<b>Ana</b>"})
		require.NoError(t, err)
		assert.Equal(t, "<p>Hello &lt;b&gt;Ana&lt;/b&gt;</p>", out)
	})

	t.Run("text templates do not escape", func(t *testing.T) {
		out, err := r.Render(ctx, "welcome", SuffixText, map[string]interface{}{"name": "<b>Ana</b>"})
		require.NoError(t, err)
		assert.Equal(t, "Hello <b>Ana</b>", out)
	})

	t.Run("a missing template reports ErrTemplateMissing", func(t *testing.T) {
		_, err := r.Render(ctx, "goodbye", SuffixText, nil)
		assert.ErrorIs(t, err, ErrTemplateMissing)
	})
}
