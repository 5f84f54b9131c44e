package lexicon

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedDefaultDecodes(t *testing.T) {
	lx, err := decode(defaultYAML)
	require.NoError(t, err)

	assert.NotEmpty(t, lx.CommonWords)
	assert.NotEmpty(t, lx.Topics)
	assert.NotEmpty(t, lx.SupportTerms)
	assert.NotEmpty(t, lx.BlockedTerms)
	assert.NotEmpty(t, lx.Intents)
	assert.NotEmpty(t, lx.Emoji)
	assert.NotEmpty(t, lx.Domains)
	assert.NotEmpty(t, lx.SmartCompletions)
	assert.NotEmpty(t, lx.SmartReplies)
	assert.NotEmpty(t, lx.Phrases)

	var replies []string
	for _, r := range lx.SmartReplies {
		replies = append(replies, r.Replies...)
	}
	assert.Contains(t, replies, "Nasıl yardımcı olabilirim?")
	assert.Contains(t, replies, "Sipariş numaranız nedir?")
}

func TestParseWithoutPriorDefault(t *testing.T) {
	lx, err := Parse([]byte("blocked_terms: [zeytin]\n"))
	require.NoError(t, err)
	assert.True(t, lx.IsBlocked("zeytin ağacı"))
	assert.True(t, lx.IsCommon("merhaba"), "missing sections come from the built-in lexicon")
}

func TestDefault(t *testing.T) {
	lx := Default()
	require.NotNil(t, lx)
	assert.Same(t, lx, Default())

	assert.True(t, lx.IsCommon("Merhaba"))
	assert.False(t, lx.IsCommon("ansiklopedi"))

	assert.True(t, lx.IsSupportTerm("sipariş takibi"))
	assert.False(t, lx.IsSupportTerm("güzel hava"))

	assert.True(t, lx.IsBlocked("Turkcell hattı"))
	assert.True(t, lx.IsBlocked("türk telekom"))
	assert.False(t, lx.IsBlocked("turkcellci"))

	assert.Equal(t, "customer_service", lx.DetectTopic("kargom nerede, sipariş verdim"))
	assert.Equal(t, "", lx.DetectTopic("hava çok güzel"))
	assert.True(t, lx.TopicMatches("sales", "indirim kodu"))

	assert.Equal(t, []string{"greeting", "help"}, lx.DetectIntents("Merhaba, yardım lazım"))
	assert.Contains(t, lx.DetectIntents("kargo geldi mi"), "question")

	assert.Equal(t, []string{"İyiyim, teşekkürler", "Teşekkürler, siz nasılsınız?", "Her şey yolunda"},
		lx.Replies("Selam, nasılsın?"))
	assert.Nil(t, lx.Replies("hava durumu"))

	assert.Contains(t, lx.SmartCompletions["me"], "merhaba")
	assert.Contains(t, lx.Domains["customer_service"]["kargo"], "kargo takibi")
	assert.NotEmpty(t, lx.Emoji["merhaba"])
}

func TestLoadOverridesSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lex.yaml")
	require.NoError(t, os.WriteFile(path, []byte("common_words: [zeytin]\n"), 0644))

	lx, err := Load(path)
	require.NoError(t, err)
	assert.True(t, lx.IsCommon("zeytin"))
	assert.False(t, lx.IsCommon("merhaba"))
	assert.True(t, lx.IsSupportTerm("kargo"), "missing sections keep defaults")

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	def, err := Load("")
	require.NoError(t, err)
	assert.Same(t, Default(), def)
}

func TestParseInvalid(t *testing.T) {
	_, err := Parse([]byte("common_words: {"))
	assert.Error(t, err)
}
