package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const articleHTML = `<!DOCTYPE html>
<html lang="ja">
<head><meta charset="utf-8"><title>猫の一日</title></head>
<body>
<article>
<h1>猫の一日</h1>
<p>朝、<ruby>猫<rt>ねこ</rt></ruby>は窓の近くで静かに寝ていた。太陽の光がとても暖かかった。</p>
<p>昼になると、猫は庭に出て小さな虫を追いかけた。隣の犬はそれを不思議そうに見ていた。</p>
<p>夜、家族が帰ってくると、猫は玄関まで走って迎えに行った。みんなは笑顔で猫をなでた。</p>
</article>
</body>
</html>`

const cliDict = `{"words":[{"id":"1","kanji":[{"text":"猫"}],"kana":[{"text":"ねこ"}],"sense":[{"gloss":[{"text":"cat"}],"partOfSpeech":["n"]}]}]}`

// run executes the root command with args and returns its stdout.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestCLIVersion(t *testing.T) {
	out, err := run(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "readerer dev")
}

func TestCLIOffline(t *testing.T) {
	if testing.Short() {
		t.Skip("loads the kagome dictionary")
	}
	tmp := t.TempDir()
	dbPath := filepath.Join(tmp, "readerer.db")
	dictPath := filepath.Join(tmp, "jmdict.json")
	require.NoError(t, os.WriteFile(dictPath, []byte(cliDict), 0o644))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(articleHTML))
	}))
	defer srv.Close()

	common := []string{"--db.path", dbPath}

	out, err := run(t, "犬が走る。鳥が鳴く。", append([]string{"add", "--source", "stdin"}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Added 2 sentences.")

	out, err = run(t, "", append([]string{"add-url", srv.URL}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Title: 猫の一日")
	assert.Contains(t, out, "Added ")

	out, err = run(t, "", append([]string{"count"}, common...)...)
	require.NoError(t, err)
	assert.Equal(t, "0\n", out)

	out, err = run(t, "", append([]string{"import-dict", dictPath}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Updated definitions for 1 words.")

	out, err = run(t, "", append([]string{"retokenize"}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Retokenized")
}

func TestCLIAddFile(t *testing.T) {
	if testing.Short() {
		t.Skip("loads the kagome dictionary")
	}
	tmp := t.TempDir()
	textPath := filepath.Join(tmp, "story.txt")
	require.NoError(t, os.WriteFile(textPath, []byte("猫が走る。\n猫が走る。\n"), 0o644))

	out, err := run(t, "", "add", textPath, "--db.path", filepath.Join(tmp, "readerer.db"), "--db.driver", "sqlite")
	require.NoError(t, err)
	assert.Contains(t, out, "Added 2 sentences.")
}

func TestCLIInvalidConfig(t *testing.T) {
	_, err := run(t, "", "count", "--db.driver", "postgres", "--db.path", filepath.Join(t.TempDir(), "x.db"))
	assert.ErrorContains(t, err, "invalid config")
}

func TestCLIImportDictWithoutDictionary(t *testing.T) {
	if testing.Short() {
		t.Skip("loads the kagome dictionary")
	}
	_, err := run(t, "", "import-dict", "--db.path", filepath.Join(t.TempDir(), "x.db"))
	assert.ErrorContains(t, err, "no dictionary")
}
