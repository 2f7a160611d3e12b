package ignore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatcher_LastRuleWins(t *testing.T) {
	m := NewMatcher([]string{
		"# generated sources never embedded",
		"gen/**",
		"!gen/keep/Api.java",
		"*.tmp",
		"",
	})

	cases := []struct {
		path     string
		isDir    bool
		excluded bool
	}{
		{path: "gen/com/Foo.java", excluded: true},
		{path: "gen/keep/Api.java", excluded: false},
		{path: "com/example/cache.tmp", excluded: true},
		{path: "com/example/Hello.java", excluded: false},
		{path: "./gen/com/Bar.java", excluded: true},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.excluded, m.Match(tc.path, tc.isDir), tc.path)
	}
}

func TestMatcher_DirectoryRules(t *testing.T) {
	m := NewMatcher([]string{
		"build/",
		"!build/include/",
		"/rooted/",
	})

	assert.True(t, m.Match("build/out/file.js", false))
	assert.True(t, m.Match("nested/build", true))
	assert.False(t, m.Match("nested/build", false))
	assert.False(t, m.Match("build/include/file.js", false))
	assert.True(t, m.Match("rooted/a.js", false))
	assert.False(t, m.Match("x/rooted/a.js", false))
}

func TestMatcher_QuotesRegexCharacters(t *testing.T) {
	m := NewMatcher([]string{"a+b(1).java"})
	assert.True(t, m.Match("pkg/a+b(1).java", false))
	assert.False(t, m.Match("pkg/aab1.java", false))
}

func TestDiscoveryMatcher(t *testing.T) {
	m := NewDiscoveryMatcher([]string{"tmp/", "!src/"})

	assert.True(t, m.Match(".git/HEAD", false))
	assert.True(t, m.Match("deploy/hello/ABC.symbolMap", false))
	assert.True(t, m.Match("tmp/0/sourceMap0.json", false))
	assert.False(t, m.Match("src/0/sourceMap0.json", false))
	assert.False(t, m.Match("0/sourceMap0.json", false))
}

func TestEmptyMatcher(t *testing.T) {
	var m *Matcher
	assert.True(t, m.Empty())
	assert.False(t, m.Match("anything", false))
	assert.True(t, NewMatcher(nil).Empty())
}
