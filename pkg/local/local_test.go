package local

import (
	"github.com/stretchr/testify/require"
	"testing"
)

func TestTextSet_Text(t *testing.T) {
	set := NewSet("default", NewTrans(Spa, "hola"), NewTrans(Eng, "hello"))
	require.Equal(t, "hola", set.Text(Spa))
	require.Equal(t, "hello", set.Text(Eng))
	require.Equal(t, "default", set.Text(Language("de")))
}

func TestParseLanguage(t *testing.T) {
	require.Equal(t, Spa, ParseLanguage("es", Eng))
	require.Equal(t, Spa, ParseLanguage(" ES-ar ", Eng))
	require.Equal(t, Eng, ParseLanguage("en_US", Spa))
	require.Equal(t, Spa, ParseLanguage("ru", Spa))
	require.Equal(t, Eng, ParseLanguage("", Eng))
}
