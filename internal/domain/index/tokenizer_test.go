package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize_CamelCase(t *testing.T) {
	assert.Equal(t, []string{"get", "user", "token", "getusertoken"}, Tokenize("getUserToken"))
}

func TestTokenize_DottedName(t *testing.T) {
	assert.Equal(t, []string{"app", "post"}, Tokenize("app.post"))
}

func TestTokenize_Hyphenated(t *testing.T) {
	assert.Equal(t, []string{"tree", "sitter"}, Tokenize("tree-sitter"))
}

func TestTokenize_Unicode(t *testing.T) {
	assert.Equal(t, []string{"résumé", "café"}, Tokenize("résumé, café"))
}

func TestTokenize_ShortToken(t *testing.T) {
	assert.Nil(t, Tokenize("a"))
}

func TestTokenize_Uppercase(t *testing.T) {
	assert.Equal(t, []string{"login"}, Tokenize("LOGIN"))
}

func TestTokenize_Empty(t *testing.T) {
	assert.Nil(t, Tokenize(""))
	assert.Nil(t, Tokenize("  \n\t !!"))
}

func TestTokenize_Underscored(t *testing.T) {
	assert.Equal(t, []string{"get", "user", "by", "id"}, Tokenize("get_user_by_id"))
}

func TestTokenize_APIKey(t *testing.T) {
	assert.Equal(t, []string{"api", "key", "apikey"}, Tokenize("APIKey"))
}

func TestTokenize_NumbersPreserved(t *testing.T) {
	result := Tokenize("handler404Response")
	assert.Contains(t, result, "handler")
	assert.Contains(t, result, "404")
	assert.Contains(t, result, "response")
	assert.Contains(t, result, "handler404response")
}

func TestTokenize_Sentence(t *testing.T) {
	assert.Equal(t, []string{"hello", "world"}, Tokenize("Hello, world!"))
}

func TestTerms_Dedup(t *testing.T) {
	assert.Equal(t, []string{"hello", "world"}, Terms("hello world HELLO hello"))
}
