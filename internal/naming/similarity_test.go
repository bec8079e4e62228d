package naming

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var similarityCorpus = []string{
	"One Piece",
	"One Peace",
	"Naruto",
	"Naruto (TV)",
	"Naruto Shippuden",
	"Boku no Hero Academia",
	"My Hero Academia",
	"Shingeki no Kyojin",
	"Attack on Titan",
	"",
	"!!!",
	"進撃の巨人",
	"Fullmetal Alchemist: Brotherhood",
}

func TestSimilarity_Reflexive(t *testing.T) {
	for _, title := range similarityCorpus {
		assert.Equal(t, 1.0, Similarity(title, title), "sim(%q, %q)", title, title)
	}
}

func TestSimilarity_Symmetric(t *testing.T) {
	for _, a := range similarityCorpus {
		for _, b := range similarityCorpus {
			assert.Equal(t, Similarity(a, b), Similarity(b, a), "sim(%q, %q)", a, b)
		}
	}
}

func TestSimilarity_Bounded(t *testing.T) {
	for _, a := range similarityCorpus {
		for _, b := range similarityCorpus {
			s := Similarity(a, b)
			assert.GreaterOrEqual(t, s, 0.0)
			assert.LessOrEqual(t, s, 1.0)
		}
	}
}

func TestSimilarity_Typo(t *testing.T) {
	s := Similarity("One Piece", "One Peace")
	assert.Greater(t, s, 0.7)
	assert.Less(t, s, 1.0)
}

func TestSimilarity_EqualAfterNormalization(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("Naruto", "Naruto (TV)"))
	assert.Equal(t, 1.0, Similarity("Pokémon", "POKEMON"))
}

func TestSimilarity_ReorderedTokensNotExact(t *testing.T) {
	s := Similarity("Hero Academia My", "My Hero Academia")
	assert.Less(t, s, 1.0)
	assert.Greater(t, s, 0.9)
}

func TestSimilarity_Unrelated(t *testing.T) {
	assert.Less(t, Similarity("Naruto", "Attack on Titan"), 0.5)
}

func TestBestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, BestSimilarity(
		[]string{"Boku no Hero Academia", "My Hero Academia"},
		[]string{"My Hero Academia"},
	))
	assert.Equal(t, 0.0, BestSimilarity(nil, []string{"x"}))
}

func TestSharesSignificantToken(t *testing.T) {
	assert.True(t, SharesSignificantToken("Boku no Hero Academia", "My Hero Academia"))
	assert.False(t, SharesSignificantToken("Kimi no Na wa", "Your Name"))
	assert.False(t, SharesSignificantToken("The Garden of Words", "Of the Sea"))
}
