package game

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/samber/lo"
)

// WordEntry is one playable answer with an optional hint.
type WordEntry struct {
	Word string `json:"word"`
	Hint string `json:"hint"`
}

// wordListFile is the JSON structure of the bundled word list.
type wordListFile struct {
	Words []WordEntry `json:"words"`
}

// WordBank holds the local answer pool for standalone mode, where guesses
// are graded locally instead of by the scorekeeper.
type WordBank struct {
	entries []WordEntry
	wordSet map[string]struct{}
	hintMap map[string]string
}

// LoadWordBank reads and validates a word list file, skipping entries that
// are not exactly WordLength letters.
func LoadWordBank(path string) (*WordBank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var wl wordListFile
	if err := json.Unmarshal(data, &wl); err != nil {
		return nil, fmt.Errorf("parse word list %s: %w", path, err)
	}
	return NewWordBank(wl.Words), nil
}

// NewWordBank builds a bank from entries, normalizing words to uppercase.
func NewWordBank(entries []WordEntry) *WordBank {
	valid := lo.FilterMap(entries, func(entry WordEntry, _ int) (WordEntry, bool) {
		word := strings.ToUpper(strings.TrimSpace(entry.Word))
		if len(word) != WordLength {
			return WordEntry{}, false
		}
		return WordEntry{Word: word, Hint: entry.Hint}, true
	})

	bank := &WordBank{
		entries: valid,
		wordSet: make(map[string]struct{}, len(valid)),
	}
	lo.ForEach(valid, func(entry WordEntry, _ int) {
		bank.wordSet[entry.Word] = struct{}{}
	})
	bank.hintMap = lo.Associate(valid, func(entry WordEntry) (string, string) {
		return entry.Word, entry.Hint
	})
	return bank
}

// Size returns the number of playable answers.
func (b *WordBank) Size() int {
	return len(b.entries)
}

// Contains reports whether word is a playable answer.
func (b *WordBank) Contains(word string) bool {
	_, ok := b.wordSet[strings.ToUpper(word)]
	return ok
}

// Hint returns the hint for a word, or empty if unknown.
func (b *WordBank) Hint(word string) string {
	return b.hintMap[strings.ToUpper(word)]
}

// RandomAnswer picks a uniformly random answer from the bank.
func (b *WordBank) RandomAnswer() (string, error) {
	if len(b.entries) == 0 {
		return "", fmt.Errorf("word bank is empty")
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(b.entries))))
	if err != nil {
		return b.entries[0].Word, nil
	}
	return b.entries[n.Int64()].Word, nil
}

// GradeGuess evaluates a guess against an answer letter by letter. Correct
// positions are consumed first so that duplicate letters in the guess are
// only marked contained while unmatched copies remain in the answer.
// Both words must be WordLength uppercase letters.
func GradeGuess(guess, answer string) GradedMove {
	result := make(GradedMove, WordLength)
	answerCopy := []rune(answer)

	for i := 0; i < WordLength; i++ {
		if guess[i] == answer[i] {
			result[i] = GradedLetter{Letter: string(guess[i]), Grade: GradeCorrect}
			answerCopy[i] = ' '
		}
	}

	for i := 0; i < WordLength; i++ {
		if result[i].Grade != "" {
			continue
		}
		result[i].Letter = string(guess[i])

		found := false
		for j := 0; j < WordLength; j++ {
			if answerCopy[j] == rune(guess[i]) {
				result[i].Grade = GradeContained
				answerCopy[j] = ' '
				found = true
				break
			}
		}
		if !found {
			result[i].Grade = GradeWrong
		}
	}

	return result
}
