package embedding

import (
	"hash/fnv"
	"strings"
)

// BERT special token ids.
const (
	clsTokenID = 101
	sepTokenID = 102
	vocabSize  = 30522
	// first id above the reserved and special range
	firstWordID = 1000
)

// ModelTokenizer produces padded BERT-style model inputs.
type ModelTokenizer interface {
	Encode(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64)
}

// HashTokenizer maps lower-cased words to stable ids by hashing. It has no
// vocabulary file, so ids do not match a trained WordPiece vocabulary.
type HashTokenizer struct{}

// Encode returns [CLS] words... [SEP] padded with zeros to maxTokens.
func (HashTokenizer) Encode(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	if maxTokens < 2 {
		maxTokens = 256
	}
	inputIDs = make([]int64, maxTokens)
	attentionMask = make([]int64, maxTokens)
	tokenTypeIDs = make([]int64, maxTokens)

	inputIDs[0], attentionMask[0] = clsTokenID, 1
	pos := 1
	for _, w := range strings.Fields(strings.ToLower(text)) {
		if pos >= maxTokens-1 {
			break
		}
		inputIDs[pos] = wordID(w)
		attentionMask[pos] = 1
		pos++
	}
	inputIDs[pos], attentionMask[pos] = sepTokenID, 1
	return inputIDs, attentionMask, tokenTypeIDs
}

func wordID(w string) int64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(w))
	return firstWordID + int64(h.Sum32()%(vocabSize-firstWordID))
}
