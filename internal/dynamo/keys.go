// Package dynamo provides the key layout and attribute helpers shared by the
// flashcard table repositories.
package dynamo

import (
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	// Primary key attributes.
	AttrPK = "pk"
	AttrSK = "sk"

	// Key prefixes.
	PrefixAccount   = "ACCOUNT#"
	PrefixFlashcard = "FLASHCARD#"
)

// AccountPK returns the partition key holding everything an account owns.
func AccountPK(accountID string) string {
	return PrefixAccount + accountID
}

// FlashcardSK returns the sort key of a flashcard record.
func FlashcardSK(flashcardID string) string {
	return PrefixFlashcard + flashcardID
}

// Key builds a primary key map.
func Key(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		AttrPK: &types.AttributeValueMemberS{Value: pk},
		AttrSK: &types.AttributeValueMemberS{Value: sk},
	}
}

// StringAttr returns a string attribute, or "" when it is missing or of
// another type.
func StringAttr(item map[string]types.AttributeValue, name string) string {
	if v, ok := item[name].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

// TimeAttr parses an RFC3339 string attribute. It returns the zero time when
// the attribute is missing or malformed.
func TimeAttr(item map[string]types.AttributeValue, name string) time.Time {
	if t, err := time.Parse(time.RFC3339, StringAttr(item, name)); err == nil {
		return t
	}
	return time.Time{}
}

// TimeValue formats t for storage.
func TimeValue(t time.Time) types.AttributeValue {
	return &types.AttributeValueMemberS{Value: t.UTC().Format(time.RFC3339)}
}
