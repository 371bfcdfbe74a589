// Package classify turns free-text CRM stages into a deal status and, for open
// deals, a forecast bucket.
//
// Precedence is fixed: won > lost > closed > commit > best > pipeline. Keyword
// checks run on whole words only, so "recommitment" never reads as "commit".
package classify

import (
	"strings"
	"unicode"

	"github.com/okian/verdict/internal/domain/model"
)

// Status is the lifecycle state derived from stage text.
type Status string

// Deal statuses.
const (
	StatusOpen Status = "open"
	StatusWon  Status = "won"
	StatusLost Status = "lost"
	// StatusClosed marks stage text that says closed without saying won or
	// lost. Such deals count toward no open bucket and no won/lost total.
	StatusClosed Status = "closed"
)

// Classification is the outcome of Classify. Bucket is empty unless Status is open.
type Classification struct {
	Status Status       `json:"status"`
	Bucket model.Bucket `json:"bucket,omitempty"`
}

// Label returns the bucket for open deals and the status otherwise.
func (c Classification) Label() string {
	if c.Status == StatusOpen {
		return string(c.Bucket)
	}
	return string(c.Status)
}

// Normalize lowercases stage, collapses every run of non-letters into a single
// space and pads both ends with a space.
func Normalize(stage string) string {
	var b strings.Builder
	b.Grow(len(stage) + 2)
	b.WriteByte(' ')
	space := true
	for _, r := range stage {
		if unicode.IsLetter(r) {
			b.WriteRune(unicode.ToLower(r))
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	if !space {
		b.WriteByte(' ')
	}
	return b.String()
}

func hasWord(normalized string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(normalized, " "+w+" ") {
			return true
		}
	}
	return false
}

// Classify maps raw stage text to a Classification. Blank or unknown text is
// an open pipeline deal.
func Classify(stage string) Classification {
	n := Normalize(stage)
	switch {
	case hasWord(n, "won"):
		return Classification{Status: StatusWon}
	case hasWord(n, "lost", "loss"):
		return Classification{Status: StatusLost}
	case hasWord(n, "closed"):
		return Classification{Status: StatusClosed}
	case hasWord(n, "commit"):
		return Classification{Status: StatusOpen, Bucket: model.BucketCommit}
	case hasWord(n, "best"):
		return Classification{Status: StatusOpen, Bucket: model.BucketBestCase}
	default:
		return Classification{Status: StatusOpen, Bucket: model.BucketPipeline}
	}
}
