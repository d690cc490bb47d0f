package publisher

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// continuationPrefix marks every chunk after the first of a segmented post.
const continuationPrefix = "->"

// splitStatuses segments text into numbered statuses under the size limit by
// greedy word wrapping. The limit counts characters, not bytes, so all
// lengths are rune counts. Each chunk is rendered as "{n}. {prefix} {chunk}";
// the fit check reserves room for the number, the ". " separator, the
// prefix and the joining spaces before admitting the next word, so no
// rendered chunk reaches the limit. A single word longer than the limit
// still produces an oversized chunk; the service rejects it as
// unprocessable and the post degrades to a partial publish.
func splitStatuses(text string, limit int) []string {
	var chunks []string
	number := 1
	prefix := ""
	chunk := ""
	for _, word := range strings.Split(text, " ") {
		if len(strconv.Itoa(number))+2+len(prefix)+1+utf8.RuneCountInString(chunk)+1+utf8.RuneCountInString(word) < limit {
			chunk = chunk + " " + word
			continue
		}
		chunks = append(chunks, renderChunk(number, prefix, chunk))
		chunk = word
		prefix = continuationPrefix
		number++
	}
	if chunk != "" {
		chunks = append(chunks, renderChunk(number, prefix, chunk))
	}
	return chunks
}

func renderChunk(number int, prefix, chunk string) string {
	return fmt.Sprintf("%d. %s %s", number, prefix, chunk)
}
