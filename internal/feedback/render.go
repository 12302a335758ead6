// Package feedback turns evaluation outcomes into messages and presents them
// to the learner.
//
// [Render] builds the message text. A [Sink] presents it; presentation is
// blocking so that no new speech is consumed while feedback is still being
// printed or spoken. Implementations:
//
//   - [Console]: prints "🔊 message".
//   - [Speaker]: synthesises the message and plays it to completion.
//   - [Multi]: presents to several sinks in order, then waits a settle delay.
//   - [Gated]: marks a [Gate] closed for the whole presentation so the caller
//     can drop microphone audio captured meanwhile.
package feedback

import (
	"context"
	"fmt"
	"strings"

	"github.com/sayright/sayright/internal/evaluate"
	"github.com/sayright/sayright/internal/vocab"
)

// Sink presents a feedback message. Present blocks until the message has been
// fully presented.
type Sink interface {
	Present(ctx context.Context, message string) error
}

// Render builds the learner-facing message for o. v supplies the word list
// for [evaluate.Unrecognized].
func Render(o evaluate.Outcome, v *vocab.Vocabulary) string {
	switch o.Kind {
	case evaluate.Correct:
		return fmt.Sprintf("Great job! You said '%s' correctly.", o.Target)
	case evaluate.Close:
		if o.Hint == "" {
			return fmt.Sprintf("Almost! Try saying '%s' again.", o.Target)
		}
		return fmt.Sprintf("Almost! Try saying '%s' like this: %s.", o.Target, o.Hint)
	case evaluate.Mispronounced:
		if len(o.Expected) == 0 {
			return fmt.Sprintf("Not quite. Let's try '%s' again.", o.Target)
		}
		return fmt.Sprintf("Not quite. The correct pronunciation of '%s' is: %s.", o.Target, o.Expected)
	default:
		var words []string
		if v != nil {
			words = v.Words()
		}
		return fmt.Sprintf("I didn't recognize that word. Try one of: %s.", strings.Join(words, ", "))
	}
}
