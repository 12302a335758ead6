package phoneme

import (
	"strings"
	"sync"
)

// builtinCMU is a small excerpt of the CMU Pronouncing Dictionary covering the
// default practice vocabulary, the activation keyword and a few common words
// recognisers produce for them.
const builtinCMU = `;;; excerpt of cmudict-0.7b
AUTISM  AO1 T IH2 Z AH0 M
BEGIN  B IH0 G IH1 N
HELLO  HH AH0 L OW1
HELLO(2)  HH EH0 L OW1
HALLO  HH AA0 L OW1
HOLLOW  HH AA1 L OW0
YELLOW  Y EH1 L OW0
PYTHON  P AY1 TH AA0 N
RECOGNITION  R EH2 K AH0 G N IH1 SH AH0 N
SPEECH  S P IY1 CH
SPEACH  S P IY1 CH
PEACH  P IY1 CH
THERAPY  TH EH1 R AH0 P IY0
TERRAPIN  T EH1 R AH0 P IH0 N
`

var (
	builtinOnce sync.Once
	builtinDict *Memory
)

// Builtin returns the built-in seed dictionary. It is parsed once and shared.
func Builtin() *Memory {
	builtinOnce.Do(func() {
		m, _, err := ParseCMU(strings.NewReader(builtinCMU))
		if err != nil {
			panic("phoneme: parse builtin dictionary: " + err.Error())
		}
		builtinDict = m
	})
	return builtinDict
}
