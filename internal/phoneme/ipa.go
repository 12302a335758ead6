package phoneme

import "strings"

// arpabetIPA maps ARPAbet symbols (without stress) to IPA.
var arpabetIPA = map[string]string{
	"AA": "ɑ", "AE": "æ", "AH": "ʌ", "AO": "ɔ", "AW": "aʊ", "AY": "aɪ",
	"B": "b", "CH": "tʃ", "D": "d", "DH": "ð", "EH": "ɛ", "ER": "ɝ",
	"EY": "eɪ", "F": "f", "G": "ɡ", "HH": "h", "IH": "ɪ", "IY": "i",
	"JH": "dʒ", "K": "k", "L": "l", "M": "m", "N": "n", "NG": "ŋ",
	"OW": "oʊ", "OY": "ɔɪ", "P": "p", "R": "ɹ", "S": "s", "SH": "ʃ",
	"T": "t", "TH": "θ", "UH": "ʊ", "UW": "u", "V": "v", "W": "w",
	"Y": "j", "Z": "z", "ZH": "ʒ",
}

// IPA renders seq as an IPA transcription wrapped in slashes, e.g. "/hʌloʊ/".
// Unknown symbols are skipped.
func IPA(seq Sequence) string {
	var b strings.Builder
	b.WriteByte('/')
	for _, p := range seq {
		if ipa, ok := arpabetIPA[StripStress(p)]; ok {
			b.WriteString(ipa)
		}
	}
	b.WriteByte('/')
	return b.String()
}

// IsARPAbet reports whether symbol (with or without stress) is a known ARPAbet
// phoneme.
func IsARPAbet(symbol string) bool {
	_, ok := arpabetIPA[StripStress(strings.ToUpper(symbol))]
	return ok
}
