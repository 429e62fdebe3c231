package counting

import (
	"regexp"
	"strconv"
	"strings"
)

// Grammar はカウント列のトークン抽出と次値決定を行う。
// トークンは整数序数で表す（数字モードは値そのまま、文字モードはA=1..Z=26）。
type Grammar interface {
	// Parse extracts a token from raw chat text. strict requires the whole
	// message to be the token. Non-matching text is ordinary chat: (0, false).
	Parse(text string, strict bool) (int64, bool)
	// Advance returns the token that follows t in the sequence. A return of 0
	// means the sequence ends at t and restarts from the beginning.
	Advance(t int64) int64
	// Format renders a token for user-facing messages.
	Format(t int64) string
}

var (
	intStrict = regexp.MustCompile(`^\s*(-?\d+)\s*$`)
	intLoose  = regexp.MustCompile(`^\s*(-?\d+)\b`)

	letterStrict = regexp.MustCompile(`^\s*([A-Za-z])\s*$`)
	letterLoose  = regexp.MustCompile(`^\s*([A-Za-z])\b`)
)

// NumericGrammar は整数列のGrammar。Wordsが非nilなら数詞（"one"など）も受け付ける。
type NumericGrammar struct {
	Words map[string]int64
}

func (g NumericGrammar) Parse(text string, strict bool) (int64, bool) {
	if g.Words != nil {
		if v, ok := g.Words[strings.ToLower(strings.TrimSpace(text))]; ok {
			return v, true
		}
	}

	re := intLoose
	if strict {
		re = intStrict
	}
	m := re.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		// 桁あふれ。数値トークンとしては扱わない。
		return 0, false
	}
	return v, true
}

func (g NumericGrammar) Advance(t int64) int64 {
	return t + 1
}

func (g NumericGrammar) Format(t int64) string {
	return strconv.FormatInt(t, 10)
}

// AlphabeticGrammar は1文字のA〜Z列のGrammar。Wrap=trueなら最終文字の次は
// 先頭に巻き戻る。Wrap=falseでは最終文字で列が終わり、Advanceは0を返す。
// Reverse=trueでZから降順に進む。
type AlphabeticGrammar struct {
	Wrap    bool
	Reverse bool
}

func (g AlphabeticGrammar) Parse(text string, strict bool) (int64, bool) {
	re := letterLoose
	if strict {
		re = letterStrict
	}
	m := re.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	c := strings.ToUpper(m[1])[0]
	return int64(c-'A') + 1, true
}

func (g AlphabeticGrammar) Advance(t int64) int64 {
	if g.Reverse {
		if t <= 0 || t > 26 {
			return 26
		}
		if t == 1 {
			if g.Wrap {
				return 26
			}
			return 0
		}
		return t - 1
	}
	if t <= 0 || t > 26 {
		return 1
	}
	if t == 26 {
		if g.Wrap {
			return 1
		}
		return 0
	}
	return t + 1
}

func (g AlphabeticGrammar) Format(t int64) string {
	if t < 1 || t > 26 {
		return "?"
	}
	return string(rune('A' + t - 1))
}
