// Package translate 把自然语言文本变成可以入队的手势 Cue 序列。
package translate

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"avatar/define"
)

var (
	whitespace  = strings.NewReplacer("\n", " ", "\r", " ", "\t", " ")
	punctuation = strings.NewReplacer(
		"?", "", "¿", "", ",", "", ";", "", ":", "", "!", "", "¡", "",
		"(", "", ")", "", "[", "", "]", "", "{", "", "}", "",
		".", " "+define.DefaultArms+" ",
	)
	lower = cases.Lower(language.Und)
	upper = cases.Upper(language.Und)
)

// Normalize 把换行和制表符换成空格，发给翻译后端前调用
func Normalize(text string) string {
	return strings.TrimSpace(whitespace.Replace(text))
}

// stripAccents 去掉变音符号：á → a，ñ → n，ç → c
func stripAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Tokens 把翻译结果整理成手臂动作 ID 列表：
// 小写、去重音、去标点、句号变成休息姿态、转大写，再按空白切分。
func Tokens(raw string) []string {
	s := lower.String(raw)
	s = stripAccents(s)
	s = punctuation.Replace(s)
	s = upper.String(s)
	return strings.Fields(s)
}
